package ai

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// SessionQuota tracks per-session daily token consumption across the chat
// endpoints. It survives session TTL on purpose so recreating a session does
// not reset the budget.
type SessionQuota struct {
	SessionID       string    `bson:"session_id" json:"session_id"`
	DailyTokenLimit int       `bson:"daily_token_limit" json:"daily_token_limit"`
	TokensUsedToday int       `bson:"tokens_used_today" json:"tokens_used_today"`
	RequestsToday   int       `bson:"requests_today" json:"requests_today"`
	LastResetDate   time.Time `bson:"last_reset_date" json:"last_reset_date"`
	CreatedAt       time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt       time.Time `bson:"updated_at" json:"updated_at"`
}

// ErrQuotaExceeded is returned when a session hits its daily token budget.
var ErrQuotaExceeded = errors.New("daily quota exceeded")

const defaultDailyTokenLimit = 100000

// CheckSessionQuota verifies the session can spend estimatedTokens today and
// records the spend. Counters reset at the first call of each UTC day.
func CheckSessionQuota(ctx context.Context, db *mongo.Database, sessionID string, estimatedTokens int) error {
	col := db.Collection("chat_quotas")

	now := time.Now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	// Reset if new day
	_, err := col.UpdateOne(ctx,
		bson.M{"session_id": sessionID, "last_reset_date": bson.M{"$lt": today}},
		bson.M{"$set": bson.M{
			"tokens_used_today": 0,
			"requests_today":    0,
			"last_reset_date":   today,
			"updated_at":        now,
		}},
	)
	if err != nil {
		return err
	}

	var quota SessionQuota
	err = col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&quota)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			quota = SessionQuota{
				SessionID:       sessionID,
				DailyTokenLimit: defaultDailyTokenLimit,
				LastResetDate:   today,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if _, err := col.InsertOne(ctx, quota); err != nil {
				return err
			}
		} else {
			return err
		}
	}

	if quota.TokensUsedToday+estimatedTokens > quota.DailyTokenLimit {
		return ErrQuotaExceeded
	}

	_, err = col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{
			"$inc": bson.M{
				"tokens_used_today": estimatedTokens,
				"requests_today":    1,
			},
			"$set": bson.M{"updated_at": now},
		},
	)
	return err
}

// GetSessionQuotaStatus returns the current quota document for a session.
// Sessions that never spent tokens report the default limit untouched.
func GetSessionQuotaStatus(ctx context.Context, db *mongo.Database, sessionID string) (*SessionQuota, error) {
	col := db.Collection("chat_quotas")

	var quota SessionQuota
	err := col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&quota)
	if err == mongo.ErrNoDocuments {
		return &SessionQuota{SessionID: sessionID, DailyTokenLimit: defaultDailyTokenLimit}, nil
	}
	if err != nil {
		return nil, err
	}
	return &quota, nil
}
