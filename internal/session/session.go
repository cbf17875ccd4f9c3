package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ia-assistant-platform/internal/config"
	"ia-assistant-platform/models"
	"ia-assistant-platform/utils"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var (
	ErrSessionNotFound = errors.New("session not found or expired")
	ErrBadCredentials  = errors.New("invalid credentials")
)

const keyPrefix = "session:"

// Claims binds a bearer token to one session.
type Claims struct {
	SessionID string `json:"session_id"`
	jwt.RegisteredClaims
}

// Store keeps session state in Redis and issues signed bearer tokens for
// it. State lives exactly as long as the session TTL; every write renews
// the TTL.
type Store struct {
	rdb      *redis.Client
	secret   []byte
	ttl      time.Duration
	username string
	pwHash   string
}

func NewStore(rdb *redis.Client, cfg *config.Config) *Store {
	return &Store{
		rdb:      rdb,
		secret:   []byte(cfg.SessionSecret),
		ttl:      time.Duration(cfg.SessionTTLMinutes) * time.Minute,
		username: cfg.AuthUsername,
		pwHash:   cfg.AuthPasswordHash,
	}
}

// Create opens a new session. When credentials are configured they must
// match; otherwise sessions are open.
func (s *Store) Create(ctx context.Context, username, password string) (*models.SessionState, string, error) {
	if s.pwHash != "" {
		if username != s.username || !utils.CheckPassword(password, s.pwHash) {
			return nil, "", ErrBadCredentials
		}
	}

	state := &models.SessionState{
		ID:        uuid.NewString(),
		CreatedAt: time.Now(),
	}
	if err := s.Save(ctx, state); err != nil {
		return nil, "", err
	}

	token, err := s.issueToken(state.ID)
	if err != nil {
		return nil, "", err
	}
	return state, token, nil
}

// Validate parses a bearer token and returns the session id it names.
// Session existence is checked separately via Get.
func (s *Store) Validate(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.SessionID == "" {
		return "", errors.New("invalid token")
	}
	return claims.SessionID, nil
}

func (s *Store) Get(ctx context.Context, id string) (*models.SessionState, error) {
	data, err := s.rdb.Get(ctx, keyPrefix+id).Bytes()
	if err == redis.Nil {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var state models.SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	return &state, nil
}

func (s *Store) Save(ctx context.Context, state *models.SessionState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := s.rdb.Set(ctx, keyPrefix+state.ID, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	return nil
}

func (s *Store) Destroy(ctx context.Context, id string) error {
	return s.rdb.Del(ctx, keyPrefix+id).Err()
}

// AppendHistory records one answered or refused question.
func (s *Store) AppendHistory(ctx context.Context, id string, entry models.HistoryEntry) error {
	return s.update(ctx, id, func(state *models.SessionState) {
		state.History = append(state.History, entry)
	})
}

// AppendUpload records the outcome of one document upload.
func (s *Store) AppendUpload(ctx context.Context, id string, rec models.UploadRecord) error {
	return s.update(ctx, id, func(state *models.SessionState) {
		state.Uploads = append(state.Uploads, rec)
	})
}

// SetForcedFilter pins a filter clause that gets merged into every
// retrieval for this session until cleared.
func (s *Store) SetForcedFilter(ctx context.Context, id, filter string) error {
	return s.update(ctx, id, func(state *models.SessionState) {
		state.ForcedFilter = filter
	})
}

func (s *Store) ClearForcedFilter(ctx context.Context, id string) error {
	return s.SetForcedFilter(ctx, id, "")
}

func (s *Store) update(ctx context.Context, id string, mutate func(*models.SessionState)) error {
	state, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	mutate(state)
	return s.Save(ctx, state)
}

func (s *Store) issueToken(sessionID string) (string, error) {
	now := time.Now()
	claims := Claims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   sessionID,
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "ia-assistant-platform",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}
