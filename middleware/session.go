package middleware

import (
	"net/http"
	"strings"

	"ia-assistant-platform/internal/session"
	"ia-assistant-platform/models"
	"ia-assistant-platform/utils"

	"github.com/gin-gonic/gin"
)

// SessionMiddleware validates the bearer token and loads the session
// state into the request context. Requests without a live session are
// rejected.
func SessionMiddleware(store *session.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			utils.RespondWithError(c, http.StatusUnauthorized,
				"missing_token", "Session token required", nil)
			c.Abort()
			return
		}

		sessionID, err := store.Validate(token)
		if err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized,
				"invalid_token", "Invalid or expired session token", nil)
			c.Abort()
			return
		}

		state, err := store.Get(c.Request.Context(), sessionID)
		if err != nil {
			utils.RespondWithError(c, http.StatusUnauthorized,
				"session_expired", "Session not found or expired", nil)
			c.Abort()
			return
		}

		c.Set("session_id", sessionID)
		c.Set("session_state", state)
		c.Next()
	}
}

func bearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return c.GetHeader("X-Session-Token")
}

// GetSessionID returns the validated session id, or "".
func GetSessionID(c *gin.Context) string {
	if id, exists := c.Get("session_id"); exists {
		if str, ok := id.(string); ok {
			return str
		}
	}
	return ""
}

// GetSessionState returns the loaded session state, or nil.
func GetSessionState(c *gin.Context) *models.SessionState {
	if v, exists := c.Get("session_state"); exists {
		if state, ok := v.(*models.SessionState); ok {
			return state
		}
	}
	return nil
}
