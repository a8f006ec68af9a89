package middleware

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"clinic-records/utils"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// UserKey is the gin context key holding the authenticated user.
const UserKey = "user"

const (
	sessionCookie = "session"
	sessionPrefix = "session:"
)

var ErrNoSession = errors.New("no valid session")

// SessionVerifier resolves a session token to the user it belongs to.
type SessionVerifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// RedisSessions reads sessions written by the authentication provider
// under "session:<token>". The stored value is the user identifier.
type RedisSessions struct {
	cache utils.RedisClient
}

func NewRedisSessions(cache utils.RedisClient) *RedisSessions {
	return &RedisSessions{cache: cache}
}

func (s *RedisSessions) Verify(ctx context.Context, token string) (string, error) {
	user, err := s.cache.GetFromCache(ctx, sessionPrefix+token)
	if err != nil {
		if errors.Is(err, utils.ErrCacheMiss) {
			return "", ErrNoSession
		}
		return "", err
	}
	return user, nil
}

// StaticToken accepts a single shared token. Meant for local development.
type StaticToken string

func (t StaticToken) Verify(_ context.Context, token string) (string, error) {
	if t == "" || subtle.ConstantTimeCompare([]byte(t), []byte(token)) != 1 {
		return "", ErrNoSession
	}
	return "developer", nil
}

// RequireSession rejects requests that carry no valid session token. The
// token is taken from a bearer Authorization header or the session cookie.
func RequireSession(verifier SessionVerifier, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := sessionToken(c)
		if token == "" {
			unauthorized(c, "authentication required")
			return
		}

		user, err := verifier.Verify(c.Request.Context(), token)
		if err != nil {
			if !errors.Is(err, ErrNoSession) {
				logger.Error("Session lookup failed", zap.Error(err))
			}
			unauthorized(c, "invalid or expired session")
			return
		}

		c.Set(UserKey, user)
		c.Next()
	}
}

func sessionToken(c *gin.Context) string {
	if h := c.GetHeader("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if cookie, err := c.Cookie(sessionCookie); err == nil {
		return cookie
	}
	return ""
}

func unauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": gin.H{"code": "UNAUTHORIZED", "message": message},
	})
}
