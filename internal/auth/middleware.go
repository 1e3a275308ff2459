package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// RoleAdmin is the role claim required for destructive operations.
const RoleAdmin = "admin"

const claimsKey = "auth.claims"

// Claims is the admin token payload.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and checks HS256 admin tokens.
type Authenticator struct {
	secret []byte
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthenticator returns an authenticator keyed by secret. An empty secret
// rejects every token.
func NewAuthenticator(secret string, logger *zap.Logger) *Authenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Authenticator{secret: []byte(secret), logger: logger, now: time.Now}
}

// Enabled reports whether tokens can be issued and checked at all.
func (a *Authenticator) Enabled() bool { return len(a.secret) > 0 }

// IssueToken signs a token for subject with the given role.
func (a *Authenticator) IssueToken(subject, role string, ttl time.Duration) (string, error) {
	if !a.Enabled() {
		return "", errors.New("jwt secret is not configured")
	}
	now := a.now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Parse validates a token and returns its claims.
func (a *Authenticator) Parse(token string) (*Claims, error) {
	if !a.Enabled() {
		return nil, errors.New("admin endpoints are disabled")
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired(), jwt.WithTimeFunc(a.now))
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// RequireRole rejects requests without a valid bearer token carrying role.
func (a *Authenticator) RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" {
			forbid(c, "missing bearer token")
			return
		}
		claims, err := a.Parse(token)
		if err != nil {
			a.logger.Warn("Rejected admin token", zap.String("path", c.FullPath()), zap.Error(err))
			forbid(c, "invalid token")
			return
		}
		if claims.Role != role {
			a.logger.Warn("Insufficient role", zap.String("subject", claims.Subject), zap.String("role", claims.Role))
			forbid(c, "insufficient role")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by RequireRole.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}

func forbid(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
		"success":    false,
		"error_kind": "forbidden",
		"error":      msg,
	})
}
