// Package auth is the boundary to the external identity provider. It
// extracts the authenticated principal from a bearer token and answers
// capability checks; it does not manage accounts or sessions.
package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Role is the principal's role as asserted by the identity provider.
type Role string

const (
	RoleCitizen    Role = "citizen"
	RoleOfficer    Role = "officer"
	RoleGovernment Role = "government"
	RoleAdmin      Role = "admin"
)

// Principal is the authenticated caller of an operation.
type Principal struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

// Elevated reports whether the principal may read verifications it did
// not request.
func (p Principal) Elevated() bool {
	return p.Role == RoleOfficer || p.Role == RoleGovernment || p.Role == RoleAdmin
}

const principalKey = "auth.principal"

// Middleware validates the bearer token and stores the principal in the
// gin context. Token issuance belongs to the identity provider; only
// the shared secret is configured here.
func Middleware(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || tokenString == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing bearer token"})
			return
		}

		claims := jwt.MapClaims{}
		token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(jwtSecret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}

		sub, _ := claims["sub"].(string)
		id, err := uuid.Parse(sub)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid subject"})
			return
		}
		role, _ := claims["role"].(string)

		c.Set(principalKey, Principal{ID: id, Role: Role(role)})
		c.Next()
	}
}

// PrincipalFrom returns the principal the middleware stored on the
// context.
func PrincipalFrom(c *gin.Context) (Principal, bool) {
	val, exists := c.Get(principalKey)
	if !exists {
		return Principal{}, false
	}
	p, ok := val.(Principal)
	return p, ok
}
