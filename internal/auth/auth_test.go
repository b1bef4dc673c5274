package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasPermission(t *testing.T) {
	tests := []struct {
		role    Role
		action  Action
		allowed bool
	}{
		{RoleCitizen, ActionCreateVerification, true},
		{RoleCitizen, ActionRecordPayment, true},
		{RoleCitizen, ActionCompleteStep, false},
		{RoleCitizen, ActionRefundPayment, false},
		{RoleOfficer, ActionAssignOfficer, true},
		{RoleOfficer, ActionCompleteStep, true},
		{RoleOfficer, ActionUpdateStatus, false},
		{RoleOfficer, ActionChangeScope, false},
		{RoleGovernment, ActionUpdateStatus, true},
		{RoleGovernment, ActionWaivePayment, false},
		{RoleAdmin, ActionRefundPayment, true},
		{RoleAdmin, ActionWaivePayment, true},
		{RoleAdmin, ActionSkipStep, true},
		{RoleAdmin, ActionChangeScope, true},
		{Role("unknown"), ActionViewVerification, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.role)+"_"+string(tt.action), func(t *testing.T) {
			assert.Equal(t, tt.allowed, HasPermission(tt.role, tt.action))
		})
	}
}

func TestElevated(t *testing.T) {
	assert.False(t, Principal{Role: RoleCitizen}.Elevated())
	assert.True(t, Principal{Role: RoleOfficer}.Elevated())
	assert.True(t, Principal{Role: RoleGovernment}.Elevated())
	assert.True(t, Principal{Role: RoleAdmin}.Elevated())
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func middlewareRequest(secret, authorization string) (*httptest.ResponseRecorder, Principal, bool) {
	gin.SetMode(gin.TestMode)
	var got Principal
	var found bool

	router := gin.New()
	router.Use(Middleware(secret))
	router.GET("/probe", func(c *gin.Context) {
		got, found = PrincipalFrom(c)
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/probe", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	router.ServeHTTP(w, req)
	return w, got, found
}

func TestMiddlewareAcceptsValidToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, "test-secret", jwt.MapClaims{
		"sub":  userID.String(),
		"role": "officer",
		"exp":  time.Now().Add(time.Hour).Unix(),
	})

	w, principal, found := middlewareRequest("test-secret", "Bearer "+token)
	assert.Equal(t, http.StatusOK, w.Code)
	require.True(t, found)
	assert.Equal(t, userID, principal.ID)
	assert.Equal(t, RoleOfficer, principal.Role)
}

func TestMiddlewareRejectsBadTokens(t *testing.T) {
	userID := uuid.New()

	tests := []struct {
		name          string
		authorization string
	}{
		{"missing header", ""},
		{"not bearer", "Basic abc123"},
		{"garbage token", "Bearer not.a.jwt"},
		{
			"wrong secret",
			"Bearer " + signToken(t, "other-secret", jwt.MapClaims{
				"sub": userID.String(), "role": "citizen", "exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
		{
			"expired",
			"Bearer " + signToken(t, "test-secret", jwt.MapClaims{
				"sub": userID.String(), "role": "citizen", "exp": time.Now().Add(-time.Hour).Unix(),
			}),
		},
		{
			"non uuid subject",
			"Bearer " + signToken(t, "test-secret", jwt.MapClaims{
				"sub": "user-42", "role": "citizen", "exp": time.Now().Add(time.Hour).Unix(),
			}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, _, found := middlewareRequest("test-secret", tt.authorization)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.False(t, found)
		})
	}
}
