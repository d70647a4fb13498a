package middleware

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasScope(t *testing.T) {
	tests := []struct {
		name     string
		scope    string
		expected string
		want     bool
	}{
		{"Single matching scope", "read:messages", "read:messages", true},
		{"Scope among several", "openid profile read:messages", "read:messages", true},
		{"Missing scope", "openid profile", "read:messages", false},
		{"Empty scope string", "", "read:messages", false},
		{"Partial match is not a match", "read:messages_all", "read:messages", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := CustomClaims{Scope: tt.scope}
			assert.Equal(t, tt.want, claims.HasScope(tt.expected))
		})
	}
}

func TestCustomClaimsValidate(t *testing.T) {
	claims := CustomClaims{}
	assert.NoError(t, claims.Validate(context.Background()))
}

func TestGetUserID(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Returns the stored user id", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", "auth0|abc123")

		userID, err := GetUserID(c)
		require.NoError(t, err)
		assert.Equal(t, "auth0|abc123", userID)
	})

	t.Run("Errors when missing", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		_, err := GetUserID(c)
		require.Error(t, err)
		authErr, ok := err.(*AuthError)
		require.True(t, ok)
		assert.Equal(t, "MISSING_USER_ID", authErr.Code)
	})

	t.Run("Errors on wrong type", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("user_id", 42)

		_, err := GetUserID(c)
		assert.Error(t, err)
	})
}

func TestGetAccessToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Returns the stored token", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("access_token", "raw-jwt")

		token, err := GetAccessToken(c)
		require.NoError(t, err)
		assert.Equal(t, "raw-jwt", token)
	})

	t.Run("Errors when missing", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		_, err := GetAccessToken(c)
		assert.Error(t, err)
	})
}

func TestGetClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)

	t.Run("Returns validated claims with role", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())
		c.Set("validated_claims", &validator.ValidatedClaims{
			CustomClaims: &CustomClaims{Role: "doctor"},
		})

		claims, err := GetClaims(c)
		require.NoError(t, err)
		custom := claims.CustomClaims.(*CustomClaims)
		assert.Equal(t, "doctor", custom.Role)
	})

	t.Run("Errors when missing", func(t *testing.T) {
		c, _ := gin.CreateTestContext(httptest.NewRecorder())

		_, err := GetClaims(c)
		assert.Error(t, err)
	})
}
