package api

import (
	"net/http"
	"strings"

	"fleetmon/pkg/auth"

	"github.com/gin-gonic/gin"
)

const claimsKey = "device_claims"

// DeviceAuth validates the Authorization header against the token service
// and stores the device claims in the gin context.
func DeviceAuth(tokens *auth.TokenService) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			respondError(c, http.StatusUnauthorized, "authorization header required")
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
			respondError(c, http.StatusUnauthorized, "invalid authorization header format")
			return
		}

		claims, err := tokens.Verify(parts[1])
		if err != nil {
			respondAppError(c, err)
			return
		}

		c.Set(claimsKey, claims)
		c.Next()
	}
}

// deviceClaims pulls the verified claims stored by DeviceAuth.
func deviceClaims(c *gin.Context) *auth.DeviceClaims {
	value, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*auth.DeviceClaims)
	return claims
}
