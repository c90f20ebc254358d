package auth

import (
	"errors"
	"fmt"
	"time"

	"fleetmon/pkg/apperr"
	"fleetmon/pkg/models"

	"github.com/golang-jwt/jwt/v4"
)

// DeviceClaims are the claims embedded in a device bearer token.
type DeviceClaims struct {
	DeviceID    string `json:"device_id"`
	DeviceClass string `json:"device_class"`
	MachineID   *int64 `json:"machine_id,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and verifies HMAC-signed device tokens.
// Verification is pure computation; it never touches storage, so any
// server instance can validate a token without shared session state.
type TokenService struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenService(secret string, ttlHours int) *TokenService {
	return &TokenService{
		secret: []byte(secret),
		ttl:    time.Duration(ttlHours) * time.Hour,
	}
}

// Issue mints a signed token for the device with the configured validity
// window and returns the token together with its expiry.
func (service *TokenService) Issue(device *models.Device) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(service.ttl)

	claims := DeviceClaims{
		DeviceID:    device.DeviceID,
		DeviceClass: device.DeviceClass,
		MachineID:   device.MachineID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    "fleetmon",
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(service.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, expiresAt, nil
}

// Verify recomputes the HMAC over the token, compares in constant time
// (inside the jwt library) and checks expiry. Expiry is reported ahead of
// signature problems so a stale token is always surfaced as expired.
func (service *TokenService) Verify(tokenString string) (*DeviceClaims, error) {
	claims := &DeviceClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return service.secret, nil
	})

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, apperr.ErrExpired
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, apperr.ErrMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, apperr.ErrBadSignature
		default:
			return nil, fmt.Errorf("%w: %v", apperr.ErrMalformed, err)
		}
	}
	if !token.Valid {
		return nil, apperr.ErrBadSignature
	}
	return claims, nil
}
