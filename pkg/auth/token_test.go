package auth

import (
	"errors"
	"testing"
	"time"

	"fleetmon/pkg/apperr"
	"fleetmon/pkg/models"
)

func testDevice() *models.Device {
	machineID := int64(7)
	return &models.Device{
		ID:          1,
		DeviceID:    "cam-0042",
		DeviceClass: models.ClassCamera,
		MachineID:   &machineID,
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	service := NewTokenService("unit-test-secret", 12)

	token, expiresAt, err := service.Issue(testDevice())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}
	if !expiresAt.After(time.Now()) {
		t.Fatalf("expected expiry in the future, got %v", expiresAt)
	}

	claims, err := service.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.DeviceID != "cam-0042" {
		t.Errorf("expected device_id cam-0042, got %s", claims.DeviceID)
	}
	if claims.DeviceClass != models.ClassCamera {
		t.Errorf("expected class camera, got %s", claims.DeviceClass)
	}
	if claims.MachineID == nil || *claims.MachineID != 7 {
		t.Errorf("machine id not carried in claims")
	}
}

func TestVerifyExpired(t *testing.T) {
	// Negative TTL produces a token already past its validity window.
	service := NewTokenService("unit-test-secret", -1)

	token, _, err := service.Issue(testDevice())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := service.Verify(token); !errors.Is(err, apperr.ErrExpired) {
		t.Errorf("expected ErrExpired, got %v", err)
	}
}

func TestVerifyBadSignature(t *testing.T) {
	issuer := NewTokenService("secret-a", 12)
	verifier := NewTokenService("secret-b", 12)

	token, _, err := issuer.Issue(testDevice())
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	if _, err := verifier.Verify(token); !errors.Is(err, apperr.ErrBadSignature) {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyMalformed(t *testing.T) {
	service := NewTokenService("unit-test-secret", 12)

	for _, token := range []string{"", "garbage", "a.b"} {
		if _, err := service.Verify(token); !errors.Is(err, apperr.ErrMalformed) {
			t.Errorf("token %q: expected ErrMalformed, got %v", token, err)
		}
	}
}
