package auth

import (
	"context"
	"errors"
	"testing"

	"fleetmon/pkg/apperr"
	"fleetmon/pkg/audit"
	"fleetmon/pkg/database"
	"fleetmon/pkg/models"
)

const masterSecret = "test-registration-secret"

func newTestAuthenticator(t *testing.T) *Authenticator {
	t.Helper()
	db, err := database.OpenMemory()
	if err != nil {
		t.Fatalf("failed to open test db: %v", err)
	}
	tokens := NewTokenService("unit-test-secret", 12)
	return NewAuthenticator(db, tokens, masterSecret, audit.NewLogger(db))
}

func TestRegisterThenAuthenticate(t *testing.T) {
	authenticator := newTestAuthenticator(t)
	ctx := context.Background()

	resp, err := authenticator.Register(ctx, &models.RegisterRequest{
		DeviceID:           "cam-001",
		DeviceClass:        models.ClassCamera,
		RegistrationSecret: masterSecret,
	})
	if err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if resp.Secret == "" {
		t.Fatalf("expected a plaintext secret in the registration response")
	}

	token, _, err := authenticator.Authenticate(ctx, "cam-001", resp.Secret)
	if err != nil {
		t.Fatalf("Authenticate failed: %v", err)
	}

	claims, err := authenticator.tokens.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if claims.DeviceID != "cam-001" {
		t.Errorf("expected device_id cam-001 in claims, got %s", claims.DeviceID)
	}

	// Authentication must bump last-contact.
	device, err := authenticator.devices.GetByField(ctx, "device_id", "cam-001")
	if err != nil {
		t.Fatalf("device lookup failed: %v", err)
	}
	if device.LastContact == nil {
		t.Errorf("expected last_contact to be set after authentication")
	}
}

func TestAuthenticateUnknownDevice(t *testing.T) {
	authenticator := newTestAuthenticator(t)

	_, _, err := authenticator.Authenticate(context.Background(), "ghost", "whatever")
	if !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestAuthenticateWrongSecret(t *testing.T) {
	authenticator := newTestAuthenticator(t)
	ctx := context.Background()

	if _, err := authenticator.Register(ctx, &models.RegisterRequest{
		DeviceID:           "cam-002",
		DeviceClass:        models.ClassCamera,
		RegistrationSecret: masterSecret,
	}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}

	_, _, err := authenticator.Authenticate(ctx, "cam-002", "wrong-secret")
	if !errors.Is(err, apperr.ErrInvalidSecret) {
		t.Errorf("expected ErrInvalidSecret, got %v", err)
	}
}

func TestRegisterDuplicate(t *testing.T) {
	authenticator := newTestAuthenticator(t)
	ctx := context.Background()

	req := &models.RegisterRequest{
		DeviceID:           "cam-003",
		DeviceClass:        models.ClassCamera,
		RegistrationSecret: masterSecret,
	}
	if _, err := authenticator.Register(ctx, req); err != nil {
		t.Fatalf("first Register failed: %v", err)
	}
	if _, err := authenticator.Register(ctx, req); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterBadMasterSecret(t *testing.T) {
	authenticator := newTestAuthenticator(t)

	_, err := authenticator.Register(context.Background(), &models.RegisterRequest{
		DeviceID:           "cam-004",
		DeviceClass:        models.ClassCamera,
		RegistrationSecret: "not-the-master-secret",
	})
	if !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}
