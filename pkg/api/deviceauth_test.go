package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"fleetmon/pkg/auth"
	"fleetmon/pkg/models"

	"github.com/gin-gonic/gin"
)

func newAuthedRouter(tokens *auth.TokenService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/probe", DeviceAuth(tokens), func(c *gin.Context) {
		claims := deviceClaims(c)
		c.JSON(http.StatusOK, gin.H{"device_id": claims.DeviceID})
	})
	return router
}

func TestDeviceAuthAcceptsValidToken(t *testing.T) {
	tokens := auth.NewTokenService("test-secret", 12)
	router := newAuthedRouter(tokens)

	token, _, err := tokens.Issue(&models.Device{DeviceID: "cam-1", DeviceClass: models.ClassCamera})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/probe", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
}

func TestDeviceAuthRejectsMissingHeader(t *testing.T) {
	router := newAuthedRouter(auth.NewTokenService("test-secret", 12))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/probe", nil))

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", recorder.Code)
	}
}

func TestDeviceAuthRejectsExpiredToken(t *testing.T) {
	issuer := auth.NewTokenService("test-secret", -1)
	router := newAuthedRouter(auth.NewTokenService("test-secret", 12))

	token, _, err := issuer.Issue(&models.Device{DeviceID: "cam-1", DeviceClass: models.ClassCamera})
	if err != nil {
		t.Fatalf("Issue failed: %v", err)
	}

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/probe", nil)
	request.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for expired token, got %d", recorder.Code)
	}
}

func TestDeviceAuthRejectsWrongScheme(t *testing.T) {
	router := newAuthedRouter(auth.NewTokenService("test-secret", 12))

	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/probe", nil)
	request.Header.Set("Authorization", "Basic abc")
	router.ServeHTTP(recorder, request)

	if recorder.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 for non-bearer scheme, got %d", recorder.Code)
	}
}
