package httpkit

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketplace_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type staticJWTConfig string

func (s staticJWTConfig) GetJWTAccessSecret() string { return string(s) }

func signAccessToken(t *testing.T, secret string, userID uuid.UUID, roles []string, tokenType string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   userID.String(),
		"roles": roles,
		"type":  tokenType,
		"exp":   time.Now().Add(time.Minute).Unix(),
	})
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return signed
}

func TestAuthRequiredResolvesIdentity(t *testing.T) {
	gin.SetMode(gin.TestMode)
	userID := uuid.New()

	engine := gin.New()
	engine.GET("/me", AuthRequired(staticJWTConfig("secret")), func(c *gin.Context) {
		id := MustGetIdentity(c)
		if id == nil {
			return
		}
		c.JSON(http.StatusOK, gin.H{"id": id.UserID().String(), "role": id.PrimaryRole()})
	})

	cases := []struct {
		name   string
		token  string
		status int
		role   string
	}{
		{"provider token", signAccessToken(t, "secret", userID, []string{"provider"}, "access"), http.StatusOK, RoleProvider},
		{"admin wins over client", signAccessToken(t, "secret", userID, []string{"client", "admin"}, "access"), http.StatusOK, RoleAdmin},
		{"refresh token rejected", signAccessToken(t, "secret", userID, []string{"client"}, "refresh"), http.StatusUnauthorized, ""},
		{"wrong secret", signAccessToken(t, "other", userID, []string{"client"}, "access"), http.StatusUnauthorized, ""},
		{"missing token", "", http.StatusUnauthorized, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/me", nil)
			if tc.token != "" {
				req.Header.Set("Authorization", "Bearer "+tc.token)
			}
			rec := httptest.NewRecorder()
			engine.ServeHTTP(rec, req)

			if rec.Code != tc.status {
				t.Fatalf("expected status %d, got %d", tc.status, rec.Code)
			}
			if tc.status != http.StatusOK {
				return
			}
			var body map[string]string
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode body: %v", err)
			}
			if body["id"] != userID.String() || body["role"] != tc.role {
				t.Fatalf("unexpected identity %+v", body)
			}
		})
	}
}

func TestHandleErrorMapsWrappedDomainErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)

	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"conflict with code", apperr.Conflict("job is terminal").WithCode("job_terminal"), http.StatusConflict, "job_terminal"},
		{"wrapped forbidden", fmt.Errorf("lifecycle: %w", apperr.Forbidden("nope").WithCode("not_participant")), http.StatusForbidden, "not_participant"},
		{"unavailable", apperr.Unavailable("store down", nil), http.StatusServiceUnavailable, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(rec)
			HandleError(c, tc.err)

			if rec.Code != tc.status {
				t.Fatalf("expected %d, got %d", tc.status, rec.Code)
			}
			var body ErrorResponse
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Code != tc.code {
				t.Fatalf("expected code %q, got %q", tc.code, body.Code)
			}
		})
	}
}
