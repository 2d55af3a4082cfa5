package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emergent-company/erm/pkg/apperror"
)

func TestMiddleware_extractToken(t *testing.T) {
	m := &Middleware{}

	tests := []struct {
		name       string
		authHeader string
		want       string
	}{
		{"bearer token", "Bearer eyJhbGciOiJIUzI1NiJ9", "eyJhbGciOiJIUzI1NiJ9"},
		{"no header", "", ""},
		{"basic auth", "Basic dXNlcjpwYXNz", ""},
		{"empty bearer", "Bearer ", ""},
		{"bearer without space", "Bearertoken", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.authHeader != "" {
				req.Header.Set("Authorization", tt.authHeader)
			}
			assert.Equal(t, tt.want, m.extractToken(req))
		})
	}
}

func TestTokenVerifier_RoundTrip(t *testing.T) {
	v := NewTokenVerifier("s3cret", "erm-test", time.Second)
	want := Identity{Subject: "user-1", WorkspaceID: "ws-1", Role: RoleMember, WorkspacePublic: true}

	raw, err := v.Issue(want, time.Minute)
	require.NoError(t, err)

	got, err := v.Verify(raw)
	require.NoError(t, err)
	assert.Equal(t, want, *got)
}

func TestTokenVerifier_Rejects(t *testing.T) {
	v := NewTokenVerifier("s3cret", "erm-test", 0)
	other := NewTokenVerifier("different", "erm-test", 0)
	wrongIssuer := NewTokenVerifier("s3cret", "someone-else", 0)

	valid := Identity{Subject: "u", WorkspaceID: "ws", Role: RoleAdmin}

	badSig, err := other.Issue(valid, time.Minute)
	require.NoError(t, err)
	expired, err := v.Issue(valid, -time.Minute)
	require.NoError(t, err)
	badRole, err := v.Issue(Identity{Subject: "u", WorkspaceID: "ws", Role: "root"}, time.Minute)
	require.NoError(t, err)
	noWorkspace, err := v.Issue(Identity{Subject: "u", Role: RoleAdmin}, time.Minute)
	require.NoError(t, err)
	issuerMismatch, err := wrongIssuer.Issue(valid, time.Minute)
	require.NoError(t, err)

	for name, raw := range map[string]string{
		"bad signature": badSig,
		"expired":       expired,
		"unknown role":  badRole,
		"no workspace":  noWorkspace,
		"wrong issuer":  issuerMismatch,
		"garbage":       "not-a-jwt",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(raw)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestTokenVerifier_MissingSecret(t *testing.T) {
	v := NewTokenVerifier("", "", 0)
	_, err := v.Verify("x")
	assert.ErrorIs(t, err, ErrMissingSecret)
	_, err = v.Issue(Identity{}, time.Minute)
	assert.ErrorIs(t, err, ErrMissingSecret)
}

func TestRequireIdentity(t *testing.T) {
	v := NewTokenVerifier("s3cret", "", 0)
	m := NewMiddlewareWithVerifier(v, slog.Default())
	token, err := v.Issue(Identity{Subject: "u", WorkspaceID: "ws", Role: RoleOwner}, time.Minute)
	require.NoError(t, err)

	var seen *Identity
	h := m.RequireIdentity()(func(c echo.Context) error {
		seen = GetIdentity(c)
		return c.NoContent(http.StatusNoContent)
	})

	e := echo.New()

	t.Run("valid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()

		require.NoError(t, h(e.NewContext(req, rec)))
		require.NotNil(t, seen)
		assert.Equal(t, "ws", seen.WorkspaceID)
		assert.Equal(t, RoleOwner, seen.Role)
	})

	t.Run("missing token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		err := h(e.NewContext(req, rec))
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	})

	t.Run("tampered token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token+"x")
		rec := httptest.NewRecorder()

		err := h(e.NewContext(req, rec))
		assert.ErrorIs(t, err, apperror.ErrUnauthorized)
	})
}
