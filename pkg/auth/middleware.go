package auth

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/fx"

	"github.com/emergent-company/erm/internal/config"
	"github.com/emergent-company/erm/pkg/apperror"
	"github.com/emergent-company/erm/pkg/logger"
)

var Module = fx.Module("auth",
	fx.Provide(NewMiddleware),
)

// ContextKey for storing the identity in the echo context
type contextKey string

const IdentityContextKey contextKey = "erm_identity"

// GetIdentity retrieves the authenticated identity from the Echo context
func GetIdentity(c echo.Context) *Identity {
	if id, ok := c.Get(string(IdentityContextKey)).(*Identity); ok {
		return id
	}
	return nil
}

// SetIdentity stores id on the context. Tests use it to bypass token checks.
func SetIdentity(c echo.Context, id *Identity) {
	c.Set(string(IdentityContextKey), id)
}

// Middleware handles authentication for routes
type Middleware struct {
	verifier *TokenVerifier
	log      *slog.Logger
}

// NewMiddleware creates a new auth middleware
func NewMiddleware(cfg *config.Config, log *slog.Logger) *Middleware {
	if cfg.Auth.TokenSecret == "" {
		log.Warn("AUTH_TOKEN_SECRET is empty, every authenticated request will be rejected",
			logger.Scope("auth"))
	}
	return &Middleware{
		verifier: NewTokenVerifier(cfg.Auth.TokenSecret, cfg.Auth.Issuer, cfg.Auth.ClockSkew),
		log:      log.With(logger.Scope("auth")),
	}
}

// NewMiddlewareWithVerifier wires a prepared verifier.
func NewMiddlewareWithVerifier(v *TokenVerifier, log *slog.Logger) *Middleware {
	return &Middleware{verifier: v, log: log.With(logger.Scope("auth"))}
}

// RequireIdentity returns middleware that requires a valid identity token
func (m *Middleware) RequireIdentity() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			token := m.extractToken(c.Request())
			if token == "" {
				return apperror.ErrUnauthorized.WithMessage("missing bearer token")
			}

			id, err := m.verifier.Verify(token)
			if err != nil {
				m.log.Warn("authentication failed", logger.Error(err))
				return apperror.ErrUnauthorized.WithMessage("invalid identity token")
			}

			SetIdentity(c, id)
			return next(c)
		}
	}
}

// extractToken pulls the bearer token from the Authorization header.
func (m *Middleware) extractToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
	}
	return ""
}
