package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles a workspace member can hold.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleGuest  = "guest"
)

var validRoles = map[string]bool{
	RoleOwner:  true,
	RoleAdmin:  true,
	RoleMember: true,
	RoleGuest:  true,
}

// Identity is the resolved (subject, workspace, role) triple an upstream
// identity service signs into the bearer token.
type Identity struct {
	Subject         string `json:"sub"`
	WorkspaceID     string `json:"workspaceId"`
	Role            string `json:"role"`
	WorkspacePublic bool   `json:"workspacePublic,omitempty"`
}

// Claims is the JWT payload of an identity token.
type Claims struct {
	WorkspaceID     string `json:"workspace_id"`
	Role            string `json:"role"`
	WorkspacePublic bool   `json:"workspace_public,omitempty"`
	jwt.RegisteredClaims
}

var (
	ErrMissingSecret = errors.New("auth: token secret not configured")
	ErrInvalidToken  = errors.New("auth: invalid identity token")
)

// TokenVerifier validates HS256 identity tokens.
type TokenVerifier struct {
	secret []byte
	issuer string
	leeway time.Duration
}

// NewTokenVerifier returns a verifier for tokens signed with secret. An empty
// issuer accepts any issuer.
func NewTokenVerifier(secret, issuer string, leeway time.Duration) *TokenVerifier {
	return &TokenVerifier{secret: []byte(secret), issuer: issuer, leeway: leeway}
}

// Verify parses raw and returns the identity it carries.
func (v *TokenVerifier) Verify(raw string) (*Identity, error) {
	if len(v.secret) == 0 {
		return nil, ErrMissingSecret
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithLeeway(v.leeway),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if claims.Subject == "" || claims.WorkspaceID == "" {
		return nil, fmt.Errorf("%w: sub and workspace_id are required", ErrInvalidToken)
	}
	if !validRoles[claims.Role] {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return &Identity{
		Subject:         claims.Subject,
		WorkspaceID:     claims.WorkspaceID,
		Role:            claims.Role,
		WorkspacePublic: claims.WorkspacePublic,
	}, nil
}

// Issue signs an identity token valid for ttl. Used by ermctl and tests.
func (v *TokenVerifier) Issue(id Identity, ttl time.Duration) (string, error) {
	if len(v.secret) == 0 {
		return "", ErrMissingSecret
	}
	now := time.Now()
	claims := Claims{
		WorkspaceID:     id.WorkspaceID,
		Role:            id.Role,
		WorkspacePublic: id.WorkspacePublic,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id.Subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
