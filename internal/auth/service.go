package auth

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/vovakirdan/boardsync/internal/board"
)

var (
	// ErrForbidden is returned when a role may not publish an event kind.
	ErrForbidden = errors.New("forbidden")
	// ErrUnauthenticated is returned when a required token is missing or invalid.
	ErrUnauthenticated = errors.New("unauthenticated")
)

// Identity is the caller behind a request or connection.
type Identity struct {
	Subject   string
	Name      string
	Role      string
	Anonymous bool
}

// Authorizer decides whether an identity may publish an event kind.
type Authorizer interface {
	Authorize(id Identity, kind board.EventKind) error
}

// Policy decides which roles may publish which event kinds.
// Kinds not listed as restricted are open to everyone.
type Policy struct {
	Restricted []board.EventKind
	Privileged []string
}

// Allows reports whether id may publish kind.
func (p Policy) Allows(id Identity, kind board.EventKind) bool {
	if !slices.Contains(p.Restricted, kind) {
		return true
	}
	return slices.Contains(p.Privileged, id.Role)
}

// Service identifies callers and enforces the publish policy.
// With no secret configured every caller is an anonymous participant
// and the policy is not enforced.
type Service struct {
	jwt    *JWTConfig
	policy Policy
}

// NewService creates an auth service. A nil or secretless config disables tokens.
func NewService(cfg *JWTConfig, policy Policy) *Service {
	return &Service{jwt: cfg, policy: policy}
}

// Enabled reports whether tokens are verified.
func (s *Service) Enabled() bool {
	return s != nil && s.jwt != nil && len(s.jwt.Secret) > 0
}

// Identify resolves a bearer token. An empty token yields an anonymous
// identity; it is rejected only when tokens are enabled and the token is bad.
func (s *Service) Identify(token string) (Identity, error) {
	token = strings.TrimSpace(strings.TrimPrefix(token, "Bearer "))
	if token == "" || !s.Enabled() {
		return Identity{Subject: "anon-" + uuid.NewString(), Anonymous: true}, nil
	}

	claims, err := ValidateToken(s.jwt, token)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrUnauthenticated, err)
	}
	return Identity{
		Subject: claims.Subject,
		Name:    claims.Name,
		Role:    claims.Role,
	}, nil
}

// Authorize checks whether id may publish kind.
func (s *Service) Authorize(id Identity, kind board.EventKind) error {
	if !s.Enabled() {
		return nil
	}
	if !s.policy.Allows(id, kind) {
		return fmt.Errorf("%w: role %q may not publish %s", ErrForbidden, id.Role, kind)
	}
	return nil
}

var _ Authorizer = (*Service)(nil)

// Issue signs a token for a participant. Used by tooling and tests.
func (s *Service) Issue(subject, name, role string) (string, error) {
	if !s.Enabled() {
		return "", errors.New("auth: no jwt secret configured")
	}
	return GenerateToken(s.jwt, subject, name, role)
}
