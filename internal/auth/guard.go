package auth

import (
	"context"
	"strings"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/workforce-auth/internal/domain"
)

const principalKey = "auth_principal"

// PrincipalKind tells which trust domain authenticated the caller.
type PrincipalKind string

const (
	PrincipalUser    PrincipalKind = "user"
	PrincipalService PrincipalKind = "service"
)

// Principal represents the authenticated caller. Identity is nil for services.
type Principal struct {
	Kind     PrincipalKind
	Identity *domain.IdentitySnapshot
}

// IsService reports whether the caller is a trusted service.
func (p *Principal) IsService() bool {
	return p != nil && p.Kind == PrincipalService
}

// Credentials are the raw header values presented with a request.
type Credentials struct {
	User    string
	Service string
}

// HandlerFunc is a route handler that receives the resolved caller.
type HandlerFunc func(c *fiber.Ctx, principal *Principal) error

// AccessGuard enforces policies in front of route handlers.
type AccessGuard struct {
	identifier *Identifier
	logger     *zap.Logger
}

// NewAccessGuard constructs the guard.
func NewAccessGuard(identifier *Identifier, logger *zap.Logger) *AccessGuard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessGuard{identifier: identifier, logger: logger}
}

// Authorize evaluates policy for the given credentials. target is the subject
// id the operation acts on, or empty. The user header wins when both are set.
func (g *AccessGuard) Authorize(ctx context.Context, policy Policy, creds Credentials, target string) (*Principal, error) {
	creds.User = strings.TrimSpace(creds.User)
	creds.Service = strings.TrimSpace(creds.Service)
	if creds.User == "" && creds.Service == "" {
		return nil, ErrNoCredential
	}

	if creds.User == "" {
		if !policy.allowService {
			return nil, ErrInsufficientRole
		}
		if _, err := g.identifier.IdentifyService(creds.Service); err != nil {
			return nil, err
		}
		return &Principal{Kind: PrincipalService}, nil
	}

	identity, err := g.identifier.IdentifyUser(ctx, creds.User)
	if err != nil {
		return nil, err
	}
	if err := policy.authorizeUser(identity, target); err != nil {
		g.logger.Debug("access denied",
			zap.String("subject_id", identity.ID),
			zap.String("position", string(identity.Position)),
			zap.String("target", target))
		return nil, err
	}
	return &Principal{Kind: PrincipalUser, Identity: identity}, nil
}

// Guard wraps next with policy. next only runs when the policy is satisfied
// and receives the resolved principal, which is also stored in c.Locals.
func (g *AccessGuard) Guard(policy Policy, next HandlerFunc) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, err := g.authorize(c, policy)
		if err != nil {
			return err
		}
		return next(c, principal)
	}
}

// Middleware enforces policy for a route group and continues the chain.
func (g *AccessGuard) Middleware(policy Policy) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if _, err := g.authorize(c, policy); err != nil {
			return err
		}
		return c.Next()
	}
}

func (g *AccessGuard) authorize(c *fiber.Ctx, policy Policy) (*Principal, error) {
	creds := Credentials{
		User:    c.Get(UserAuthHeader),
		Service: c.Get(ServiceAuthHeader),
	}
	target := ""
	if policy.targetParam != "" {
		target = c.Params(policy.targetParam)
	}

	principal, err := g.Authorize(c.UserContext(), policy, creds, target)
	if err != nil {
		return nil, err
	}
	c.Locals(principalKey, principal)
	return principal, nil
}

// PrincipalFromContext retrieves the authenticated caller.
func PrincipalFromContext(c *fiber.Ctx) (*Principal, bool) {
	val := c.Locals(principalKey)
	if val == nil {
		return nil, false
	}
	principal, ok := val.(*Principal)
	return principal, ok
}
