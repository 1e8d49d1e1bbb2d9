package auth

import (
	"github.com/google/uuid"

	"github.com/spec-kit/workforce-auth/internal/domain"
)

// Policy is the authorization requirement attached to one operation. Build it
// once at route registration; it is not modified afterwards.
type Policy struct {
	roles         map[domain.Position]struct{}
	allowSelf     bool
	targetParam   string
	requireActive bool
	allowService  bool
}

// PolicyOption configures a Policy.
type PolicyOption func(*Policy)

// WithRoles restricts the operation to callers holding one of roles. No roles
// means any identity that passes the other checks.
func WithRoles(roles ...domain.Position) PolicyOption {
	return func(p *Policy) {
		for _, role := range roles {
			p.roles[role] = struct{}{}
		}
	}
}

// AllowSelf lets a caller act on the resource whose id, read from route
// parameter param, equals their own id regardless of role.
func AllowSelf(param string) PolicyOption {
	return func(p *Policy) {
		p.allowSelf = true
		p.targetParam = param
	}
}

// TargetParam names the route parameter holding the target subject id
// without granting self-access.
func TargetParam(param string) PolicyOption {
	return func(p *Policy) {
		p.targetParam = param
	}
}

// RequireActive rejects callers whose status is not active.
func RequireActive() PolicyOption {
	return func(p *Policy) {
		p.requireActive = true
	}
}

// AllowServiceCaller accepts verified inter-service callers.
func AllowServiceCaller() PolicyOption {
	return func(p *Policy) {
		p.allowService = true
	}
}

// NewPolicy builds an immutable policy.
func NewPolicy(opts ...PolicyOption) Policy {
	p := Policy{roles: make(map[domain.Position]struct{})}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// AllowsRole reports whether role satisfies the role requirement.
func (p Policy) AllowsRole(role domain.Position) bool {
	if len(p.roles) == 0 {
		return true
	}
	_, ok := p.roles[role]
	return ok
}

// AllowsServiceCaller reports whether service callers are trusted.
func (p Policy) AllowsServiceCaller() bool {
	return p.allowService
}

// authorizeUser applies steps 4-6 of the evaluation order to a resolved user.
func (p Policy) authorizeUser(identity *domain.IdentitySnapshot, target string) error {
	if p.requireActive && !identity.IsActive() {
		return ErrInsufficientRole
	}
	if p.allowSelf && target != "" && sameSubject(identity.ID, target) {
		return nil
	}
	if !p.AllowsRole(identity.Position) {
		return ErrInsufficientRole
	}
	return nil
}

func sameSubject(a, b string) bool {
	ua, errA := uuid.Parse(a)
	ub, errB := uuid.Parse(b)
	if errA == nil && errB == nil {
		return ua == ub
	}
	return a == b
}
