package auth

import (
	"donations/internal/model"
)

// DenialReason tags why the gate refused a request.
type DenialReason int

const (
	// ReasonLoginRequired means no user is logged in.
	ReasonLoginRequired DenialReason = iota + 1
	// ReasonInactiveAccount means the user is logged in but deactivated.
	ReasonInactiveAccount
	// ReasonForbidden means the user lacks the required role.
	ReasonForbidden
)

func (r DenialReason) String() string {
	switch r {
	case ReasonLoginRequired:
		return "login_required"
	case ReasonInactiveAccount:
		return "inactive_account"
	case ReasonForbidden:
		return "forbidden"
	}
	return "unknown"
}

// Denial is the gate's rejection. Boundary layers decide how to render it.
type Denial struct {
	Reason DenialReason
}

func (d *Denial) Error() string {
	switch d.Reason {
	case ReasonLoginRequired:
		return "login required"
	case ReasonInactiveAccount:
		return "inactive user"
	case ReasonForbidden:
		return "not enough permissions"
	}
	return "access denied"
}

// Is matches denials by reason so errors.Is works against the sentinels below.
func (d *Denial) Is(target error) bool {
	t, ok := target.(*Denial)
	return ok && t.Reason == d.Reason
}

var (
	ErrLoginRequired   = &Denial{Reason: ReasonLoginRequired}
	ErrInactiveAccount = &Denial{Reason: ReasonInactiveAccount}
	ErrForbidden       = &Denial{Reason: ReasonForbidden}
)

// RequireAuthenticated returns the user behind id or ErrLoginRequired.
func RequireAuthenticated(id Identity) (*model.User, error) {
	if id.IsAnonymous() {
		return nil, ErrLoginRequired
	}
	return id.User, nil
}

// RequireActive additionally rejects deactivated accounts.
func RequireActive(id Identity) (*model.User, error) {
	user, err := RequireAuthenticated(id)
	if err != nil {
		return nil, err
	}
	if !user.IsActive {
		return nil, ErrInactiveAccount
	}
	return user, nil
}

// RequireRole additionally rejects users whose role is not role.
func RequireRole(id Identity, role model.Role) (*model.User, error) {
	user, err := RequireActive(id)
	if err != nil {
		return nil, err
	}
	if user.Role != role {
		return nil, ErrForbidden
	}
	return user, nil
}
