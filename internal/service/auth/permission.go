package auth

import (
	"adminauth-service/internal/domain/auth"
	xerrors "adminauth-service/internal/pkg/errors"
)

// Predicate decides whether a permission set satisfies a requirement.
type Predicate func(perms auth.PermissionSet) bool

func Requires(p auth.Permission) Predicate {
	return func(perms auth.PermissionSet) bool {
		return perms.Has(p)
	}
}

func AnyOf(ps ...auth.Permission) Predicate {
	return func(perms auth.PermissionSet) bool {
		for _, p := range ps {
			if perms.Has(p) {
				return true
			}
		}
		return false
	}
}

func AllOf(ps ...auth.Permission) Predicate {
	return func(perms auth.PermissionSet) bool {
		for _, p := range ps {
			if !perms.Has(p) {
				return false
			}
		}
		return true
	}
}

func Not(pred Predicate) Predicate {
	return func(perms auth.PermissionSet) bool {
		return !pred(perms)
	}
}

// PermissionEvaluator answers authorization questions from the claims already
// on the identity. It never touches storage.
type PermissionEvaluator struct{}

// Authorize fails for unauthenticated callers before pred is consulted. A nil
// pred only requires authentication.
func (PermissionEvaluator) Authorize(identity *auth.Identity, pred Predicate) bool {
	if !identity.IsAuthenticated() {
		return false
	}
	if pred == nil {
		return true
	}
	return pred(identity.Permissions)
}

// Check is Authorize mapped to ErrUnauthorized (401) or ErrForbidden (403).
func (e PermissionEvaluator) Check(identity *auth.Identity, pred Predicate) error {
	if !identity.IsAuthenticated() {
		return xerrors.ErrUnauthorized
	}
	if !e.Authorize(identity, pred) {
		return xerrors.ErrForbidden
	}
	return nil
}
