package navgate

import (
	"context"

	"github.com/goliatone/go-navgate/middleware/sessionware"
	"github.com/goliatone/go-router"
)

// ValidationListener aliases the sessionware listener so consumers can use navgate helpers directly.
type ValidationListener = sessionware.ValidationListener

// SessionwareValidator adapts a navgate token validator to the middleware's
// local interface, which differs only in the claims return type.
func SessionwareValidator(validator TokenValidator) sessionware.TokenValidator {
	return sessionwareValidatorAdapter{validator: validator}
}

type sessionwareValidatorAdapter struct {
	validator TokenValidator
}

func (a sessionwareValidatorAdapter) Validate(tokenString string) (sessionware.SessionClaims, error) {
	if a.validator == nil {
		return nil, ErrUnableToDecodeSession
	}
	claims, err := a.validator.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return claims, nil
}

// ContextEnricherAdapter adapts sessionware.SessionClaims to navgate.SessionClaims and stores
// them in the standard context for downstream use.
func ContextEnricherAdapter(c context.Context, claims sessionware.SessionClaims) context.Context {
	sessionClaims, ok := claims.(SessionClaims)
	if !ok {
		return c
	}

	return WithClaimsContext(c, sessionClaims)
}

// StoreSyncListener returns a validation listener that folds every validated
// session into the store, so navigation state tracks requests as they arrive
// instead of waiting for an explicit hydration pass.
func StoreSyncListener(store *SessionStore) ValidationListener {
	return func(ctx router.Context, claims sessionware.SessionClaims) error {
		if store == nil {
			return nil
		}
		sessionClaims, ok := claims.(SessionClaims)
		if !ok {
			return nil
		}
		session, err := SessionFromClaims(sessionClaims)
		if err != nil || session.User == nil {
			return nil
		}
		store.SetSession(ctx.Context(), session.User)
		return nil
	}
}

// RegisterValidationListeners appends listeners to a sessionware.Config in a safe, reusable way.
func RegisterValidationListeners(cfg *sessionware.Config, listeners ...ValidationListener) {
	if cfg == nil || len(listeners) == 0 {
		return
	}
	cfg.ValidationListeners = append(cfg.ValidationListeners, listeners...)
}
