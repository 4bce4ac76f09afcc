package navgate

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ensureTokenID assigns a random jti when claims carry none so every minted
// token can be traced individually.
func ensureTokenID(claims *jwt.RegisteredClaims) {
	if claims == nil || claims.ID != "" {
		return
	}
	claims.ID = uuid.NewString()
}

// HasUserUUID reports whether GetUserUUID will succeed.
func HasUserUUID(session Session) bool {
	_, err := GetUserUUID(session)
	return err == nil
}

// GetUserUUID parses the session user's ID as a UUID.
func GetUserUUID(session Session) (uuid.UUID, error) {
	if session.User == nil || session.User.ID == "" {
		return uuid.Nil, errors.New("session has no user ID", errors.CategoryBadInput).
			WithCode(errors.CodeBadRequest)
	}

	id, err := uuid.Parse(session.User.ID)
	if err != nil {
		return uuid.Nil, errors.Wrap(err, errors.CategoryBadInput, "session user ID is not a UUID").
			WithCode(errors.CodeBadRequest).
			WithMetadata(map[string]any{"user_id": session.User.ID})
	}

	return id, nil
}
