package jwt

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-chi/jwtauth/v5"
)

var ErrMissingClaims = errors.New("user_id or company_id claim is missing or invalid")

// Actor is the authenticated caller of a request.
type Actor struct {
	UserID    string
	CompanyID string
}

// ActorFromContext reads the caller from the verified token placed in ctx by jwtauth.Verifier.
func ActorFromContext(ctx context.Context) (Actor, error) {
	_, claims, err := jwtauth.FromContext(ctx)
	if err != nil {
		return Actor{}, fmt.Errorf("failed to extract claims from context: %w", err)
	}

	userID, _ := claims["user_id"].(string)
	companyID, _ := claims["company_id"].(string)
	if userID == "" || companyID == "" {
		return Actor{}, ErrMissingClaims
	}

	return Actor{UserID: userID, CompanyID: companyID}, nil
}
