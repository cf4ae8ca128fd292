package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-chi/jwtauth/v5"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	TokenTypeAccess = "access"
	TokenTypeStream = "sse"

	streamTokenTTL = 5 * time.Minute
)

var ErrInvalidTokenType = errors.New("invalid token type")

// StreamClaims identify the subscriber of an event stream.
type StreamClaims struct {
	UserID    string
	CompanyID string
}

type Service interface {
	// GenerateAccessToken issues a bearer token. Access tokens normally come from
	// the identity provider; this is used by tooling and tests.
	GenerateAccessToken(userID string, companyID string) (token string, expiresAt int64, err error)
	GenerateStreamToken(userID string, companyID string) (token string, expiresIn int, err error)
	ValidateStreamToken(tokenString string) (StreamClaims, error)
	JWTAuth() *jwtauth.JWTAuth
}

type JWTService struct {
	accessTokenExpiration time.Duration
	tokenAuth             *jwtauth.JWTAuth
}

func NewJWTService(secretKey string, accessTokenExpiration string) (Service, error) {
	exp, err := time.ParseDuration(accessTokenExpiration)
	if err != nil {
		return nil, fmt.Errorf("invalid access token expiration %q: %w", accessTokenExpiration, err)
	}
	return &JWTService{
		accessTokenExpiration: exp,
		tokenAuth:             jwtauth.New("HS256", []byte(secretKey), nil, jwt.WithAcceptableSkew(30*time.Second)),
	}, nil
}

func (j *JWTService) JWTAuth() *jwtauth.JWTAuth {
	return j.tokenAuth
}

func (j *JWTService) GenerateAccessToken(userID string, companyID string) (token string, expiresAt int64, err error) {
	expiresAt = time.Now().Add(j.accessTokenExpiration).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    userID,
		"company_id": companyID,
		"type":       TokenTypeAccess,
		"exp":        expiresAt,
	})
	return tokenString, expiresAt, err
}

// GenerateStreamToken issues a short-lived token for EventSource clients,
// which cannot send an Authorization header.
func (j *JWTService) GenerateStreamToken(userID string, companyID string) (token string, expiresIn int, err error) {
	expiresAt := time.Now().Add(streamTokenTTL).Unix()

	_, tokenString, err := j.tokenAuth.Encode(map[string]interface{}{
		"user_id":    userID,
		"company_id": companyID,
		"type":       TokenTypeStream,
		"exp":        expiresAt,
	})
	if err != nil {
		return "", 0, err
	}

	return tokenString, int(streamTokenTTL.Seconds()), nil
}

func (j *JWTService) ValidateStreamToken(tokenString string) (StreamClaims, error) {
	token, err := jwtauth.VerifyToken(j.tokenAuth, tokenString)
	if err != nil {
		return StreamClaims{}, err
	}

	tokenType, ok := token.Get("type")
	if !ok || tokenType != TokenTypeStream {
		return StreamClaims{}, ErrInvalidTokenType
	}

	var claims StreamClaims
	if v, ok := token.Get("user_id"); ok {
		claims.UserID, _ = v.(string)
	}
	if v, ok := token.Get("company_id"); ok {
		claims.CompanyID, _ = v.(string)
	}
	if claims.UserID == "" || claims.CompanyID == "" {
		return StreamClaims{}, jwt.ErrInvalidJWT()
	}

	return claims, nil
}
