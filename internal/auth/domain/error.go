package domain

import "errors"

var (
	ErrUnauthorized  = errors.New("unauthorized")
	ErrInvalidToken  = errors.New("invalid_token")
	ErrTokenExpired  = errors.New("token_expired")
	ErrMissingSecret = errors.New("auth_jwt_secret_missing")
	ErrInvalidActor  = errors.New("invalid_actor")
)
