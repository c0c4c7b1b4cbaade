package auth

import (
	"errors"
	"net/http"

	apperrors "github.com/charlesng35/authapp/pkg/errors"
)

// Renewal credential failures returned by RenewalService.
var (
	ErrRenewalNotFound = errors.New("renewal: not found")
	ErrRenewalExpired  = errors.New("renewal: expired")
	ErrRenewalInvalid  = errors.New("renewal: invalid token")
	ErrAccountDisabled = errors.New("account: disabled")
)

// Client-visible failures produced by Service.
var (
	ErrPasswordMismatch   = apperrors.NewValidation("password and confirmation do not match")
	ErrEmailTaken         = apperrors.NewConflict("email is already registered")
	ErrUsernameTaken      = apperrors.NewConflict("username is already taken")
	ErrAccountNotFound    = apperrors.New("USER_NOT_FOUND", "account not found", http.StatusNotFound)
	ErrWrongPassword      = apperrors.NewUnauthorized("password does not match")
	ErrProviderAccount    = apperrors.NewForbidden("this account signs in with an external provider")
	ErrDisabledAccount    = apperrors.NewForbidden("account is disabled")
	ErrInvalidRenewal     = apperrors.ErrInvalidToken.WithMessage("refresh token is invalid")
	ErrExpiredRenewal     = apperrors.ErrExpiredToken.WithMessage("refresh token has expired")
	ErrOAuthEmailRequired = apperrors.NewValidation("provider did not return an email address")
)
