package service

import (
	"errors"

	"github.com/secissues/secissues-go/internal/repository"
)

// Validation errors. Handlers map these to 400.
var (
	ErrNameRequired        = errors.New("name is required")
	ErrEmailRequired       = errors.New("email is required")
	ErrPasswordRequired    = errors.New("password is required")
	ErrTitleRequired       = errors.New("title is required")
	ErrTitleTooLong        = errors.New("title must be at most 255 characters")
	ErrFieldTooLong        = errors.New("name and email must be at most 255 characters")
	ErrDescriptionRequired = errors.New("description is required")
	ErrInvalidType         = errors.New("type must be one of: Cloud Security, VAPT, Reteam Assessment")
	ErrInvalidStatus       = errors.New("status must be one of: open, in-progress, resolved")
	ErrInvalidRange        = errors.New("invalid page range")
)

var (
	ErrAlreadyRegistered  = errors.New("already registered")
	ErrNoSuchUser         = errors.New("no such user")
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrUserNotFound       = errors.New("user not found")
	ErrForbidden          = errors.New("not the owner of this resource")
	ErrPostNotFound       = errors.New("post not found")

	// ErrStoreUnavailable aliases the repository error so callers only
	// need to import this package.
	ErrStoreUnavailable = repository.ErrStoreUnavailable
)
