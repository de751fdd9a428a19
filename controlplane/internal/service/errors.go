package service

import (
	"errors"

	"captive-portal/controlplane/internal/repository"
)

var (
	// ErrTerminal is returned when a transition is attempted on a session
	// that already reached REVOKED, EXPIRED or BLOCKED.
	ErrTerminal = errors.New("session is terminal")
	// ErrUnknownGateway is returned for gw_id values with no registry entry.
	ErrUnknownGateway = errors.New("unknown gateway")
)

type ValidationError struct {
	Msg string
}

func (e ValidationError) Error() string {
	return e.Msg
}

type AuthError struct {
	Msg string
}

func (e AuthError) Error() string {
	return e.Msg
}

func IsNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound)
}

func IsValidation(err error) bool {
	var v ValidationError
	return errors.As(err, &v)
}

func IsAuth(err error) bool {
	var a AuthError
	return errors.As(err, &a)
}
