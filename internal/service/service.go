package service

import (
	"errors"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

var (
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidTarget   = errors.New("invalid redirect target")
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrNotFound        = errors.New("not found")
	ErrInactive        = errors.New("qr code is inactive")
	ErrGenerateID      = errors.New("failed to generate unique identifier")
)

// validAbsoluteURL reports whether raw parses as an absolute URL with a host.
func validAbsoluteURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme != "" && u.Host != ""
}

// validID filters ids that can never exist before they reach the store.
func validID(id string) bool {
	_, err := uuid.Parse(strings.TrimSpace(id))
	return err == nil
}
