package handlers

import "errors"

var (
	errNotAuthenticated = errors.New("not authenticated")
	errInvalidID        = errors.New("invalid id")
)
