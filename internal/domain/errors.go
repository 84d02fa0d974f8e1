package domain

import "errors"

var (
	ErrInvalidArgument = errors.New("invalid argument")
	ErrPositionOpen    = errors.New("a position is already open")
	ErrPositionClosed  = errors.New("position is already closed")
	ErrNotFound        = errors.New("not found")
	ErrMalformedAdvice = errors.New("malformed advice payload")
	ErrPersistence     = errors.New("persistence failure")
)
