package socket

import "errors"

var (
	ErrNotListen = errors.New("socket not listen")
	ErrClosed    = errors.New("socket closed")
)
