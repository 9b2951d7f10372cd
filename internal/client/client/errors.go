package client

import "errors"

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrNotConnected = errors.New("not connected")
	ErrClosedByPeer = errors.New("connection closed by server")
)
