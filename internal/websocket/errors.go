// internal/websocket/errors.go
package websocket

import "errors"

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrInvalidToken       = errors.New("invalid token")
	ErrHubClosed          = errors.New("websocket hub is closed")
	ErrBroadcastQueueFull = errors.New("broadcast queue is full")
)
