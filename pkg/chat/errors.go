package chat

import "github.com/pkg/errors"

// ErrInvalidInput marks local validation failures (empty message after
// trimming, unsupported length). These never reach the network.
var ErrInvalidInput = errors.New("invalid input")

// ErrInvalidState marks operations against a session that does not exist
// locally or is no longer usable.
var ErrInvalidState = errors.New("invalid session state")
