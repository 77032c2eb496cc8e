// Package exchange is the venue adapter: it frames, signs, and posts
// actions, manages the session lifecycle, and exposes the read endpoints
// the engine needs. Every mutating call records its outcome in the local
// order tracker, which stands in for the order query the venue does not
// offer.
package exchange

import (
	"errors"
	"fmt"

	"zo-gridbot/internal/wire"
)

var (
	// ErrAuthFailure covers signature rejections and any session failure
	// that survived the one retry the adapter performs. It is fatal.
	ErrAuthFailure = errors.New("exchange: authentication failure")

	// ErrSessionExpired is the venue reporting the session key is no
	// longer valid. The adapter retries once with a fresh session before
	// escalating to ErrAuthFailure.
	ErrSessionExpired = errors.New("exchange: session expired")

	// ErrTransport covers network failures, timeouts, and 5xx responses.
	ErrTransport = errors.New("exchange: transport error")

	// ErrOrderNotFound means a cancel targeted an order the venue no
	// longer has. For this venue that is how fills are discovered.
	ErrOrderNotFound = errors.New("exchange: order not found")

	// ErrPostOnlyWouldMatch means a post-only order would have crossed.
	// The engine drops the rung silently.
	ErrPostOnlyWouldMatch = errors.New("exchange: post-only order would match")

	// ErrInvalidOrder is the venue rejecting the order's parameters.
	ErrInvalidOrder = errors.New("exchange: invalid order")
)

// receiptError maps a receipt error code to the adapter's sentinel errors.
// Nil for success.
func receiptError(code wire.ErrorCode) error {
	switch code {
	case wire.ErrNone:
		return nil
	case wire.ErrSignatureMismatch:
		return fmt.Errorf("%w: %s", ErrAuthFailure, code)
	case wire.ErrSessionExpired:
		return ErrSessionExpired
	case wire.ErrSessionNotFound:
		return fmt.Errorf("%w: %s", ErrSessionExpired, code)
	case wire.ErrDuplicateSession:
		return fmt.Errorf("%w: %s", ErrAuthFailure, code)
	case wire.ErrOrderNotFound:
		return ErrOrderNotFound
	case wire.ErrPostOnlyWouldMatch:
		return ErrPostOnlyWouldMatch
	case wire.ErrInvalidOrder:
		return ErrInvalidOrder
	default:
		return fmt.Errorf("%w: unrecognized receipt code %d", ErrTransport, code)
	}
}
