package store

import "errors"

var (
	// ErrIDGeneration is returned when a message id cannot be minted
	// because the tree is unreachable. Nothing has been written.
	ErrIDGeneration = errors.New("message id generation failed")

	// ErrWriteFailed is returned when the dual-path update did not commit.
	ErrWriteFailed = errors.New("message write failed")

	// ErrSubscription marks a live subscription that ended abnormally.
	ErrSubscription = errors.New("live subscription failed")

	// ErrSlowSubscriber is the cause recorded when a subscriber stops
	// draining its buffer of live appends.
	ErrSlowSubscriber = errors.New("subscriber fell behind live appends")

	ErrNotFound = errors.New("not found")
	ErrClosed   = errors.New("store closed")
)
