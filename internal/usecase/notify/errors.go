package notify

import "errors"

// Sentinel errors for notify use case operations.
var (
	// ErrNotificationDropped indicates that an event was dropped because the
	// queue stayed full for the whole enqueue timeout.
	ErrNotificationDropped = errors.New("notification dropped due to queue saturation")

	// ErrServiceClosed indicates that Notify was called after Shutdown.
	ErrServiceClosed = errors.New("notification service is shut down")

	// ErrRulePanicked wraps a recovered panic from one rule's processing.
	ErrRulePanicked = errors.New("rule processing panicked")

	// ErrLookupPanicked wraps a recovered panic from a rule or user repository.
	ErrLookupPanicked = errors.New("repository lookup panicked")
)
