package usecase

import (
	"context"
	"time"
)

// Transport is the outbound messaging channel. Synchronous from our point
// of view even if the provider queues internally; the returned id is the
// provider's message identifier.
type Transport interface {
	Send(ctx context.Context, to, body string) (string, error)
}

// StageScheduler holds at most one armed timer per lead. Schedule reports
// false when the lead was cancelled while its dispatch was still running,
// in which case nothing was armed. Dispatches entered outside a timer fire
// (the enrollment send) run under Guard so the cancel tombstone covers
// them too.
type StageScheduler interface {
	Schedule(leadID string, fireAt time.Time, fire func()) bool
	Cancel(leadID string)
	Guard(leadID string, fn func())
}
