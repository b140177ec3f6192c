// Package reconcile holds the consistency rules for shifts and invoices. The
// functions here are pure: they never touch storage and never mutate their
// inputs.
package reconcile

import "time"

const DefaultStaleAfter = 24 * time.Hour

type Options struct {
	// StaleAfter is how long a shift may stay active before it is ended.
	StaleAfter time.Duration
	// StampEndTimeOnDemotion sets endTime on shifts that lose the
	// multiple-active tie break. Off by default: losers only change status.
	StampEndTimeOnDemotion bool
	// ClearStalePointer clears an activeShift pointer that names a finished
	// shift instead of only reporting it.
	ClearStalePointer bool
}

func DefaultOptions() Options {
	return Options{StaleAfter: DefaultStaleAfter}
}

func (o Options) staleAfter() time.Duration {
	if o.StaleAfter <= 0 {
		return DefaultStaleAfter
	}
	return o.StaleAfter
}
