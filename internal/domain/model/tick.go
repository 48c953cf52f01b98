package model

import "time"

// TickResult records what a single reassertion tick did.
type TickResult struct {
	ID         string
	Outcome    TickOutcome
	Observed   Status // remote status read before writing; empty under PolicyAlways
	Desired    Status
	Missing    []string
	Error      string
	StartedAt  time.Time
	FinishedAt time.Time
}
