package model

// Status represents a Mattermost presence status.
type Status string

const (
	StatusOnline  Status = "online"
	StatusAway    Status = "away"
	StatusOffline Status = "offline"
	StatusDND     Status = "dnd"
)

// Valid reports whether s is one of the statuses Mattermost accepts.
func (s Status) Valid() bool {
	switch s {
	case StatusOnline, StatusAway, StatusOffline, StatusDND:
		return true
	default:
		return false
	}
}

// ReassertPolicy decides when a tick writes the desired status.
type ReassertPolicy string

const (
	PolicyAlways     ReassertPolicy = "always"      // Write every tick without reading.
	PolicyOnMismatch ReassertPolicy = "on-mismatch" // Read first, write if it differs.
	PolicyWhenAway   ReassertPolicy = "when-away"   // Read first, write only if away.
)

// Valid reports whether p is a known policy.
func (p ReassertPolicy) Valid() bool {
	switch p {
	case PolicyAlways, PolicyOnMismatch, PolicyWhenAway:
		return true
	default:
		return false
	}
}

// TickOutcome classifies the result of one reassertion tick.
type TickOutcome string

const (
	TickWritten          TickOutcome = "written"
	TickUnchanged        TickOutcome = "unchanged"
	TickSkippedMissing   TickOutcome = "skipped_missing_credentials"
	TickSkippedNoDesired TickOutcome = "skipped_no_desired_status"
	TickFailed           TickOutcome = "failed"
)
