package model

import "time"

// Cookie names set by the Mattermost web app on a logged-in session.
const (
	CookieAuthToken = "MMAUTHTOKEN"
	CookieUserID    = "MMUSERID"
	CookieCSRF      = "MMCSRF"
)

// Identifiers is the session triple needed to act as the logged-in user
// without re-authenticating. It is always written as a unit.
type Identifiers struct {
	AuthToken string
	UserID    string
	CSRFToken string
}

// Complete reports whether all three identifiers are non-empty.
func (i Identifiers) Complete() bool {
	return i.AuthToken != "" && i.UserID != "" && i.CSRFToken != ""
}

// Missing returns the cookie names of the identifiers that are empty.
func (i Identifiers) Missing() []string {
	var missing []string
	if i.AuthToken == "" {
		missing = append(missing, CookieAuthToken)
	}
	if i.UserID == "" {
		missing = append(missing, CookieUserID)
	}
	if i.CSRFToken == "" {
		missing = append(missing, CookieCSRF)
	}
	return missing
}

// Settings holds the user-configured half of the session record.
type Settings struct {
	Domain        string // e.g., "chat.example.com"
	DesiredStatus Status // empty when unset
}

// SessionCredentials is the single persisted session record: the identifiers
// captured from traffic plus the configured target domain and status.
type SessionCredentials struct {
	Identifiers
	Settings
	UpdatedAt time.Time // last identifier capture; zero if never captured
}

// Target returns the remote target addressed by this record.
func (c SessionCredentials) Target() Target {
	return Target{Domain: c.Domain, Identifiers: c.Identifiers}
}

// MissingFields lists the fields a reassertion tick needs but does not have.
// It does not include DesiredStatus, which is checked separately.
func (c SessionCredentials) MissingFields() []string {
	var missing []string
	if c.Domain == "" {
		missing = append(missing, "domain")
	}
	if c.AuthToken == "" {
		missing = append(missing, "authToken")
	}
	if c.UserID == "" {
		missing = append(missing, "userId")
	}
	if c.CSRFToken == "" {
		missing = append(missing, "csrfToken")
	}
	return missing
}

// Target addresses a user's status on one Mattermost deployment.
type Target struct {
	Domain string
	Identifiers
}
