package application

import "errors"

// Sentinel errors returned by the application services. All of them are
// terminal to the current operation only.
var (
	// ErrNotChannelView is returned by CaptureService.Observe for a request
	// that is not a channel-view acknowledgement.
	ErrNotChannelView = errors.New("not a channel view request")

	// ErrCaptureIncomplete indicates fewer than three session cookies were found.
	ErrCaptureIncomplete = errors.New("capture incomplete")

	// ErrMissingCredentials indicates the stored record cannot drive a tick yet.
	ErrMissingCredentials = errors.New("missing credentials")

	// ErrInvalidSettings indicates a settings update was rejected.
	ErrInvalidSettings = errors.New("invalid settings")
)
