package model

// ChannelViewPath is the API path the web app POSTs to whenever the user
// views a channel. Seeing it means the browser holds a live session.
const ChannelViewPath = "/api/v4/channels/members/me/view"

// ObservedRequest is the metadata of an outgoing browser request as seen by a
// traffic observer. Observers never modify or block the request.
type ObservedRequest struct {
	URL    string
	Method string
}

// Cookie is a browser cookie as reported by a cookie enumeration.
// Domain may be empty when the source does not report it.
type Cookie struct {
	Name   string
	Value  string
	Domain string
}
