package domain

// InboundEvent is one message from a user, as delivered by the transport.
// IsCommand is a transport hint; the engine also recognizes a leading "/"
// so a mislabeled event cannot bypass state handling.
type InboundEvent struct {
	UserID    string
	Text      string
	IsCommand bool
}
