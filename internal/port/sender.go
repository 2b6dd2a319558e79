package port

import "context"

// Sender delivers a reply to a user over the external transport.
type Sender interface {
	SendMessage(ctx context.Context, userID, text string) error
}
