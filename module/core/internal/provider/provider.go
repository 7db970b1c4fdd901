package provider

import "context"

// PushMessage is one push payload. Data values must be strings; the
// provider wire format does not carry numbers.
type PushMessage struct {
	Token string
	Title string
	Body  string
	Data  map[string]string
}

type PushSender interface {
	SendPush(ctx context.Context, msg *PushMessage) error
}

// MessageSender is one text-delivery channel. Implementations must treat
// every Send as independent; a failed send carries no state into the next.
type MessageSender interface {
	Channel() string
	Send(ctx context.Context, from, to, body string) error
}
