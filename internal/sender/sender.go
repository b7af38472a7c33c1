package sender

import (
	"context"
	"time"

	"github.com/blockpreventer/bridge/internal/model"
)

// Request is one outbound delivery through a specific profile.
type Request struct {
	Profile   *model.Profile
	Recipient string
	Content   string
	Mode      model.MessageMode
}

// Result is what the provider reported for the attempt.
type Result struct {
	ProviderMessageID string
	ResponseTime      time.Duration
}

// Sender delivers a message through the external messaging provider using
// the profile's own credentials.
type Sender interface {
	Send(ctx context.Context, req *Request) (*Result, error)
}
