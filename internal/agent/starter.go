package agent

import (
	"context"

	"github.com/prepvoice/prepvoice/internal/voice"
)

// clientStarter adapts *voice.Client to the CallStarter interface.
type clientStarter struct {
	client *voice.Client
}

// NewVoiceStarter wraps the voice client for use by the registry.
func NewVoiceStarter(c *voice.Client) CallStarter {
	return clientStarter{client: c}
}

func (s clientStarter) Start(ctx context.Context, cfg voice.CallConfig) (Call, error) {
	call, err := s.client.Start(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return call, nil
}
