package shadow

import (
	"context"
	"time"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
)

// SourceTag marks updates sent by this client
const SourceTag = "anmq"

// Sink delivers commands as device-shadow updates
type Sink struct {
	bridge *Bridge
	things map[string]string
	now    func() time.Time
}

// NewSink publishes through bridge.  things maps device IDs to shadow
// thing names where they differ.
func NewSink(bridge *Bridge, things map[string]string) *Sink {
	if things == nil {
		things = map[string]string{}
	}
	return &Sink{
		bridge: bridge,
		things: things,
		now:    time.Now,
	}
}

func (s *Sink) Name() string {
	return "shadow"
}

func (s *Sink) Connected() bool {
	return s.bridge.Connected()
}

func (s *Sink) thing(deviceID string) string {
	if t, ok := s.things[deviceID]; ok && t != "" {
		return t
	}
	return deviceID
}

// Send stamps the payload with the send time and source tag and
// publishes it
func (s *Sink) Send(ctx context.Context, deviceID string, cmd command.Command) error {
	p, err := cmd.Payload()
	if err != nil {
		return err
	}

	fields := p.Clone()
	fields["ts"] = s.now().UnixMilli()
	fields["src"] = SourceTag

	return s.bridge.Publish(ctx, s.thing(deviceID), Update(fields))
}
