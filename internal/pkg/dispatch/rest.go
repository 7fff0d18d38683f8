package dispatch

import (
	"context"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/endpoints"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/session"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/transport"
)

// Vocabulary selects the body format of REST device-state updates
type Vocabulary string

const (
	VocabularyWire   Vocabulary = "wire"
	VocabularyLegacy Vocabulary = "legacy"
)

func ParseVocabulary(s string) (Vocabulary, error) {
	switch Vocabulary(s) {
	case "", VocabularyWire:
		return VocabularyWire, nil
	case VocabularyLegacy:
		return VocabularyLegacy, nil
	}
	return "", fmt.Errorf("unknown REST vocabulary `%s`", s)
}

// Authenticator runs calls with a valid session and reports whether one
// is held
type Authenticator interface {
	Do(ctx context.Context, call session.Call) (*transport.Response, error)
	Authenticated() bool
}

// RESTSink posts commands to the vendor device-state endpoint
type RESTSink struct {
	auth       Authenticator
	doer       session.Doer
	endpoints  endpoints.Endpoints
	vocabulary Vocabulary
}

func NewRESTSink(auth Authenticator, doer session.Doer, ep endpoints.Endpoints, vocabulary Vocabulary) *RESTSink {
	if vocabulary == "" {
		vocabulary = VocabularyWire
	}

	return &RESTSink{
		auth:       auth,
		doer:       doer,
		endpoints:  ep,
		vocabulary: vocabulary,
	}
}

func (s *RESTSink) Name() string {
	return "rest"
}

func (s *RESTSink) Connected() bool {
	return s.auth.Authenticated()
}

func (s *RESTSink) payload(cmd command.Command) (command.Payload, error) {
	if s.vocabulary == VocabularyLegacy {
		return cmd.LegacyPayload()
	}
	return cmd.Payload()
}

func (s *RESTSink) Send(ctx context.Context, deviceID string, cmd command.Command) error {
	p, err := s.payload(cmd)
	if err != nil {
		return err
	}

	url := s.endpoints.DeviceState(deviceID)
	resp, err := s.auth.Do(ctx, func(ctx context.Context, token string) (*transport.Response, error) {
		return s.doer.Do(ctx, transport.Request{
			Method: http.MethodPost,
			URL:    url,
			Header: session.Header(nil, token),
			Body:   p,
		})
	})
	if err != nil {
		return errors.Wrapf(err, "sending %s", p)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("sending %s: status %d: %s", p, resp.StatusCode, resp.Body)
	}

	return nil
}
