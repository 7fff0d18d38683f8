package shadow

import (
	"context"
	"crypto/sha1"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/pkg/errors"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/session"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/transport"
)

// IoTCredentials are the transient broker credentials issued for an
// authenticated account
type IoTCredentials struct {
	Endpoint string `json:"endpoint"`
	Port     int    `json:"port"`
	ClientID string `json:"client_id"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func hashOf(s string) string {
	sum := sha1.Sum([]byte(s))
	return base64.StdEncoding.EncodeToString(sum[:])
}

// obfuscate secrets when stringified
//
func (c IoTCredentials) String() string {
	return fmt.Sprintf("Endpoint [%s:%d], ClientID [%s], Username [%s], Password [%s]",
		c.Endpoint, c.Port, c.ClientID, hashOf(c.Username), hashOf(c.Password))
}

// Exchanger trades the account session for IoT credentials
type Exchanger interface {
	Exchange(ctx context.Context) (IoTCredentials, error)
}

// Authenticator runs a call with a valid session
type Authenticator interface {
	Do(ctx context.Context, call session.Call) (*transport.Response, error)
}

// CloudExchanger fetches IoT credentials from the vendor cloud using the
// account session
type CloudExchanger struct {
	auth Authenticator
	doer session.Doer
	url  string
}

func NewCloudExchanger(auth Authenticator, doer session.Doer, url string) *CloudExchanger {
	return &CloudExchanger{
		auth: auth,
		doer: doer,
		url:  url,
	}
}

type credentialsResponse struct {
	Data *IoTCredentials `json:"data"`
}

func (e *CloudExchanger) Exchange(ctx context.Context) (IoTCredentials, error) {
	resp, err := e.auth.Do(ctx, func(ctx context.Context, token string) (*transport.Response, error) {
		return e.doer.Do(ctx, transport.Request{
			Method: http.MethodGet,
			URL:    e.url,
			Header: session.Header(nil, token),
		})
	})
	if err != nil {
		return IoTCredentials{}, errors.Wrap(err, "requesting IoT credentials")
	}

	if resp.StatusCode != http.StatusOK {
		return IoTCredentials{}, fmt.Errorf("IoT credentials request failed with status %d", resp.StatusCode)
	}

	cr := credentialsResponse{}
	if err := resp.DecodeJSON(&cr); err != nil {
		return IoTCredentials{}, errors.Wrap(err, "parsing IoT credentials")
	}

	if cr.Data == nil || cr.Data.Endpoint == "" {
		return IoTCredentials{}, errors.New("no IoT endpoint in credentials response")
	}

	return *cr.Data, nil
}
