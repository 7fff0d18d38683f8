package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/net/publicsuffix"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/metrics"
	"github.com/jake-scott/bluestar-bridge/version"
)

const DefaultTimeout = time.Second * 30

// cap on response bodies read into memory
const maxBodySize = 4 * 1024 * 1024

// Request describes one call to the vendor cloud.  Body is JSON encoded
// when set.
type Request struct {
	Method string
	URL    string
	Header http.Header
	Query  url.Values
	Body   interface{}
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// DecodeJSON unmarshals the response body into dst
func (r *Response) DecodeJSON(dst interface{}) error {
	if err := json.Unmarshal(r.Body, dst); err != nil {
		return errors.Wrap(err, "decoding response body")
	}
	return nil
}

// Transport issues HTTP requests with a bounded timeout and a fixed set of
// default headers.  The underlying connection pool is created on first use
// and released by Close.
type Transport struct {
	timeout time.Duration
	headers http.Header

	mu     sync.Mutex
	client *http.Client
}

func New() *Transport {
	h := http.Header{}
	h.Set("Content-Type", "application/json")
	h.Set("Accept", "application/json")
	h.Set("User-Agent", version.UserAgent())

	return &Transport{
		timeout: DefaultTimeout,
		headers: h,
	}
}

func (t *Transport) WithTimeout(d time.Duration) *Transport {
	nt := &Transport{
		timeout: d,
		headers: t.headers.Clone(),
	}
	return nt
}

func (t *Transport) WithUserAgent(ua string) *Transport {
	nt := &Transport{
		timeout: t.timeout,
		headers: t.headers.Clone(),
	}
	nt.headers.Set("User-Agent", ua)
	return nt
}

// DefaultHeaders returns a copy of the headers sent on every request
func (t *Transport) DefaultHeaders() http.Header {
	return t.headers.Clone()
}

func (t *Transport) httpClient() (*http.Client, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client != nil {
		return t.client, nil
	}

	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating cookie jar")
	}

	t.client = &http.Client{
		Timeout: t.timeout,
		Jar:     jar,
		Transport: &http.Transport{
			Proxy:               http.ProxyFromEnvironment,
			MaxIdleConnsPerHost: 4,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	return t.client, nil
}

// Do sends the request and reads the whole response body.  Timeouts and
// network failures are returned as errors; no retry happens here.
func (t *Transport) Do(ctx context.Context, r Request) (*Response, error) {
	client, err := t.httpClient()
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if r.Body != nil {
		b, err := json.Marshal(r.Body)
		if err != nil {
			return nil, errors.Wrap(err, "encoding request body")
		}
		body = bytes.NewReader(b)
	}

	reqURL := r.URL
	if len(r.Query) > 0 {
		u, err := url.Parse(r.URL)
		if err != nil {
			return nil, errors.Wrapf(err, "parsing url %s", r.URL)
		}
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
		reqURL = u.String()
	}

	if ctx == nil {
		ctx = context.Background()
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, reqURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}

	for k, vs := range t.headers {
		req.Header[k] = append([]string(nil), vs...)
	}
	for k, vs := range r.Header {
		req.Header[http.CanonicalHeaderKey(k)] = append([]string(nil), vs...)
	}

	resp, err := client.Do(req)
	if err != nil {
		metrics.VendorRequest(r.Method, 0)
		if IsTimeout(err) {
			return nil, errors.Wrapf(err, "request timeout for %s %s", r.Method, r.URL)
		}
		return nil, errors.Wrapf(err, "request error for %s %s", r.Method, r.URL)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		metrics.VendorRequest(r.Method, 0)
		return nil, errors.Wrapf(err, "reading response body for %s %s", r.Method, r.URL)
	}

	metrics.VendorRequest(r.Method, resp.StatusCode)
	logging.Logger(ctx).Debugf("%s %s: %d", r.Method, r.URL, resp.StatusCode)

	return &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       respBody,
	}, nil
}

// Close releases the connection pool.  It is safe to call more than once;
// a later request creates a fresh pool.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.client == nil {
		return nil
	}

	t.client.CloseIdleConnections()
	t.client = nil
	return nil
}

// IsTimeout reports whether err came from a request deadline
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ne net.Error
	if errors.As(err, &ne) {
		return ne.Timeout()
	}

	return false
}
