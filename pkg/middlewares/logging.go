package middlewares

import (
	"bytes"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/metrics"
)

const TxnIDHeader = "X-Txn-ID"

// request and response bodies are captured up to this size
const maxLoggedBody = 2048

const unmatchedRoute = "unmatched"

// statusRecorder remembers the status and size of a response, and with
// capture set, the start of its body
type statusRecorder struct {
	http.ResponseWriter

	status  int
	size    int
	capture bool
	body    bytes.Buffer
}

func (sr *statusRecorder) WriteHeader(statusCode int) {
	sr.status = statusCode
	sr.ResponseWriter.WriteHeader(statusCode)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	size, err := sr.ResponseWriter.Write(b)
	sr.size += size

	if sr.capture {
		keep(&sr.body, b[:size])
	}
	return size, err
}

// bodyCapture keeps the first bytes read from a request body
type bodyCapture struct {
	io.ReadCloser
	body bytes.Buffer
}

func (bc *bodyCapture) Read(b []byte) (int, error) {
	size, err := bc.ReadCloser.Read(b)
	keep(&bc.body, b[:size])
	return size, err
}

func keep(buf *bytes.Buffer, b []byte) {
	if room := maxLoggedBody - buf.Len(); room > 0 && len(b) > 0 {
		buf.Write(b[:min(len(b), room)])
	}
}

// routeOf returns the template of the matched route so device ids never
// become label values
func routeOf(r *http.Request) string {
	if cr := mux.CurrentRoute(r); cr != nil {
		if tpl, err := cr.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return unmatchedRoute
}

// txnIDFor keeps a well formed transaction ID sent by the caller, so a
// host can follow one command through its own logs and ours
func txnIDFor(r *http.Request) string {
	if id := r.Header.Get(TxnIDHeader); correlationIDRegexp.MatchString(id) {
		return id
	}
	return uuid.New().String()
}

type LoggingMw struct {
	logBodies bool
	next      http.Handler
}

func NewLoggingMw(logBodies bool) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return NewLogging(logBodies, next)
	}
}

func NewLogging(logBodies bool, next http.Handler) *LoggingMw {
	return &LoggingMw{next: next, logBodies: logBodies}
}

// ServeHTTP tags the request with a transaction ID and the addressed
// device, then writes one audit entry and counts the request once the
// handler returns
func (mw *LoggingMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	startTime := time.Now()
	txnID := txnIDFor(r)

	// must be set before the handler writes a body
	rw.Header().Set(TxnIDHeader, txnID)

	ctx := logging.WithTxnID(r.Context(), txnID)
	deviceID := mux.Vars(r)["id"]
	if deviceID != "" {
		ctx = logging.WithDeviceID(ctx, deviceID)
	}
	r = r.WithContext(ctx)

	var reqBody *bodyCapture
	if mw.logBodies && r.Body != nil {
		reqBody = &bodyCapture{ReadCloser: r.Body}
		r.Body = reqBody
	}

	rec := &statusRecorder{ResponseWriter: rw, status: http.StatusOK, capture: mw.logBodies}
	mw.next.ServeHTTP(rec, r)

	route := routeOf(r)
	metrics.HTTPRequest(r.Method, route, rec.status)

	entry := logging.Logger(ctx).WithFields(logrus.Fields{
		"entrytype": "audit",
		"status":    rec.status,
		"method":    r.Method,
		"route":     route,
		"path":      r.URL.String(),
		"remote":    r.RemoteAddr,
		"start":     startTime.Format(time.RFC3339Nano),
		"duration":  time.Since(startTime),
		"size":      rec.size,
	})

	if mw.logBodies {
		fields := logrus.Fields{"response": rec.body.String()}
		if reqBody != nil {
			fields["request"] = reqBody.body.String()
		}
		entry.WithFields(fields).Debug("Request bodies")
	}

	if rec.status >= http.StatusInternalServerError {
		entry.Warn(http.StatusText(rec.status))
		return
	}
	entry.Info(http.StatusText(rec.status))
}
