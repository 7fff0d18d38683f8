package middlewares

import (
	"net/http"
	"regexp"

	"github.com/gorilla/mux"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
)

const (
	CorrelationIDHeader = "X-Correlation-ID"
	RequestIDHeader     = "X-Request-ID"
)

var correlationIDRegexp = regexp.MustCompile(`^[\w-]{3,64}$`)

const badCorrelationID = "<Bad_Correlation_Id>"

// CorrelationMw picks the caller's correlation ID from the first of its
// headers that is present, echoes it on the response and adds it to every
// log entry for the request
type CorrelationMw struct {
	headers []string
	next    http.Handler
}

// NewCorrelationMw reads the given headers in order, defaulting to
// X-Correlation-ID then X-Request-ID
func NewCorrelationMw(headers ...string) mux.MiddlewareFunc {
	if len(headers) == 0 {
		headers = []string{CorrelationIDHeader, RequestIDHeader}
	}

	canonical := make([]string, 0, len(headers))
	for _, h := range headers {
		canonical = append(canonical, http.CanonicalHeaderKey(h))
	}

	return func(next http.Handler) http.Handler {
		return &CorrelationMw{headers: canonical, next: next}
	}
}

func (mw *CorrelationMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	if header, id, ok := mw.correlationID(r); ok {
		rw.Header().Set(header, id)
		r = r.WithContext(logging.WithCorrelationID(r.Context(), id))
		if id == badCorrelationID {
			logging.Logger(r.Context()).Warnf("Ignoring malformed %s header", header)
		}
	}

	mw.next.ServeHTTP(rw, r)
}

func (mw *CorrelationMw) correlationID(r *http.Request) (string, string, bool) {
	for _, h := range mw.headers {
		ids := r.Header[h]
		if len(ids) == 0 {
			continue
		}
		if correlationIDRegexp.MatchString(ids[0]) {
			return h, ids[0], true
		}
		return h, badCorrelationID, true
	}

	return "", "", false
}
