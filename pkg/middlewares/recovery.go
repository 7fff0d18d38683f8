package middlewares

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"github.com/gorilla/mux"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/metrics"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/models"
)

// RecoveryMw turns a handler panic into a 500 in the control API's error
// shape, naming the transaction so the stack trace can be found
type RecoveryMw struct {
	next http.Handler
}

func NewRecoveryMw() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return &RecoveryMw{next: next}
	}
}

func (mw *RecoveryMw) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		if v == http.ErrAbortHandler {
			panic(v)
		}

		logging.Logger(r.Context()).WithField("panic", v).Errorf("Handler panicked: %s", debug.Stack())
		metrics.HTTPPanic()

		resp := models.ErrorResponse{
			Code:    http.StatusInternalServerError,
			Message: "internal error",
		}
		if txnID, ok := logging.TxnID(r.Context()); ok {
			resp.Details = []string{"transaction " + txnID}
		}

		rw.Header().Set("Content-Type", "application/json")
		rw.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(rw).Encode(resp)
	}()

	mw.next.ServeHTTP(rw, r)
}
