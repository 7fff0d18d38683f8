package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	oaerrors "github.com/go-openapi/errors"
	"github.com/go-openapi/runtime/middleware/header"
	"github.com/go-openapi/strfmt"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/models"
)

// For request validation routines
var formats strfmt.Registry

func init() {
	// Default validators
	formats = strfmt.NewFormats()
}

func decodeJSONBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	if r.Header.Get("Content-Type") != "" {
		value, _ := header.ParseValueAndParams(r.Header, "Content-Type")
		if value != "application/json" {
			return fmt.Errorf("expected JSON request, got %s", value)
		}
	}

	// 16kb max body
	reader := http.MaxBytesReader(w, r.Body, 16*1024)
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}

	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return fmt.Errorf("request body must only contain a single JSON object")
	}

	return nil
}

func sendJSONResponse(w http.ResponseWriter, r *http.Request, status int, d interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	if err := enc.Encode(d); err != nil {
		logging.Logger(r.Context()).WithError(err).Error("sending json response")
	}
}

// errorDetails flattens a go-openapi composite validation error
func errorDetails(err error) []string {
	ce, ok := err.(*oaerrors.CompositeError)
	if !ok {
		return nil
	}

	details := make([]string, 0, len(ce.Errors))
	for _, e := range ce.Errors {
		details = append(details, e.Error())
	}
	return details
}

func sendErrorResponse(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	resp := models.ErrorResponse{
		Code:    int32(status),
		Message: message,
	}
	if err != nil {
		resp.Details = errorDetails(err)
		if resp.Details == nil {
			resp.Details = []string{err.Error()}
		}
	}

	sendJSONResponse(w, r, status, resp)
}
