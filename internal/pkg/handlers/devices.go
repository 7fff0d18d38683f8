package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/jake-scott/bluestar-bridge/internal/pkg/bluestar"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/command"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/directory"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/logging"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/models"
	"github.com/jake-scott/bluestar-bridge/internal/pkg/state"
)

// Controller is the part of the Bluestar client the HTTP API drives
type Controller interface {
	Devices() []bluestar.DeviceConfig
	Device(deviceID string) (bluestar.DeviceConfig, bool)
	Metadata(deviceID string) bluestar.Metadata
	ListDevices(ctx context.Context) []directory.Device
	StatusAll(ctx context.Context, deviceIDs []string, maxConcurrent int) []directory.Status
	DeviceStatus(ctx context.Context, deviceID string) (map[string]interface{}, bool)
	DeviceInfo(ctx context.Context, deviceID string) (map[string]interface{}, bool)
	AssumedState(deviceID string) state.Device
	Dispatch(ctx context.Context, deviceID string, cmd command.Command) error
	DeviceConnected(deviceID string) bool
	Connected() bool
	Check(ctx context.Context) error
}

type DeviceHandler struct {
	client      Controller
	concurrency int
}

func NewDeviceHandler(client Controller, concurrency int) DeviceHandler {
	return DeviceHandler{
		client:      client,
		concurrency: concurrency,
	}
}

// Register adds the device routes to r
func (h *DeviceHandler) Register(r *mux.Router) {
	r.HandleFunc("/devices", h.HandleList).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}/status", h.HandleStatus).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}/info", h.HandleInfo).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}/state", h.HandleState).Methods(http.MethodGet)
	r.HandleFunc("/devices/{id}/command", h.HandleCommand).Methods(http.MethodPost)
}

// known reports whether deviceID may be addressed.  With no devices
// configured, any ID is passed through to the vendor.
func (h *DeviceHandler) known(deviceID string) bool {
	if len(h.client.Devices()) == 0 {
		return true
	}
	_, ok := h.client.Device(deviceID)
	return ok
}

func (h *DeviceHandler) deviceID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := mux.Vars(r)["id"]
	if !h.known(id) {
		sendErrorResponse(w, r, http.StatusNotFound, "unknown device "+id, nil)
		return "", false
	}
	return id, true
}

func (h *DeviceHandler) summary(id string, name string, transport string) models.DeviceSummary {
	md := h.client.Metadata(id)
	if name == "" {
		name = md.Name
	}

	return models.DeviceSummary{
		ID:           id,
		Name:         name,
		UniqueID:     md.UniqueID,
		Manufacturer: md.Manufacturer,
		Model:        md.Model,
		Transport:    transport,
		Connected:    h.client.DeviceConnected(id),
	}
}

func (h *DeviceHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var devices []models.DeviceSummary
	if configured := h.client.Devices(); len(configured) > 0 {
		for _, d := range configured {
			devices = append(devices, h.summary(d.ID, d.Name, d.Transport))
		}
	} else {
		for _, d := range h.client.ListDevices(ctx) {
			if d.ID() == "" {
				continue
			}
			devices = append(devices, h.summary(d.ID(), d.Name(), ""))
		}
	}
	if devices == nil {
		devices = []models.DeviceSummary{}
	}

	withStatus, _ := strconv.ParseBool(r.URL.Query().Get("status"))
	if withStatus && len(devices) > 0 {
		ids := make([]string, len(devices))
		for i, d := range devices {
			ids[i] = d.ID
		}

		for i, st := range h.client.StatusAll(ctx, ids, h.concurrency) {
			ok := st.OK
			devices[i].Status = st.Data
			devices[i].StatusOK = &ok
		}
	}

	sendJSONResponse(w, r, http.StatusOK, devices)
}

func (h *DeviceHandler) HandleStatus(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	status, ok := h.client.DeviceStatus(r.Context(), id)
	if !ok {
		sendErrorResponse(w, r, http.StatusBadGateway, "unable to fetch device status", nil)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, status)
}

func (h *DeviceHandler) HandleInfo(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	info, ok := h.client.DeviceInfo(r.Context(), id)
	if !ok {
		sendErrorResponse(w, r, http.StatusBadGateway, "unable to fetch device info", nil)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, info)
}

func (h *DeviceHandler) HandleState(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	sendJSONResponse(w, r, http.StatusOK, h.client.AssumedState(id))
}

func (h *DeviceHandler) HandleCommand(w http.ResponseWriter, r *http.Request) {
	id, ok := h.deviceID(w, r)
	if !ok {
		return
	}

	ctx := logging.WithDeviceID(r.Context(), id)
	ctxLogger := logging.Logger(ctx)

	var req models.CommandRequest
	if err := decodeJSONBody(w, r, &req); err != nil {
		ctxLogger.WithError(err).Errorf("decoding JSON")
		sendErrorResponse(w, r, http.StatusBadRequest, "unable to parse JSON", err)
		return
	}

	if err := req.Validate(formats); err != nil {
		ctxLogger.WithError(err).Errorf("request validation failure")
		sendErrorResponse(w, r, http.StatusBadRequest, "input validation failed", err)
		return
	}

	cmd, err := req.Command()
	if err != nil {
		ctxLogger.WithError(err).Errorf("request validation failure")
		sendErrorResponse(w, r, http.StatusBadRequest, "input validation failed", err)
		return
	}

	if err := h.client.Dispatch(ctx, id, cmd); err != nil {
		ctxLogger.WithError(err).Errorf("sending command")

		if errors.Is(err, command.ErrInvalid) {
			sendErrorResponse(w, r, http.StatusBadRequest, "command not supported", err)
			return
		}
		sendErrorResponse(w, r, http.StatusBadGateway, "device command failed", nil)
		return
	}

	sendJSONResponse(w, r, http.StatusOK, models.CommandResult{
		DeviceID: id,
		Payload:  cmd.String(),
		State:    h.client.AssumedState(id),
	})
}
