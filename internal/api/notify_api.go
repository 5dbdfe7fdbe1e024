package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/tinywideclouds/go-notification-dispatcher/internal/pipeline"
	"github.com/tinywideclouds/go-notification-dispatcher/pkg/notification"
)

// Caller-visible error messages.
const (
	MsgInvalidRequest   = "Missing title or description"
	MsgDeliveryFailed   = "Failed to send notification"
	MsgInternalError    = "An internal server error occurred."
	MsgMethodNotAllowed = "Method Not Allowed"
)

// maxBodyBytes bounds the inbound request body.
const maxBodyBytes = 1 << 20

// Dispatcher is the core the API forwards validated requests to.
type Dispatcher interface {
	Dispatch(ctx context.Context, req notification.NotificationRequest) (*pipeline.Result, error)
}

type NotifyAPI struct {
	Dispatcher Dispatcher
	Logger     *slog.Logger
}

func NewNotifyAPI(dispatcher Dispatcher, logger *slog.Logger) *NotifyAPI {
	return &NotifyAPI{
		Dispatcher: dispatcher,
		Logger:     logger.With("component", "NotifyAPI"),
	}
}

// Notify handles POST: decode, dispatch, and relay the outcome.
func (api *NotifyAPI) Notify(w http.ResponseWriter, r *http.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			api.Logger.Error("Internal server error", "panic", rec)
			writeJSONError(w, http.StatusInternalServerError, MsgInternalError)
		}
	}()

	req, err := pipeline.DecodeRequest(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		api.Logger.Debug("Notify: validation failed", "err", err)
		writeJSONError(w, http.StatusBadRequest, MsgInvalidRequest)
		return
	}

	res, err := api.Dispatcher.Dispatch(r.Context(), req)
	switch {
	case err == nil:
		writeRawJSON(w, res.StatusCode, res.Body)
	case errors.Is(err, pipeline.ErrInvalidRequest):
		writeJSONError(w, http.StatusBadRequest, MsgInvalidRequest)
	case errors.Is(err, pipeline.ErrDeliveryFailed):
		writeJSONError(w, http.StatusInternalServerError, MsgDeliveryFailed)
	default:
		api.Logger.Error("Internal server error", "err", err)
		writeJSONError(w, http.StatusInternalServerError, MsgInternalError)
	}
}

// Options answers CORS preflight with an empty 200.
func (api *NotifyAPI) Options(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
}

// MethodNotAllowed rejects every method other than POST and OPTIONS.
func (api *NotifyAPI) MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSONError(w, http.StatusMethodNotAllowed, MsgMethodNotAllowed)
}

func writeJSONError(w http.ResponseWriter, status int, msg string) {
	body, _ := json.Marshal(map[string]string{"error": msg})
	writeRawJSON(w, status, body)
}

func writeRawJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
