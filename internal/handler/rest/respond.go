package rest

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/webitel/shardscope/internal/domain/model"
)

// response mirrors the bot API envelope so dashboards can consume both.
type response struct {
	Success    bool   `json:"success"`
	Data       any    `json:"data,omitempty"`
	Error      string `json:"error,omitempty"`
	Kind       string `json:"kind,omitempty"`
	IsFallback bool   `json:"isFallback,omitempty"`
	Cached     bool   `json:"cached,omitempty"`
	Timestamp  string `json:"timestamp"`
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	body.Timestamp = time.Now().UTC().Format(time.RFC3339)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func ok(w http.ResponseWriter, data any, fallback bool) {
	writeJSON(w, http.StatusOK, response{Success: true, Data: data, IsFallback: fallback})
}

// statusOf maps client error kinds onto HTTP statuses.
func statusOf(err error) int {
	switch model.KindOf(err) {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindAuth:
		return http.StatusUnauthorized
	case model.KindTimeout:
		return http.StatusGatewayTimeout
	case model.KindNetwork, model.KindAPI, model.KindParse:
		return http.StatusBadGateway
	case model.KindAborted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func fail(w http.ResponseWriter, logger *slog.Logger, err error) {
	status := statusOf(err)
	kind := model.KindOf(err)
	if status >= http.StatusInternalServerError {
		logger.Warn("REQUEST_FAILED", "err", err, "kind", kind)
	}

	body := response{Error: err.Error()}
	var me *model.Error
	if errors.As(err, &me) {
		body.Kind = me.Kind.String()
	}
	writeJSON(w, status, body)
}
