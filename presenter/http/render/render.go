package render

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/omni/job-relay/logging"
)

type errorResponse struct {
	Error string `json:"error"`
}

func JSON(w http.ResponseWriter, r *http.Request, status int, res interface{}) {
	blob, err := marshal(r, res)
	if err != nil {
		Error(w, r, fmt.Errorf("failed to marshal JSON result: %w", err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(blob); err != nil {
		logging.LoggerFromContext(r.Context()).WithError(err).Error("failed to write response")
	}
}

func marshal(r *http.Request, res interface{}) ([]byte, error) {
	if pretty, _ := strconv.ParseBool(r.URL.Query().Get("pretty")); pretty {
		return json.MarshalIndent(res, "", "  ")
	}
	return json.Marshal(res)
}

func Error(w http.ResponseWriter, r *http.Request, err error) {
	ErrorStatus(w, r, http.StatusInternalServerError, err)
}

// ErrorStatus responds with {"error": ...} and the given status.
func ErrorStatus(w http.ResponseWriter, r *http.Request, status int, err error) {
	logger := logging.LoggerFromContext(r.Context()).WithError(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request handling failed")
	} else {
		logger.Warn("request rejected")
	}
	JSON(w, r, status, errorResponse{Error: err.Error()})
}
