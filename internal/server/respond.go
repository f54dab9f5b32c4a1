package server

import (
	"encoding/json"
	"mime"
	"net/http"
	"strings"

	"sigs.k8s.io/yaml"

	"kstatus/internal/kube"
	"kstatus/internal/logging"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeData honours Accept: application/yaml and falls back to JSON.
func writeData(w http.ResponseWriter, r *http.Request, status int, v any) {
	if !wantsYAML(r) {
		writeJSON(w, status, v)
		return
	}

	b, err := yaml.Marshal(v)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody(http.StatusInternalServerError))
		return
	}
	w.Header().Set("Content-Type", "application/yaml; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func wantsYAML(r *http.Request) bool {
	for _, part := range strings.Split(r.Header.Get("Accept"), ",") {
		mt, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mt {
		case "application/yaml", "application/x-yaml", "text/yaml":
			return true
		}
	}
	return false
}

// writeError maps a pipeline error onto a status with a fixed body. The
// detail only goes to the log.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	if kube.IsInvalidRequest(err) {
		status = http.StatusBadRequest
	}

	if status >= http.StatusInternalServerError {
		s.log.Error("request failed",
			logging.RequestID(requestIDFrom(r.Context())),
			logging.Err(err),
		)
	} else {
		s.log.Info("bad request",
			logging.RequestID(requestIDFrom(r.Context())),
			logging.Err(err),
		)
	}
	writeJSON(w, status, errorBody(status))
}

func errorBody(status int) map[string]string {
	return map[string]string{"error": sanitizeErrorMessage(status)}
}

func sanitizeErrorMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Bad request"
	default:
		return "Internal server error"
	}
}
