package server

import (
	"crypto/subtle"
	"errors"
	"log/slog"
	"net/http"

	"kstatus/internal/logging"
)

var errUnauthorized = errors.New("unauthorized")

// authenticate accepts exactly "Bearer <token>". An empty configured token
// rejects everything.
func authenticate(header, token string) error {
	if token == "" {
		return errUnauthorized
	}
	want := "Bearer " + token
	if subtle.ConstantTimeCompare([]byte(header), []byte(want)) != 1 {
		return errUnauthorized
	}
	return nil
}

func (s *Server) authMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := authenticate(r.Header.Get("Authorization"), s.token); err != nil {
			s.log.Info("rejected request",
				logging.RequestID(requestIDFrom(r.Context())),
				slog.String("path", r.URL.Path),
				slog.Bool("header_present", r.Header.Get("Authorization") != ""),
			)
			w.WriteHeader(http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}
