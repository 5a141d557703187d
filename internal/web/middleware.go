package web

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
)

// requestLogger logs one line per request at debug level, tagged with the
// request ID set by middleware.RequestID.
func requestLogger(log logrus.FieldLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			begin := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			log.WithFields(logrus.Fields{
				"request_id": middleware.GetReqID(r.Context()),
				"remote":     r.RemoteAddr,
				"method":     r.Method,
				"path":       r.URL.RequestURI(),
				"status":     status,
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(begin),
			}).Debug("http request")
		})
	}
}
