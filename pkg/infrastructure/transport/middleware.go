package transport

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/metrics"
)

// BuyerHeader carries the authenticated buyer id. It is set by the auth layer
// in front of this service.
const BuyerHeader = "X-User-ID"

type buyerKey struct{}

func buyerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buyerID, err := uuid.Parse(r.Header.Get(BuyerHeader))
		if err != nil || buyerID == uuid.Nil {
			writeError(w, http.StatusUnauthorized, "User not authenticated")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), buyerKey{}, buyerID)))
	})
}

func buyerFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(buyerKey{}).(uuid.UUID)
	return id
}

func logMiddleware(h http.Handler, logger log.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		h.ServeHTTP(rec, r)

		logger.WithFields(log.Fields{
			"method":     r.Method,
			"url":        r.URL.Path,
			"remoteAddr": r.RemoteAddr,
			"userAgent":  r.UserAgent(),
			"status":     rec.status,
			"duration":   time.Since(start).String(),
		}).Info("request served")
	})
}

func metricsMiddleware(r *mux.Router) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		r.ServeHTTP(rec, req)

		route := "unmatched"
		var match mux.RouteMatch
		if r.Match(req, &match) && match.Route != nil {
			if tpl, err := match.Route.GetPathTemplate(); err == nil {
				route = tpl
			}
		}
		metrics.RequestDuration.
			WithLabelValues(route, req.Method, strconv.Itoa(rec.status)).
			Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
