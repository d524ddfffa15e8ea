package transport

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/service"
)

type Pinger interface {
	PingContext(ctx context.Context) error
}

func Router(svc service.PurchaseService, db Pinger, logger log.FieldLogger) http.Handler {
	h := &Handler{service: svc, logger: logger}

	r := mux.NewRouter()
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/health", healthHandler(db)).Methods(http.MethodGet)

	s := r.PathPrefix("/api/v1/purchase").Subrouter()
	s.HandleFunc("/webhook", h.webhook).Methods(http.MethodPost)
	s.HandleFunc("", h.listCompletedPurchases).Methods(http.MethodGet)
	s.HandleFunc("/", h.listCompletedPurchases).Methods(http.MethodGet)
	s.HandleFunc("/update-status", h.updatePurchaseStatus).Methods(http.MethodPost)

	buyer := s.NewRoute().Subrouter()
	buyer.Use(buyerMiddleware)
	buyer.HandleFunc("/checkout/create-checkout-session", h.createCheckoutSession).Methods(http.MethodPost)
	buyer.HandleFunc("/course/{courseId}/detail-with-status", h.courseDetailWithStatus).Methods(http.MethodGet)

	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "Route not found")
	})

	return logMiddleware(metricsMiddleware(r), logger)
}

func healthHandler(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := db.PingContext(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, "database unavailable")
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
