package transport

import (
	"encoding/json"
	"net/http"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/model"
)

type errorResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type errorMapping struct {
	err     error
	status  int
	message string
}

var errorMappings = []errorMapping{
	{model.ErrCourseNotFound, http.StatusNotFound, "Course not found."},
	{model.ErrPurchaseNotFound, http.StatusNotFound, "Purchase not found"},
	{model.ErrMissingParameters, http.StatusBadRequest, "Course ID and User ID are required."},
	{model.ErrInvalidID, http.StatusBadRequest, "Invalid id"},
	{model.ErrPaymentSessionCreationFailed, http.StatusBadRequest, "Error while creating session"},
	{model.ErrVerification, http.StatusBadRequest, "Webhook signature verification failed"},
	{model.ErrAlreadyPurchased, http.StatusConflict, "Course already purchased"},
	{model.ErrInvalidStatusTransition, http.StatusConflict, "Purchase cannot change from its current status"},
}

// writeServiceError maps domain errors to responses. Anything unknown,
// including storage failures, becomes a bare 500.
func writeServiceError(w http.ResponseWriter, logger log.FieldLogger, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.err) {
			logger.WithError(err).Warn("request rejected")
			writeError(w, m.status, m.message)
			return
		}
	}

	logger.WithError(err).Error("request failed")
	writeError(w, http.StatusInternalServerError, "Internal Server Error")
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Success: false, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	payload, err := json.Marshal(body)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"success":false,"message":"Internal Server Error"}`))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err = w.Write(payload); err != nil {
		log.WithField("err", err).Error("write response")
	}
}
