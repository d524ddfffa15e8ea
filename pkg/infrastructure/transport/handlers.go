package transport

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/model"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/service"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/infrastructure/metrics"
)

// Stripe recommends reading at most 64KB of a webhook body.
const maxWebhookBodyBytes = 65536

const signatureHeader = "Stripe-Signature"

type Handler struct {
	service service.PurchaseService
	logger  log.FieldLogger
}

type createCheckoutSessionRequest struct {
	CourseID         string `json:"courseId"`
	SuccessURL       string `json:"successUrl"`
	LegacySuccessURL string `json:"success_url"`
}

type createCheckoutSessionResponse struct {
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

type updatePurchaseStatusRequest struct {
	CourseID string `json:"courseId"`
	UserID   string `json:"userId"`
}

type messageResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type lectureResponse struct {
	ID            uuid.UUID `json:"id"`
	Title         string    `json:"lectureTitle"`
	IsPreviewFree bool      `json:"isPreviewFree"`
}

type courseResponse struct {
	ID               uuid.UUID         `json:"id"`
	Title            string            `json:"courseTitle"`
	Thumbnail        string            `json:"courseThumbnail"`
	Price            decimal.Decimal   `json:"coursePrice"`
	Lectures         []lectureResponse `json:"lectures,omitempty"`
	EnrolledStudents []uuid.UUID       `json:"enrolledStudents,omitempty"`
}

type courseDetailResponse struct {
	Course    courseResponse `json:"course"`
	Purchased bool           `json:"purchased"`
}

type purchaseResponse struct {
	ID        uuid.UUID       `json:"id"`
	Course    courseResponse  `json:"courseId"`
	UserID    uuid.UUID       `json:"userId"`
	Amount    decimal.Decimal `json:"amount"`
	Status    string          `json:"status"`
	PaymentID string          `json:"paymentId"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

type purchasedCoursesResponse struct {
	PurchasedCourses []purchaseResponse `json:"purchasedCourses"`
}

func (h *Handler) createCheckoutSession(w http.ResponseWriter, r *http.Request) {
	var req createCheckoutSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	courseID, err := parseOptionalID(req.CourseID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = req.LegacySuccessURL
	}

	url, err := h.service.InitiateCheckout(r.Context(), buyerFromContext(r.Context()), courseID, successURL)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, createCheckoutSessionResponse{Success: true, URL: url})
}

func (h *Handler) webhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes))
	if err != nil {
		metrics.PaymentNotifications.WithLabelValues("unreadable").Inc()
		writeError(w, http.StatusBadRequest, "Unable to read request body")
		return
	}

	res, err := h.service.HandlePaymentNotification(r.Context(), payload, r.Header.Get(signatureHeader))
	if err != nil {
		metrics.PaymentNotifications.WithLabelValues("rejected").Inc()
		writeServiceError(w, h.logger, err)
		return
	}

	metrics.PaymentNotifications.WithLabelValues(res.Outcome.String()).Inc()
	h.logger.WithFields(log.Fields{
		"purchase_id": res.PurchaseID,
		"outcome":     res.Outcome.String(),
	}).Info("payment notification handled")

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}

func (h *Handler) courseDetailWithStatus(w http.ResponseWriter, r *http.Request) {
	courseID, err := parseOptionalID(mux.Vars(r)["courseId"])
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	status, err := h.service.GetEntitlementStatus(r.Context(), courseID, buyerFromContext(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, courseDetailResponse{
		Course:    toCourseResponse(status.Course),
		Purchased: status.Purchased,
	})
}

func (h *Handler) listCompletedPurchases(w http.ResponseWriter, r *http.Request) {
	purchases, err := h.service.ListCompletedPurchases(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	resp := purchasedCoursesResponse{PurchasedCourses: make([]purchaseResponse, 0, len(purchases))}
	for _, p := range purchases {
		resp.PurchasedCourses = append(resp.PurchasedCourses, purchaseResponse{
			ID:        p.ID,
			Course:    toCourseResponse(p.Course),
			UserID:    p.BuyerID,
			Amount:    p.Amount,
			Status:    string(p.Status),
			PaymentID: p.PaymentReference,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) updatePurchaseStatus(w http.ResponseWriter, r *http.Request) {
	var req updatePurchaseStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	courseID, err := parseOptionalID(req.CourseID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	buyerID, err := parseOptionalID(req.UserID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	if err := h.service.DirectStatusOverride(r.Context(), courseID, buyerID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, messageResponse{Success: true, Message: "Purchase status updated successfully."})
}

// parseOptionalID returns uuid.Nil for an empty string so that the service
// reports missing parameters.
func parseOptionalID(raw string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, model.ErrInvalidID
	}
	return id, nil
}

func toCourseResponse(c model.Course) courseResponse {
	resp := courseResponse{
		ID:               c.ID,
		Title:            c.Title,
		Thumbnail:        c.Thumbnail,
		Price:            c.Price,
		EnrolledStudents: c.EnrolledStudents,
	}
	for _, l := range c.Lectures {
		resp.Lectures = append(resp.Lectures, lectureResponse{
			ID:            l.ID,
			Title:         l.Title,
			IsPreviewFree: l.IsPreviewFree,
		})
	}
	return resp
}
