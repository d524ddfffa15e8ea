package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/common/domain"
	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/model"
)

type ReconcileOutcome int

const (
	// Applied means the event changed the purchase.
	Applied ReconcileOutcome = iota
	// Replayed means the purchase had already reached the event's status.
	Replayed
	// Ignored means the event type is not relevant to purchases.
	Ignored
)

func (o ReconcileOutcome) String() string {
	switch o {
	case Applied:
		return "applied"
	case Replayed:
		return "replayed"
	case Ignored:
		return "ignored"
	}
	return "unknown"
}

type ReconcileResult struct {
	PurchaseID uuid.UUID
	Outcome    ReconcileOutcome
}

type EntitlementStatus struct {
	Course    model.Course
	Purchased bool
}

type PurchaseService interface {
	InitiateCheckout(ctx context.Context, buyerID, courseID uuid.UUID, successURL string) (string, error)
	HandlePaymentNotification(ctx context.Context, payload []byte, signatureHeader string) (ReconcileResult, error)
	ReconcileCompletionEvent(ctx context.Context, event model.PaymentEvent) (ReconcileResult, error)
	ReconcileFailureEvent(ctx context.Context, event model.PaymentEvent) (ReconcileResult, error)
	DirectStatusOverride(ctx context.Context, courseID, buyerID uuid.UUID) error
	GetEntitlementStatus(ctx context.Context, courseID, buyerID uuid.UUID) (EntitlementStatus, error)
	ListCompletedPurchases(ctx context.Context) ([]model.PurchaseWithCourse, error)
}

type Repositories struct {
	Purchases model.PurchaseRepository
	Courses   model.CourseRepository
	Lectures  model.LectureRepository
	Buyers    model.BuyerRepository
}

type CheckoutConfig struct {
	Currency string
	// MinorUnitExponent is the number of minor-unit digits of Currency.
	MinorUnitExponent int32
	BaseURI           string
}

func NewPurchaseService(
	repos Repositories,
	provider model.PaymentProvider,
	dispatcher domain.EventDispatcher,
	cfg CheckoutConfig,
) PurchaseService {
	return &purchaseService{
		repos:      repos,
		provider:   provider,
		dispatcher: dispatcher,
		cfg:        cfg,
	}
}

type purchaseService struct {
	repos      Repositories
	provider   model.PaymentProvider
	dispatcher domain.EventDispatcher
	cfg        CheckoutConfig
}

func (s *purchaseService) InitiateCheckout(ctx context.Context, buyerID, courseID uuid.UUID, successURL string) (string, error) {
	if buyerID == uuid.Nil || courseID == uuid.Nil {
		return "", model.ErrMissingParameters
	}

	course, err := s.repos.Courses.Find(ctx, courseID)
	if err != nil {
		return "", err
	}

	purchased, err := s.repos.Purchases.HasCompleted(ctx, courseID, buyerID)
	if err != nil {
		return "", err
	}
	if purchased {
		return "", model.ErrAlreadyPurchased
	}

	purchaseID, err := s.repos.Purchases.NextID()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	purchase := &model.Purchase{
		ID:        purchaseID,
		CourseID:  courseID,
		BuyerID:   buyerID,
		Amount:    course.Price,
		Status:    model.PurchasePending,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if successURL == "" {
		successURL = fmt.Sprintf("%s/purchase-success?courseId=%s&userId=%s", s.cfg.BaseURI, courseID, buyerID)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, model.CheckoutSessionRequest{
		CourseID:        courseID,
		BuyerID:         buyerID,
		CourseTitle:     course.Title,
		CourseThumbnail: course.Thumbnail,
		UnitAmountMinor: s.toMinorUnits(course.Price),
		Currency:        s.cfg.Currency,
		SuccessURL:      successURL,
		CancelURL:       fmt.Sprintf("%s/course-detail/%s", s.cfg.BaseURI, courseID),
	})
	if err != nil {
		return "", errors.Wrap(model.ErrPaymentSessionCreationFailed, err.Error())
	}
	if session.ID == "" || session.URL == "" {
		return "", model.ErrPaymentSessionCreationFailed
	}

	// Запись сохраняется только после того, как провайдер выдал сессию.
	purchase.PaymentReference = session.ID
	if err := s.repos.Purchases.Create(ctx, purchase); err != nil {
		return "", err
	}

	s.dispatchEvents([]domain.Event{model.CheckoutInitiated{
		PurchaseID:       purchase.ID,
		CourseID:         courseID,
		BuyerID:          buyerID,
		Amount:           purchase.Amount,
		PaymentReference: session.ID,
	}})

	return session.URL, nil
}

func (s *purchaseService) HandlePaymentNotification(ctx context.Context, payload []byte, signatureHeader string) (ReconcileResult, error) {
	event, err := s.provider.VerifyAndParseEvent(payload, signatureHeader)
	if err != nil {
		if errors.Is(err, model.ErrVerification) {
			return ReconcileResult{}, err
		}
		return ReconcileResult{}, errors.Wrap(model.ErrVerification, err.Error())
	}

	switch {
	case event.Type.IsCompletion():
		return s.ReconcileCompletionEvent(ctx, event)
	case event.Type.IsFailure():
		return s.ReconcileFailureEvent(ctx, event)
	default:
		log.WithFields(log.Fields{"event_id": event.ID, "event_type": event.Type}).Debug("ignoring payment event")
		return ReconcileResult{Outcome: Ignored}, nil
	}
}

func (s *purchaseService) ReconcileCompletionEvent(ctx context.Context, event model.PaymentEvent) (ReconcileResult, error) {
	if event.SessionID == "" {
		return ReconcileResult{}, model.ErrPurchaseNotFound
	}

	var result ReconcileResult
	var events []domain.Event

	err := s.repos.Purchases.WithTx(ctx, func(ctx context.Context) error {
		purchase, err := s.repos.Purchases.FindByPaymentReference(ctx, event.SessionID)
		if err != nil {
			return err
		}

		switch purchase.Status {
		case model.PurchaseCompleted:
			result = ReconcileResult{PurchaseID: purchase.ID, Outcome: Replayed}
			return nil
		case model.PurchaseFailed:
			return model.ErrInvalidStatusTransition
		}

		// Сумма от провайдера важнее изначально запрошенной.
		if event.AmountTotal != nil {
			purchase.Amount = s.fromMinorUnits(*event.AmountTotal)
		}

		if err := s.completePurchase(ctx, purchase); err != nil {
			return err
		}

		result = ReconcileResult{PurchaseID: purchase.ID, Outcome: Applied}
		events = completionEvents(purchase, false)
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	s.dispatchEvents(events)
	return result, nil
}

func (s *purchaseService) ReconcileFailureEvent(ctx context.Context, event model.PaymentEvent) (ReconcileResult, error) {
	if event.SessionID == "" {
		return ReconcileResult{}, model.ErrPurchaseNotFound
	}

	var result ReconcileResult
	var events []domain.Event

	err := s.repos.Purchases.WithTx(ctx, func(ctx context.Context) error {
		purchase, err := s.repos.Purchases.FindByPaymentReference(ctx, event.SessionID)
		if err != nil {
			return err
		}

		if !purchase.Status.CanTransitionTo(model.PurchaseFailed) {
			result = ReconcileResult{PurchaseID: purchase.ID, Outcome: Replayed}
			return nil
		}

		purchase.Status = model.PurchaseFailed
		if err := s.updatePurchase(ctx, purchase); err != nil {
			return err
		}

		result = ReconcileResult{PurchaseID: purchase.ID, Outcome: Applied}
		events = []domain.Event{model.PurchaseFailedEvent{
			PurchaseID:       purchase.ID,
			PaymentReference: purchase.PaymentReference,
			Reason:           string(event.Type),
		}}
		return nil
	})
	if err != nil {
		return ReconcileResult{}, err
	}

	s.dispatchEvents(events)
	return result, nil
}

func (s *purchaseService) DirectStatusOverride(ctx context.Context, courseID, buyerID uuid.UUID) error {
	if courseID == uuid.Nil || buyerID == uuid.Nil {
		return model.ErrMissingParameters
	}

	var events []domain.Event

	err := s.repos.Purchases.WithTx(ctx, func(ctx context.Context) error {
		purchases, err := s.repos.Purchases.FindByCourseAndBuyer(ctx, courseID, buyerID)
		if err != nil {
			return err
		}
		if len(purchases) == 0 {
			return model.ErrPurchaseNotFound
		}

		var pending *model.Purchase
		for i := range purchases {
			switch purchases[i].Status {
			case model.PurchaseCompleted:
				// Already entitled; re-adding to the sets changes nothing
				// unless an earlier grant was lost.
				return s.grantEntitlement(ctx, courseID, buyerID)
			case model.PurchasePending:
				if pending == nil {
					pending = &purchases[i]
				}
			}
		}
		if pending == nil {
			return model.ErrInvalidStatusTransition
		}

		if err := s.completePurchase(ctx, pending); err != nil {
			return err
		}
		events = completionEvents(pending, true)
		return nil
	})
	if err != nil {
		return err
	}

	s.dispatchEvents(events)
	return nil
}

func (s *purchaseService) GetEntitlementStatus(ctx context.Context, courseID, buyerID uuid.UUID) (EntitlementStatus, error) {
	if courseID == uuid.Nil || buyerID == uuid.Nil {
		return EntitlementStatus{}, model.ErrMissingParameters
	}

	course, err := s.repos.Courses.Find(ctx, courseID)
	if err != nil {
		return EntitlementStatus{}, err
	}

	purchased, err := s.repos.Purchases.HasCompleted(ctx, courseID, buyerID)
	if err != nil {
		return EntitlementStatus{}, err
	}

	return EntitlementStatus{Course: *course, Purchased: purchased}, nil
}

func (s *purchaseService) ListCompletedPurchases(ctx context.Context) ([]model.PurchaseWithCourse, error) {
	return s.repos.Purchases.ListCompleted(ctx)
}

// completePurchase unlocks the lectures, persists the completed purchase and
// grants the entitlement, in that order.
func (s *purchaseService) completePurchase(ctx context.Context, purchase *model.Purchase) error {
	if !purchase.Status.CanTransitionTo(model.PurchaseCompleted) {
		return model.ErrInvalidStatusTransition
	}

	if err := s.repos.Lectures.SetPreviewFreeForCourse(ctx, purchase.CourseID); err != nil {
		return err
	}

	purchase.Status = model.PurchaseCompleted
	if err := s.updatePurchase(ctx, purchase); err != nil {
		return err
	}

	return s.grantEntitlement(ctx, purchase.CourseID, purchase.BuyerID)
}

func (s *purchaseService) grantEntitlement(ctx context.Context, courseID, buyerID uuid.UUID) error {
	if err := s.repos.Buyers.AppendEnrolledCourse(ctx, buyerID, courseID); err != nil {
		return err
	}
	return s.repos.Courses.AppendEnrolledStudent(ctx, courseID, buyerID)
}

func (s *purchaseService) updatePurchase(ctx context.Context, purchase *model.Purchase) error {
	purchase.Version++
	purchase.UpdatedAt = time.Now().UTC()
	return s.repos.Purchases.Update(ctx, purchase)
}

func (s *purchaseService) toMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(s.cfg.MinorUnitExponent).Round(0).IntPart()
}

func (s *purchaseService) fromMinorUnits(amount int64) decimal.Decimal {
	return decimal.New(amount, -s.cfg.MinorUnitExponent)
}

func (s *purchaseService) dispatchEvents(events []domain.Event) {
	for _, event := range events {
		if err := s.dispatcher.Dispatch(event); err != nil {
			log.WithError(err).WithField("event", event.Type()).Error("failed to dispatch event")
		}
	}
}

func completionEvents(purchase *model.Purchase, manual bool) []domain.Event {
	return []domain.Event{
		model.PurchaseCompletedEvent{
			PurchaseID:       purchase.ID,
			CourseID:         purchase.CourseID,
			BuyerID:          purchase.BuyerID,
			Amount:           purchase.Amount,
			PaymentReference: purchase.PaymentReference,
			Manual:           manual,
		},
		model.EntitlementGranted{CourseID: purchase.CourseID, BuyerID: purchase.BuyerID},
	}
}
