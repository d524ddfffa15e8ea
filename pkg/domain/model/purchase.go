package model

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PurchaseStatus string

const (
	PurchasePending   PurchaseStatus = "pending"
	PurchaseCompleted PurchaseStatus = "completed"
	PurchaseFailed    PurchaseStatus = "failed"
)

// CanTransitionTo reports whether a purchase may move from s to next.
// Only pending purchases change status.
func (s PurchaseStatus) CanTransitionTo(next PurchaseStatus) bool {
	return s == PurchasePending && (next == PurchaseCompleted || next == PurchaseFailed)
}

type Purchase struct {
	ID               uuid.UUID
	CourseID         uuid.UUID
	BuyerID          uuid.UUID
	Amount           decimal.Decimal
	Status           PurchaseStatus
	PaymentReference string // ID checkout-сессии провайдера, ключ идемпотентности
	Version          int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// PurchaseWithCourse is a completed purchase joined with its course.
type PurchaseWithCourse struct {
	Purchase
	Course Course
}

type PurchaseRepository interface {
	NextID() (uuid.UUID, error)

	// WithTx runs fn inside a store transaction carried by ctx.
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error

	Create(ctx context.Context, purchase *Purchase) error
	// Update persists purchase only if the stored row is still pending.
	Update(ctx context.Context, purchase *Purchase) error
	FindByPaymentReference(ctx context.Context, reference string) (*Purchase, error)
	FindByCourseAndBuyer(ctx context.Context, courseID, buyerID uuid.UUID) ([]Purchase, error)
	HasCompleted(ctx context.Context, courseID, buyerID uuid.UUID) (bool, error)
	ListCompleted(ctx context.Context) ([]PurchaseWithCourse, error)
}
