package model

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CheckoutInitiated struct {
	PurchaseID       uuid.UUID
	CourseID         uuid.UUID
	BuyerID          uuid.UUID
	Amount           decimal.Decimal
	PaymentReference string
}

func (e CheckoutInitiated) Type() string { return "CheckoutInitiated" }

type PurchaseCompletedEvent struct {
	PurchaseID       uuid.UUID
	CourseID         uuid.UUID
	BuyerID          uuid.UUID
	Amount           decimal.Decimal
	PaymentReference string
	Manual           bool
}

func (e PurchaseCompletedEvent) Type() string { return "PurchaseCompleted" }

type PurchaseFailedEvent struct {
	PurchaseID       uuid.UUID
	PaymentReference string
	Reason           string
}

func (e PurchaseFailedEvent) Type() string { return "PurchaseFailed" }

type EntitlementGranted struct {
	CourseID uuid.UUID
	BuyerID  uuid.UUID
}

func (e EntitlementGranted) Type() string { return "EntitlementGranted" }
