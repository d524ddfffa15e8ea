package model

import (
	"context"

	"github.com/google/uuid"
)

type Buyer struct {
	ID              uuid.UUID
	EnrolledCourses []uuid.UUID
}

type BuyerRepository interface {
	AppendEnrolledCourse(ctx context.Context, buyerID, courseID uuid.UUID) error
}
