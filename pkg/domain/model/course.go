package model

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Lecture struct {
	ID            uuid.UUID
	CourseID      uuid.UUID
	Title         string
	IsPreviewFree bool
}

type Course struct {
	ID               uuid.UUID
	Title            string
	Thumbnail        string
	Price            decimal.Decimal
	Lectures         []Lecture
	EnrolledStudents []uuid.UUID
}

// CourseRepository is owned by the course-management side; this service only
// reads courses and appends to their enrolled students.
type CourseRepository interface {
	Find(ctx context.Context, id uuid.UUID) (*Course, error)
	AppendEnrolledStudent(ctx context.Context, courseID, buyerID uuid.UUID) error
}

type LectureRepository interface {
	SetPreviewFreeForCourse(ctx context.Context, courseID uuid.UUID) error
}
