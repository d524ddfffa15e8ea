package mysql

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type BuyerRepository struct {
	db *sqlx.DB
}

func NewBuyerRepository(db *sqlx.DB) *BuyerRepository {
	return &BuyerRepository{db: db}
}

func (r *BuyerRepository) AppendEnrolledCourse(ctx context.Context, buyerID, courseID uuid.UUID) error {
	const stmt = `INSERT IGNORE INTO buyer_courses (buyer_id, course_id) VALUES (?, ?)`

	if _, err := queryer(ctx, r.db).ExecContext(ctx, stmt, buyerID, courseID); err != nil {
		return persistenceError(err, "append enrolled course")
	}
	return nil
}
