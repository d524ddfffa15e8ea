package mysql

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/model"
)

const purchaseColumns = `p.id, p.course_id, p.buyer_id, p.amount, p.status, p.payment_reference, p.version, p.created_at, p.updated_at`

type purchaseRow struct {
	ID               uuid.UUID       `db:"id"`
	CourseID         uuid.UUID       `db:"course_id"`
	BuyerID          uuid.UUID       `db:"buyer_id"`
	Amount           decimal.Decimal `db:"amount"`
	Status           string          `db:"status"`
	PaymentReference sql.NullString  `db:"payment_reference"`
	Version          int             `db:"version"`
	CreatedAt        time.Time       `db:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at"`
}

func (r purchaseRow) toModel() model.Purchase {
	return model.Purchase{
		ID:               r.ID,
		CourseID:         r.CourseID,
		BuyerID:          r.BuyerID,
		Amount:           r.Amount,
		Status:           model.PurchaseStatus(r.Status),
		PaymentReference: r.PaymentReference.String,
		Version:          r.Version,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
}

type completedPurchaseRow struct {
	purchaseRow
	CourseTitle     string          `db:"course_title"`
	CourseThumbnail string          `db:"course_thumbnail"`
	CoursePrice     decimal.Decimal `db:"course_price"`
}

type PurchaseRepository struct {
	db *sqlx.DB
}

func NewPurchaseRepository(db *sqlx.DB) *PurchaseRepository {
	return &PurchaseRepository{db: db}
}

func (r *PurchaseRepository) NextID() (uuid.UUID, error) {
	return uuid.NewRandom()
}

func (r *PurchaseRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.db, fn)
}

func (r *PurchaseRepository) Create(ctx context.Context, p *model.Purchase) error {
	const stmt = `
INSERT INTO purchases (id, course_id, buyer_id, amount, status, payment_reference, version, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`

	_, err := queryer(ctx, r.db).ExecContext(ctx, stmt,
		p.ID, p.CourseID, p.BuyerID, p.Amount, string(p.Status), nullString(p.PaymentReference),
		p.Version, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		if isDuplicateEntry(err) {
			return errors.Wrapf(model.ErrPersistence, "payment reference %q already recorded", p.PaymentReference)
		}
		return persistenceError(err, "create purchase")
	}
	return nil
}

func (r *PurchaseRepository) Update(ctx context.Context, p *model.Purchase) error {
	const stmt = `
UPDATE purchases
SET amount = ?, status = ?, version = ?, updated_at = ?
WHERE id = ? AND status = ? AND version = ?`

	res, err := queryer(ctx, r.db).ExecContext(ctx, stmt,
		p.Amount, string(p.Status), p.Version, p.UpdatedAt,
		p.ID, string(model.PurchasePending), p.Version-1,
	)
	if err != nil {
		return persistenceError(err, "update purchase")
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return persistenceError(err, "update purchase")
	}
	if affected == 0 {
		return model.ErrInvalidStatusTransition
	}
	return nil
}

func (r *PurchaseRepository) FindByPaymentReference(ctx context.Context, reference string) (*model.Purchase, error) {
	const query = `SELECT ` + purchaseColumns + ` FROM purchases p WHERE p.payment_reference = ? FOR UPDATE`

	var row purchaseRow
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &row, query, reference); err != nil {
		if isNoRows(err) {
			return nil, model.ErrPurchaseNotFound
		}
		return nil, persistenceError(err, "find purchase by payment reference")
	}
	p := row.toModel()
	return &p, nil
}

func (r *PurchaseRepository) FindByCourseAndBuyer(ctx context.Context, courseID, buyerID uuid.UUID) ([]model.Purchase, error) {
	const query = `SELECT ` + purchaseColumns + ` FROM purchases p
WHERE p.course_id = ? AND p.buyer_id = ?
ORDER BY p.created_at DESC
FOR UPDATE`

	var rows []purchaseRow
	if err := sqlx.SelectContext(ctx, queryer(ctx, r.db), &rows, query, courseID, buyerID); err != nil {
		return nil, persistenceError(err, "find purchases by course and buyer")
	}
	out := make([]model.Purchase, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toModel())
	}
	return out, nil
}

func (r *PurchaseRepository) HasCompleted(ctx context.Context, courseID, buyerID uuid.UUID) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM purchases WHERE course_id = ? AND buyer_id = ? AND status = ?)`

	var exists bool
	if err := sqlx.GetContext(ctx, queryer(ctx, r.db), &exists, query, courseID, buyerID, string(model.PurchaseCompleted)); err != nil {
		return false, persistenceError(err, "check completed purchase")
	}
	return exists, nil
}

func (r *PurchaseRepository) ListCompleted(ctx context.Context) ([]model.PurchaseWithCourse, error) {
	const query = `SELECT ` + purchaseColumns + `,
    c.title AS course_title, c.thumbnail AS course_thumbnail, c.price AS course_price
FROM purchases p
JOIN courses c ON c.id = p.course_id
WHERE p.status = ?
ORDER BY p.updated_at DESC`

	var rows []completedPurchaseRow
	if err := sqlx.SelectContext(ctx, queryer(ctx, r.db), &rows, query, string(model.PurchaseCompleted)); err != nil {
		return nil, persistenceError(err, "list completed purchases")
	}
	out := make([]model.PurchaseWithCourse, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.PurchaseWithCourse{
			Purchase: row.toModel(),
			Course: model.Course{
				ID:        row.CourseID,
				Title:     row.CourseTitle,
				Thumbnail: row.CourseThumbnail,
				Price:     row.CoursePrice,
			},
		})
	}
	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
