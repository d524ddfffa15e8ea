package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	driver "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/model"
)

var purchaseRowColumns = []string{
	"id", "course_id", "buyer_id", "amount", "status", "payment_reference", "version", "created_at", "updated_at",
}

func setupMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return sqlx.NewDb(db, "mysql"), mock
}

func TestPurchaseRepository_FindByPaymentReference(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPurchaseRepository(db)
	id, courseID, buyerID := uuid.New(), uuid.New(), uuid.New()
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases p WHERE p.payment_reference = ? FOR UPDATE")).
		WithArgs("cs_test_1").
		WillReturnRows(sqlmock.NewRows(purchaseRowColumns).
			AddRow(id.String(), courseID.String(), buyerID.String(), "499.00", "pending", "cs_test_1", 1, now, now))

	p, err := repo.FindByPaymentReference(context.Background(), "cs_test_1")

	require.NoError(t, err)
	assert.Equal(t, id, p.ID)
	assert.Equal(t, courseID, p.CourseID)
	assert.Equal(t, buyerID, p.BuyerID)
	assert.True(t, decimal.RequireFromString("499").Equal(p.Amount))
	assert.Equal(t, model.PurchasePending, p.Status)
	assert.Equal(t, "cs_test_1", p.PaymentReference)
}

func TestPurchaseRepository_FindByPaymentReference_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewPurchaseRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM purchases p WHERE p.payment_reference = ?")).
		WithArgs("cs_missing").
		WillReturnRows(sqlmock.NewRows(purchaseRowColumns))

	_, err := repo.FindByPaymentReference(context.Background(), "cs_missing")

	assert.ErrorIs(t, err, model.ErrPurchaseNotFound)
}

func TestPurchaseRepository_Create(t *testing.T) {
	purchase := &model.Purchase{
		ID:               uuid.New(),
		CourseID:         uuid.New(),
		BuyerID:          uuid.New(),
		Amount:           decimal.RequireFromString("499"),
		Status:           model.PurchasePending,
		PaymentReference: "cs_test_1",
		Version:          1,
		CreatedAt:        time.Now().UTC(),
		UpdatedAt:        time.Now().UTC(),
	}

	t.Run("Success", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
			WithArgs(purchase.ID, purchase.CourseID, purchase.BuyerID, purchase.Amount, "pending", "cs_test_1",
				1, sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, NewPurchaseRepository(db).Create(context.Background(), purchase))
	})

	t.Run("Duplicate reference", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO purchases")).
			WillReturnError(&driver.MySQLError{Number: 1062, Message: "Duplicate entry"})

		err := NewPurchaseRepository(db).Create(context.Background(), purchase)
		assert.ErrorIs(t, err, model.ErrPersistence)
	})
}

func TestPurchaseRepository_Update(t *testing.T) {
	purchase := &model.Purchase{
		ID:        uuid.New(),
		Amount:    decimal.RequireFromString("499"),
		Status:    model.PurchaseCompleted,
		Version:   2,
		UpdatedAt: time.Now().UTC(),
	}
	updateSQL := regexp.QuoteMeta("WHERE id = ? AND status = ? AND version = ?")

	t.Run("Guarded transition applied", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(updateSQL).
			WithArgs(purchase.Amount, "completed", 2, sqlmock.AnyArg(), purchase.ID, "pending", 1).
			WillReturnResult(sqlmock.NewResult(0, 1))

		assert.NoError(t, NewPurchaseRepository(db).Update(context.Background(), purchase))
	})

	t.Run("Row no longer pending", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(updateSQL).WillReturnResult(sqlmock.NewResult(0, 0))

		err := NewPurchaseRepository(db).Update(context.Background(), purchase)
		assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)
	})

	t.Run("Driver failure", func(t *testing.T) {
		db, mock := setupMockDB(t)
		mock.ExpectExec(updateSQL).WillReturnError(errors.New("connection reset"))

		err := NewPurchaseRepository(db).Update(context.Background(), purchase)
		assert.ErrorIs(t, err, model.ErrPersistence)
		assert.Contains(t, err.Error(), "connection reset")
	})
}

func TestPurchaseRepository_HasCompleted(t *testing.T) {
	db, mock := setupMockDB(t)
	courseID, buyerID := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(")).
		WithArgs(courseID, buyerID, "completed").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(1))

	ok, err := NewPurchaseRepository(db).HasCompleted(context.Background(), courseID, buyerID)

	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPurchaseRepository_ListCompleted(t *testing.T) {
	db, mock := setupMockDB(t)
	now := time.Now().UTC()
	id, courseID := uuid.New(), uuid.New()

	columns := append(append([]string{}, purchaseRowColumns...), "course_title", "course_thumbnail", "course_price")
	mock.ExpectQuery(regexp.QuoteMeta("JOIN courses c ON c.id = p.course_id")).
		WithArgs("completed").
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(id.String(), courseID.String(), uuid.NewString(), "499.00", "completed", "cs_1", 2, now, now,
				"Go in Production", "go.png", "499.00"))

	purchases, err := NewPurchaseRepository(db).ListCompleted(context.Background())

	require.NoError(t, err)
	require.Len(t, purchases, 1)
	assert.Equal(t, id, purchases[0].ID)
	assert.Equal(t, courseID, purchases[0].Course.ID)
	assert.Equal(t, "Go in Production", purchases[0].Course.Title)
}

func TestWithTx(t *testing.T) {
	t.Run("Commit", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPurchaseRepository(db)
		buyers := NewBuyerRepository(db)
		courseID, buyerID := uuid.New(), uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO buyer_courses")).
			WithArgs(buyerID, courseID).
			WillReturnResult(sqlmock.NewResult(0, 1))
		mock.ExpectCommit()

		err := repo.WithTx(context.Background(), func(ctx context.Context) error {
			require.NotNil(t, txFromContext(ctx))
			return buyers.AppendEnrolledCourse(ctx, buyerID, courseID)
		})
		assert.NoError(t, err)
	})

	t.Run("Rollback on error", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPurchaseRepository(db)
		lectures := NewLectureRepository(db)
		courseID := uuid.New()

		mock.ExpectBegin()
		mock.ExpectExec(regexp.QuoteMeta("UPDATE lectures SET is_preview_free = 1")).
			WithArgs(courseID).
			WillReturnError(errors.New("lock wait timeout"))
		mock.ExpectRollback()

		err := repo.WithTx(context.Background(), func(ctx context.Context) error {
			return lectures.SetPreviewFreeForCourse(ctx, courseID)
		})
		assert.ErrorIs(t, err, model.ErrPersistence)
	})

	t.Run("Nested call joins the outer transaction", func(t *testing.T) {
		db, mock := setupMockDB(t)
		repo := NewPurchaseRepository(db)

		mock.ExpectBegin()
		mock.ExpectCommit()

		err := repo.WithTx(context.Background(), func(ctx context.Context) error {
			outer := txFromContext(ctx)
			return repo.WithTx(ctx, func(ctx context.Context) error {
				assert.Same(t, outer, txFromContext(ctx))
				return nil
			})
		})
		assert.NoError(t, err)
	})
}

func TestCourseRepository_Find(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCourseRepository(db)
	courseID, buyerID := uuid.New(), uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, thumbnail, price FROM courses WHERE id = ?")).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "thumbnail", "price"}).
			AddRow(courseID.String(), "Go in Production", "go.png", "499.00"))
	mock.ExpectQuery(regexp.QuoteMeta("FROM lectures WHERE course_id = ?")).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "course_id", "title", "is_preview_free"}).
			AddRow(uuid.NewString(), courseID.String(), "Intro", true).
			AddRow(uuid.NewString(), courseID.String(), "Channels", false))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT buyer_id FROM course_students")).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"buyer_id"}).AddRow(buyerID.String()))

	course, err := repo.Find(context.Background(), courseID)

	require.NoError(t, err)
	assert.Equal(t, "Go in Production", course.Title)
	assert.True(t, decimal.RequireFromString("499").Equal(course.Price))
	require.Len(t, course.Lectures, 2)
	assert.True(t, course.Lectures[0].IsPreviewFree)
	assert.False(t, course.Lectures[1].IsPreviewFree)
	assert.Equal(t, []uuid.UUID{buyerID}, course.EnrolledStudents)
}

func TestCourseRepository_Find_NotFound(t *testing.T) {
	db, mock := setupMockDB(t)
	courseID := uuid.New()

	mock.ExpectQuery(regexp.QuoteMeta("FROM courses WHERE id = ?")).
		WithArgs(courseID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "thumbnail", "price"}))

	_, err := NewCourseRepository(db).Find(context.Background(), courseID)

	assert.ErrorIs(t, err, model.ErrCourseNotFound)
}

func TestCourseRepository_AppendEnrolledStudent(t *testing.T) {
	db, mock := setupMockDB(t)
	courseID, buyerID := uuid.New(), uuid.New()

	mock.ExpectExec(regexp.QuoteMeta("INSERT IGNORE INTO course_students (course_id, buyer_id) VALUES (?, ?)")).
		WithArgs(courseID, buyerID).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.NoError(t, NewCourseRepository(db).AppendEnrolledStudent(context.Background(), courseID, buyerID))
}

func TestNormalizeDSN(t *testing.T) {
	dsn, err := normalizeDSN("user:pass@tcp(localhost:3306)/courses")
	require.NoError(t, err)

	cfg, err := driver.ParseDSN(dsn)
	require.NoError(t, err)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)
	assert.Equal(t, "courses", cfg.DBName)

	_, err = normalizeDSN("not a dsn")
	assert.Error(t, err)
}
