package mysql

import (
	"context"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/shivamrj1035/tutor-flow-backend/pkg/domain/model"
)

type courseRow struct {
	ID        uuid.UUID       `db:"id"`
	Title     string          `db:"title"`
	Thumbnail string          `db:"thumbnail"`
	Price     decimal.Decimal `db:"price"`
}

type lectureRow struct {
	ID            uuid.UUID `db:"id"`
	CourseID      uuid.UUID `db:"course_id"`
	Title         string    `db:"title"`
	IsPreviewFree bool      `db:"is_preview_free"`
}

type CourseRepository struct {
	db *sqlx.DB
}

func NewCourseRepository(db *sqlx.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

func (r *CourseRepository) Find(ctx context.Context, id uuid.UUID) (*model.Course, error) {
	q := queryer(ctx, r.db)

	var row courseRow
	err := sqlx.GetContext(ctx, q, &row, `SELECT id, title, thumbnail, price FROM courses WHERE id = ?`, id)
	if err != nil {
		if isNoRows(err) {
			return nil, model.ErrCourseNotFound
		}
		return nil, persistenceError(err, "find course")
	}

	var lectures []lectureRow
	err = sqlx.SelectContext(ctx, q, &lectures,
		`SELECT id, course_id, title, is_preview_free FROM lectures WHERE course_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, persistenceError(err, "find course lectures")
	}

	var students []uuid.UUID
	err = sqlx.SelectContext(ctx, q, &students,
		`SELECT buyer_id FROM course_students WHERE course_id = ? ORDER BY enrolled_at`, id)
	if err != nil {
		return nil, persistenceError(err, "find course students")
	}

	course := &model.Course{
		ID:               row.ID,
		Title:            row.Title,
		Thumbnail:        row.Thumbnail,
		Price:            row.Price,
		EnrolledStudents: students,
	}
	for _, l := range lectures {
		course.Lectures = append(course.Lectures, model.Lecture{
			ID:            l.ID,
			CourseID:      l.CourseID,
			Title:         l.Title,
			IsPreviewFree: l.IsPreviewFree,
		})
	}
	return course, nil
}

// AppendEnrolledStudent adds buyerID to the course's student set; repeating it
// is a no-op.
func (r *CourseRepository) AppendEnrolledStudent(ctx context.Context, courseID, buyerID uuid.UUID) error {
	const stmt = `INSERT IGNORE INTO course_students (course_id, buyer_id) VALUES (?, ?)`

	if _, err := queryer(ctx, r.db).ExecContext(ctx, stmt, courseID, buyerID); err != nil {
		return persistenceError(err, "append enrolled student")
	}
	return nil
}

type LectureRepository struct {
	db *sqlx.DB
}

func NewLectureRepository(db *sqlx.DB) *LectureRepository {
	return &LectureRepository{db: db}
}

func (r *LectureRepository) SetPreviewFreeForCourse(ctx context.Context, courseID uuid.UUID) error {
	const stmt = `UPDATE lectures SET is_preview_free = 1 WHERE course_id = ? AND is_preview_free = 0`

	if _, err := queryer(ctx, r.db).ExecContext(ctx, stmt, courseID); err != nil {
		return persistenceError(err, "unlock lectures")
	}
	return nil
}
