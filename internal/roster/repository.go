package roster

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates resource not found.
var ErrNotFound = errors.New("roster: not found")

// Repository provides PostgreSQL backed reads over roster data.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Class fetches a class by ID.
func (r *Repository) Class(ctx context.Context, id int64) (*Class, error) {
	var c Class
	err := r.pool.QueryRow(ctx, `
		SELECT id, school_code, name, academic_year_id
		FROM classes
		WHERE id = $1`, id).
		Scan(&c.ID, &c.SchoolCode, &c.Name, &c.AcademicYearID)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ClassStudents returns the ids of students currently enrolled in a class.
func (r *Repository) ClassStudents(ctx context.Context, classID int64) ([]int64, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT student_id
		FROM class_students
		WHERE class_id = $1 AND left_at IS NULL
		ORDER BY student_id`, classID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// StudentName resolves a student id to a display name.
func (r *Repository) StudentName(ctx context.Context, studentID int64) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT full_name FROM students WHERE id = $1`, studentID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return name, err
}

// UserName resolves a staff user id to a display name. Billing stores the
// recording user's id only; names are resolved at read time so later renames
// show up in detail views.
func (r *Repository) UserName(ctx context.Context, userID int64) (string, error) {
	var name string
	err := r.pool.QueryRow(ctx, `SELECT full_name FROM users WHERE id = $1`, userID).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", ErrNotFound
	}
	return name, err
}
