// Package postgres implements storage.Storage on PostgreSQL through a pgx
// connection pool.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/aanand-mishra/student-records-api/internal/config"
	"github.com/aanand-mishra/student-records-api/internal/storage"
	"github.com/aanand-mishra/student-records-api/internal/storage/migrations"
	"github.com/aanand-mishra/student-records-api/internal/types"
)

const selectColumns = `SELECT id::text, name, email, birth_date, program, created_at, updated_at FROM students`

// PostgreSQL error codes we react to.
const (
	codeUniqueViolation   = "23505"
	codeTooManyConns      = "53300"
	codeCannotConnectNow  = "57P03"
	codeAdminShutdown     = "57P01"
	codeConnectionFailure = "08006"
)

type Postgres struct {
	pool *pgxpool.Pool
}

var _ storage.Storage = (*Postgres)(nil)

// New connects to cfg.Storage.PostgresDSN, applies migrations and returns
// the store.
func New(ctx context.Context, cfg *config.Config) (*Postgres, error) {
	pool, err := pgxpool.New(ctx, cfg.Storage.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("postgres.New: create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: %w", translate("ping", err))
	}

	// goose works on *sql.DB, so wrap the pool for the migration run.
	db := stdlib.OpenDBFromPool(pool)
	defer db.Close()
	if err := migrations.Apply(ctx, migrations.Postgres, db); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres.New: %w", err)
	}

	return &Postgres{pool: pool}, nil
}

func (p *Postgres) CreateStudent(ctx context.Context, student types.Student) (types.Student, error) {
	student.ID = uuid.NewString()

	_, err := p.pool.Exec(ctx, `
		INSERT INTO students (id, name, email, birth_date, program, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`,
		student.ID,
		student.Name,
		student.Email,
		student.BirthDate.Time,
		student.Program,
		student.CreatedAt,
		student.UpdatedAt,
	)
	if err != nil {
		return types.Student{}, translate("create student", err)
	}

	return student, nil
}

func (p *Postgres) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	// A malformed id cannot name a row; the UUID column would reject it
	// with a type error instead.
	if _, err := uuid.Parse(id); err != nil {
		return types.Student{}, fmt.Errorf("get student by id: %w", storage.ErrNotFound)
	}

	student, err := scanStudent(p.pool.QueryRow(ctx, selectColumns+` WHERE id = $1`, id))
	if err != nil {
		return types.Student{}, translate("get student by id", err)
	}
	return student, nil
}

func (p *Postgres) GetStudentByEmail(ctx context.Context, email string) (types.Student, error) {
	student, err := scanStudent(p.pool.QueryRow(ctx, selectColumns+` WHERE email = $1`, email))
	if err != nil {
		return types.Student{}, translate("get student by email", err)
	}
	return student, nil
}

func (p *Postgres) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM students WHERE email = $1)`, email,
	).Scan(&exists)
	if err != nil {
		return false, translate("exists by email", err)
	}
	return exists, nil
}

func (p *Postgres) GetStudents(ctx context.Context) ([]types.Student, error) {
	return p.queryStudents(ctx, "get students", selectColumns)
}

func (p *Postgres) GetStudentsByProgram(ctx context.Context, program string) ([]types.Student, error) {
	return p.queryStudents(ctx, "get students by program", selectColumns+` WHERE program = $1`, program)
}

func (p *Postgres) SearchStudentsByName(ctx context.Context, fragment string) ([]types.Student, error) {
	return p.queryStudents(ctx, "search students by name",
		selectColumns+` WHERE strpos(lower(name), lower($1)) > 0`, fragment)
}

func (p *Postgres) GetStudentsByBirthDateRange(ctx context.Context, start, end types.Date) ([]types.Student, error) {
	return p.queryStudents(ctx, "get students by birth date range",
		selectColumns+` WHERE birth_date BETWEEN $1 AND $2`, start.Time, end.Time)
}

func (p *Postgres) GetStudentsOrderedByName(ctx context.Context) ([]types.Student, error) {
	return p.queryStudents(ctx, "get students ordered by name", selectColumns+` ORDER BY name ASC`)
}

func (p *Postgres) CountStudentsByProgram(ctx context.Context, program string) (int64, error) {
	var count int64
	err := p.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM students WHERE program = $1`, program,
	).Scan(&count)
	if err != nil {
		return 0, translate("count students by program", err)
	}
	return count, nil
}

func (p *Postgres) UpdateStudent(ctx context.Context, student types.Student) (types.Student, error) {
	if _, err := uuid.Parse(student.ID); err != nil {
		return types.Student{}, fmt.Errorf("update student: %w", storage.ErrNotFound)
	}

	updated, err := scanStudent(p.pool.QueryRow(ctx, `
		UPDATE students
		SET name = $1, email = $2, birth_date = $3, program = $4, updated_at = $5
		WHERE id = $6
		RETURNING id::text, name, email, birth_date, program, created_at, updated_at
	`,
		student.Name,
		student.Email,
		student.BirthDate.Time,
		student.Program,
		student.UpdatedAt,
		student.ID,
	))
	if err != nil {
		return types.Student{}, translate("update student", err)
	}
	return updated, nil
}

func (p *Postgres) DeleteStudentByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete student: %w", storage.ErrNotFound)
	}

	tag, err := p.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return translate("delete student", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delete student: %w", storage.ErrNotFound)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	if err := p.pool.Ping(ctx); err != nil {
		return translate("ping", err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func (p *Postgres) queryStudents(ctx context.Context, op, query string, args ...any) ([]types.Student, error) {
	rows, err := p.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, translate(op, err)
	}
	defer rows.Close()

	students := make([]types.Student, 0)
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, translate(op, err)
		}
		students = append(students, student)
	}
	if err := rows.Err(); err != nil {
		return nil, translate(op, err)
	}

	return students, nil
}

func scanStudent(row pgx.Row) (types.Student, error) {
	var (
		student   types.Student
		birthDate time.Time
	)

	err := row.Scan(
		&student.ID,
		&student.Name,
		&student.Email,
		&birthDate,
		&student.Program,
		&student.CreatedAt,
		&student.UpdatedAt,
	)
	if err != nil {
		return types.Student{}, err
	}

	student.BirthDate = types.DateOf(birthDate)
	student.CreatedAt = student.CreatedAt.UTC()
	student.UpdatedAt = student.UpdatedAt.UTC()
	return student, nil
}

// translate maps pgx errors onto the storage sentinels.
func translate(op string, err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return fmt.Errorf("%s: %w: %w", op, storage.ErrDuplicateKey, err)
		case codeTooManyConns, codeCannotConnectNow, codeAdminShutdown, codeConnectionFailure:
			return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || pgconn.Timeout(err) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
	}

	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
