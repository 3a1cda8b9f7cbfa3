// Package sqlite provides a SQLite-backed implementation of the
// storage.Storage interface using Go's standard database/sql package.
//
// WHY SQLite?
// ───────────
// SQLite stores everything in a single file on disk. There is no network,
// no separate server process, and no installation beyond the driver. It is
// the default backend for local development and for the test suite.
//
// The package registers its own variant of the sqlite3 driver that adds a
// Unicode-aware fold() SQL function.
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"

	"github.com/aanand-mishra/student-records-api/internal/config"
	"github.com/aanand-mishra/student-records-api/internal/storage"
	"github.com/aanand-mishra/student-records-api/internal/storage/migrations"
	"github.com/aanand-mishra/student-records-api/internal/types"
)

// timeLayout is fixed-width so that text comparison orders timestamps.
const timeLayout = "2006-01-02T15:04:05.000Z07:00"

// driverName is go-sqlite3 with fold() registered on every connection.
// SQLite's built-in lower() only folds ASCII letters.
const driverName = "sqlite3_students"

func init() {
	sql.Register(driverName, &sqlite3.SQLiteDriver{
		ConnectHook: func(conn *sqlite3.SQLiteConn) error {
			return conn.RegisterFunc("fold", strings.ToLower, true)
		},
	})
}

const selectColumns = "SELECT id, name, email, birth_date, program, created_at, updated_at FROM students"

// SQLite is the concrete implementation of storage.Storage.
// It holds a *sql.DB which is a connection pool managed by database/sql.
// A single *sql.DB is safe for concurrent use by multiple goroutines.
type SQLite struct {
	Db *sql.DB
}

var _ storage.Storage = (*SQLite)(nil)

// New opens the SQLite database at cfg.Storage.Path, applies the schema
// migrations, and returns a ready-to-use *SQLite.
func New(ctx context.Context, cfg *config.Config) (*SQLite, error) {
	path := cfg.Storage.Path
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("sqlite.New: create storage dir: %w", err)
		}
	}

	// busy_timeout makes concurrent writers wait for the lock instead of
	// failing immediately with SQLITE_BUSY.
	db, err := sql.Open(driverName, fmt.Sprintf("file:%s?_busy_timeout=5000", path))
	if err != nil {
		return nil, fmt.Errorf("sqlite.New: open db: %w", err)
	}

	if err := migrations.Apply(ctx, migrations.SQLite, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite.New: %w", err)
	}

	return &SQLite{Db: db}, nil
}

func (s *SQLite) CreateStudent(ctx context.Context, student types.Student) (types.Student, error) {
	student.ID = uuid.NewString()

	_, err := s.Db.ExecContext(ctx,
		`INSERT INTO students (id, name, email, birth_date, program, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		student.ID,
		student.Name,
		student.Email,
		student.BirthDate.String(),
		student.Program,
		formatTime(student.CreatedAt),
		formatTime(student.UpdatedAt),
	)
	if err != nil {
		return types.Student{}, translate("CreateStudent: exec", err)
	}

	return student, nil
}

func (s *SQLite) GetStudentByID(ctx context.Context, id string) (types.Student, error) {
	row := s.Db.QueryRowContext(ctx, selectColumns+" WHERE id = ? LIMIT 1", id)
	student, err := scanStudent(row)
	if err != nil {
		return types.Student{}, translate("GetStudentByID: scan", err)
	}
	return student, nil
}

func (s *SQLite) GetStudentByEmail(ctx context.Context, email string) (types.Student, error) {
	row := s.Db.QueryRowContext(ctx, selectColumns+" WHERE email = ? LIMIT 1", email)
	student, err := scanStudent(row)
	if err != nil {
		return types.Student{}, translate("GetStudentByEmail: scan", err)
	}
	return student, nil
}

func (s *SQLite) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.Db.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM students WHERE email = ?)", email,
	).Scan(&exists)
	if err != nil {
		return false, translate("ExistsByEmail: scan", err)
	}
	return exists, nil
}

func (s *SQLite) GetStudents(ctx context.Context) ([]types.Student, error) {
	return s.queryStudents(ctx, "GetStudents", selectColumns)
}

func (s *SQLite) GetStudentsByProgram(ctx context.Context, program string) ([]types.Student, error) {
	return s.queryStudents(ctx, "GetStudentsByProgram", selectColumns+" WHERE program = ?", program)
}

// SearchStudentsByName uses instr rather than LIKE so that % and _ in the
// fragment are matched literally.
func (s *SQLite) SearchStudentsByName(ctx context.Context, fragment string) ([]types.Student, error) {
	return s.queryStudents(ctx, "SearchStudentsByName",
		selectColumns+" WHERE instr(fold(name), ?) > 0", strings.ToLower(fragment))
}

func (s *SQLite) GetStudentsByBirthDateRange(ctx context.Context, start, end types.Date) ([]types.Student, error) {
	return s.queryStudents(ctx, "GetStudentsByBirthDateRange",
		selectColumns+" WHERE birth_date BETWEEN ? AND ?", start.String(), end.String())
}

func (s *SQLite) GetStudentsOrderedByName(ctx context.Context) ([]types.Student, error) {
	return s.queryStudents(ctx, "GetStudentsOrderedByName", selectColumns+" ORDER BY name ASC")
}

func (s *SQLite) CountStudentsByProgram(ctx context.Context, program string) (int64, error) {
	var count int64
	err := s.Db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM students WHERE program = ?", program,
	).Scan(&count)
	if err != nil {
		return 0, translate("CountStudentsByProgram: scan", err)
	}
	return count, nil
}

// UpdateStudent replaces a student's data with the provided values and
// returns the row as stored.
func (s *SQLite) UpdateStudent(ctx context.Context, student types.Student) (types.Student, error) {
	result, err := s.Db.ExecContext(ctx,
		`UPDATE students
		 SET name = ?, email = ?, birth_date = ?, program = ?, updated_at = ?
		 WHERE id = ?`,
		student.Name,
		student.Email,
		student.BirthDate.String(),
		student.Program,
		formatTime(student.UpdatedAt),
		student.ID,
	)
	if err != nil {
		return types.Student{}, translate("UpdateStudent: exec", err)
	}

	if err := requireAffected(result, "UpdateStudent"); err != nil {
		return types.Student{}, err
	}

	// Re-fetch the record so we return exactly what is stored in the DB.
	return s.GetStudentByID(ctx, student.ID)
}

func (s *SQLite) DeleteStudentByID(ctx context.Context, id string) error {
	result, err := s.Db.ExecContext(ctx, "DELETE FROM students WHERE id = ?", id)
	if err != nil {
		return translate("DeleteStudentByID: exec", err)
	}
	return requireAffected(result, "DeleteStudentByID")
}

func (s *SQLite) Ping(ctx context.Context) error {
	if err := s.Db.PingContext(ctx); err != nil {
		return translate("Ping", err)
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.Db.Close()
}

func (s *SQLite) queryStudents(ctx context.Context, op, query string, args ...any) ([]types.Student, error) {
	rows, err := s.Db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, translate(op+": query", err)
	}
	defer rows.Close()

	// Returning [] instead of null in JSON is better API behaviour.
	students := make([]types.Student, 0)
	for rows.Next() {
		student, err := scanStudent(rows)
		if err != nil {
			return nil, translate(op+": scan row", err)
		}
		students = append(students, student)
	}

	if err := rows.Err(); err != nil {
		return nil, translate(op+": rows iteration", err)
	}

	return students, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanStudent(row scanner) (types.Student, error) {
	var (
		student                     types.Student
		birthDate, created, updated string
	)

	if err := row.Scan(
		&student.ID,
		&student.Name,
		&student.Email,
		&birthDate,
		&student.Program,
		&created,
		&updated,
	); err != nil {
		return types.Student{}, err
	}

	var err error
	if student.BirthDate, err = types.ParseDate(birthDate); err != nil {
		return types.Student{}, fmt.Errorf("birth_date: %w", err)
	}
	if student.CreatedAt, err = time.Parse(timeLayout, created); err != nil {
		return types.Student{}, fmt.Errorf("created_at: %w", err)
	}
	if student.UpdatedAt, err = time.Parse(timeLayout, updated); err != nil {
		return types.Student{}, fmt.Errorf("updated_at: %w", err)
	}

	return student, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func requireAffected(result sql.Result, op string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return translate(op+": rows affected", err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}
	return nil
}

// translate maps driver errors onto the storage sentinels, keeping the
// original error in the chain for logging.
func translate(op string, err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		switch {
		case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%s: %w: %w", op, storage.ErrDuplicateKey, err)
		case sqliteErr.Code == sqlite3.ErrBusy,
			sqliteErr.Code == sqlite3.ErrLocked,
			sqliteErr.Code == sqlite3.ErrCantOpen,
			sqliteErr.Code == sqlite3.ErrIoErr,
			sqliteErr.Code == sqlite3.ErrNotADB:
			return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
		}
	}

	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) {
		return fmt.Errorf("%s: %w: %w", op, storage.ErrUnavailable, err)
	}

	return fmt.Errorf("%s: %w", op, err)
}
