// Package storage defines the Storage interface, the contract that any
// database backend must satisfy to work with this application.
//
// WHY AN INTERFACE?
// ─────────────────
// The service layer should not know or care which database it is talking
// to. By depending only on this interface:
//
//   - Switching databases = pick another backend in config. The sqlite,
//     postgres and mongo packages all implement Storage.
//
//   - Writing tests = pass a fake that satisfies the interface.
//     No real database needed for unit tests.
//
// Backends translate their native errors into the sentinels below so
// callers can classify failures with errors.Is regardless of the driver.
package storage

import (
	"context"
	"errors"

	"github.com/aanand-mishra/student-records-api/internal/types"
)

var (
	// ErrNotFound means no record matched the lookup key.
	ErrNotFound = errors.New("storage: record not found")

	// ErrDuplicateKey means a write violated the unique index on email.
	ErrDuplicateKey = errors.New("storage: duplicate key")

	// ErrUnavailable means the database could not be reached or refused
	// to serve the request (connection refused, timeout, locked database).
	ErrUnavailable = errors.New("storage: database unavailable")
)

// Drivers accepted by the STORAGE_DRIVER setting.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

// Storage is the database contract.
// Any concrete type that implements ALL of these methods automatically
// satisfies this interface.
//
// List methods return an empty slice (not nil) when nothing matches.
type Storage interface {
	// CreateStudent inserts student, assigning its ID. CreatedAt and
	// UpdatedAt are stored as given. Returns ErrDuplicateKey when the email
	// is already taken.
	CreateStudent(ctx context.Context, student types.Student) (types.Student, error)

	// GetStudentByID returns ErrNotFound when no record has this id.
	GetStudentByID(ctx context.Context, id string) (types.Student, error)

	// GetStudentByEmail matches the email exactly (case-sensitive).
	GetStudentByEmail(ctx context.Context, email string) (types.Student, error)

	// ExistsByEmail reports whether any record holds the email.
	ExistsByEmail(ctx context.Context, email string) (bool, error)

	// GetStudents returns every student in store-native order.
	GetStudents(ctx context.Context) ([]types.Student, error)

	// GetStudentsByProgram returns students whose program equals program.
	GetStudentsByProgram(ctx context.Context, program string) ([]types.Student, error)

	// SearchStudentsByName returns students whose name contains fragment,
	// ignoring case.
	SearchStudentsByName(ctx context.Context, fragment string) ([]types.Student, error)

	// GetStudentsByBirthDateRange returns students born in [start, end].
	GetStudentsByBirthDateRange(ctx context.Context, start, end types.Date) ([]types.Student, error)

	// GetStudentsOrderedByName returns every student sorted by name ascending.
	GetStudentsOrderedByName(ctx context.Context) ([]types.Student, error)

	// CountStudentsByProgram counts students whose program equals program.
	CountStudentsByProgram(ctx context.Context, program string) (int64, error)

	// UpdateStudent replaces every mutable field of the record with
	// student.ID, keeping CreatedAt. Returns ErrNotFound or ErrDuplicateKey.
	UpdateStudent(ctx context.Context, student types.Student) (types.Student, error)

	// DeleteStudentByID removes a record permanently. Returns ErrNotFound
	// when nothing was deleted.
	DeleteStudentByID(ctx context.Context, id string) error

	// Ping checks the database is reachable.
	Ping(ctx context.Context) error

	// Close releases connections held by the backend.
	Close() error
}
