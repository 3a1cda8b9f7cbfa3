package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/aanand-mishra/student-records-api/internal/apperr"
	"github.com/aanand-mishra/student-records-api/internal/storage"
	"github.com/aanand-mishra/student-records-api/internal/types"
)

// StudentFields are the caller-supplied fields of a student record. Update
// replaces all of them.
type StudentFields struct {
	Name      string
	Email     string
	BirthDate types.Date
	Program   string
}

// StudentService mediates between the HTTP layer and a storage backend. It
// owns the email uniqueness check and the createdAt/updatedAt lifecycle.
type StudentService struct {
	store  storage.Storage
	logger *zap.Logger
	now    func() time.Time
}

type Option func(*StudentService)

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *StudentService) {
		s.now = now
	}
}

func NewStudentService(store storage.Storage, logger *zap.Logger, opts ...Option) *StudentService {
	s := &StudentService{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create inserts a new student. The existence check gives the common case a
// clear message; the store's unique index catches a concurrent insert that
// slips past it.
func (s *StudentService) Create(ctx context.Context, fields StudentFields) (types.Student, error) {
	exists, err := s.store.ExistsByEmail(ctx, fields.Email)
	if err != nil {
		return types.Student{}, s.storeFailure("check email", err)
	}
	if exists {
		return types.Student{}, duplicateEmail(fields.Email)
	}

	now := s.timestamp()
	student, err := s.store.CreateStudent(ctx, types.Student{
		Name:      fields.Name,
		Email:     fields.Email,
		BirthDate: fields.BirthDate,
		Program:   fields.Program,
		CreatedAt: now,
		UpdatedAt: now,
	})
	if err != nil {
		if errors.Is(err, storage.ErrDuplicateKey) {
			return types.Student{}, duplicateEmail(fields.Email)
		}
		return types.Student{}, s.storeFailure("create student", err)
	}

	s.logger.Info("Student created",
		zap.String("id", student.ID),
		zap.String("email", student.Email),
	)

	return student, nil
}

func (s *StudentService) GetByID(ctx context.Context, id string) (types.Student, error) {
	student, err := s.store.GetStudentByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, studentNotFound(id)
		}
		return types.Student{}, s.storeFailure("get student by id", err)
	}
	return student, nil
}

func (s *StudentService) GetByEmail(ctx context.Context, email string) (types.Student, error) {
	student, err := s.store.GetStudentByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return types.Student{}, apperr.NotFound("Student with email %s not found", email)
		}
		return types.Student{}, s.storeFailure("get student by email", err)
	}
	return student, nil
}

func (s *StudentService) List(ctx context.Context) ([]types.Student, error) {
	students, err := s.store.GetStudents(ctx)
	if err != nil {
		return nil, s.storeFailure("list students", err)
	}
	return students, nil
}

func (s *StudentService) ListByProgram(ctx context.Context, program string) ([]types.Student, error) {
	students, err := s.store.GetStudentsByProgram(ctx, program)
	if err != nil {
		return nil, s.storeFailure("list students by program", err)
	}
	return students, nil
}

func (s *StudentService) SearchByName(ctx context.Context, fragment string) ([]types.Student, error) {
	students, err := s.store.SearchStudentsByName(ctx, fragment)
	if err != nil {
		return nil, s.storeFailure("search students by name", err)
	}
	return students, nil
}

// ListByBirthDateRange returns students born in [start, end]. An inverted
// range matches nothing and is not an error.
func (s *StudentService) ListByBirthDateRange(ctx context.Context, start, end types.Date) ([]types.Student, error) {
	if start.After(end.Time) {
		return []types.Student{}, nil
	}

	students, err := s.store.GetStudentsByBirthDateRange(ctx, start, end)
	if err != nil {
		return nil, s.storeFailure("list students by birth date", err)
	}
	return students, nil
}

func (s *StudentService) ListOrderedByName(ctx context.Context) ([]types.Student, error) {
	students, err := s.store.GetStudentsOrderedByName(ctx)
	if err != nil {
		return nil, s.storeFailure("list students ordered by name", err)
	}
	return students, nil
}

func (s *StudentService) CountByProgram(ctx context.Context, program string) (int64, error) {
	count, err := s.store.CountStudentsByProgram(ctx, program)
	if err != nil {
		return 0, s.storeFailure("count students by program", err)
	}
	return count, nil
}

// Update replaces every field of the student with id. Keeping the record's
// own email is allowed; taking another record's email is not.
func (s *StudentService) Update(ctx context.Context, id string, fields StudentFields) (types.Student, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return types.Student{}, err
	}

	if existing.Email != fields.Email {
		exists, err := s.store.ExistsByEmail(ctx, fields.Email)
		if err != nil {
			return types.Student{}, s.storeFailure("check email", err)
		}
		if exists {
			return types.Student{}, duplicateEmail(fields.Email)
		}
	}

	existing.Name = fields.Name
	existing.Email = fields.Email
	existing.BirthDate = fields.BirthDate
	existing.Program = fields.Program
	existing.UpdatedAt = s.advance(existing.UpdatedAt)

	updated, err := s.store.UpdateStudent(ctx, existing)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return types.Student{}, studentNotFound(id)
		case errors.Is(err, storage.ErrDuplicateKey):
			return types.Student{}, duplicateEmail(fields.Email)
		}
		return types.Student{}, s.storeFailure("update student", err)
	}

	s.logger.Info("Student updated",
		zap.String("id", updated.ID),
		zap.String("email", updated.Email),
	)

	return updated, nil
}

func (s *StudentService) Delete(ctx context.Context, id string) error {
	if err := s.store.DeleteStudentByID(ctx, id); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return studentNotFound(id)
		}
		return s.storeFailure("delete student", err)
	}

	s.logger.Info("Student deleted", zap.String("id", id))
	return nil
}

// Ready reports whether the store answers. Health does not touch the store;
// this does.
func (s *StudentService) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return s.storeFailure("ping", err)
	}
	return nil
}

// timestamp is the current time at the precision every backend can store.
func (s *StudentService) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Millisecond)
}

// advance returns a timestamp strictly after prev, so updatedAt moves
// forward even when two writes land in the same millisecond.
func (s *StudentService) advance(prev time.Time) time.Time {
	now := s.timestamp()
	if !now.After(prev) {
		now = prev.Add(time.Millisecond)
	}
	return now
}

func (s *StudentService) storeFailure(op string, err error) error {
	if errors.Is(err, storage.ErrUnavailable) {
		s.logger.Warn("Storage unavailable", zap.String("op", op), zap.Error(err))
		return apperr.Unavailable(err)
	}
	return apperr.Internal(err)
}

func studentNotFound(id string) error {
	return apperr.NotFound("Student with ID %s not found", id)
}

func duplicateEmail(email string) error {
	return apperr.DuplicateKey("A student with email %s already exists", email)
}
