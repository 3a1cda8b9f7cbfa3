// Package student contains all HTTP handlers related to the Student resource.
//
// HANDLER PATTERN USED HERE: THE CLOSURE / FACTORY PATTERN
// ────────────────────────────────────────────────────────
// The router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// That signature has no room for extra parameters like the service. To
// inject dependencies, each factory accepts the service and returns a
// function with the exact signature the router needs:
//
//	r.Post("/", student.New(svc))
//	//          ^^^^^^^^^^^^^^^^
//	//  New(svc) is called ONCE at startup. The handler it returns is
//	//  called on EVERY incoming request.
//
// Handlers only decode, validate and shape responses. Every failure is
// handed to response.Error, which picks the status code.
package student

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/aanand-mishra/student-records-api/internal/apperr"
	"github.com/aanand-mishra/student-records-api/internal/service"
	"github.com/aanand-mishra/student-records-api/internal/types"
	"github.com/aanand-mishra/student-records-api/internal/utils/response"
	"github.com/aanand-mishra/student-records-api/internal/utils/validation"
)

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/students
//
// Request body (JSON):
//
//	{ "name": "Ana Gomez", "email": "ana@x.com", "birthDate": "2000-01-01", "program": "CS" }
//
// Success: 201 with the stored student.
// Errors:  400 bad body or validation, 409 email taken.
// ─────────────────────────────────────────────────────────────────────────────
func New(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zap.L().Info("Creating student")

		fields, err := decodeStudent(w, r)
		if err != nil {
			response.Error(w, err)
			return
		}

		created, err := svc.Create(r.Context(), fields)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusCreated, "Student created successfully", created)
	}
}

// GetList handles GET /api/students
func GetList(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		zap.L().Debug("Listing students")

		students, err := svc.List(r.Context())
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK,
			fmt.Sprintf("Retrieved %d students", len(students)), students)
	}
}

// GetByID handles GET /api/students/{id}
// Ids are opaque strings; an id no backend could have issued is simply not
// found.
func GetByID(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathParam(r, "id")
		if err != nil {
			response.Error(w, err)
			return
		}
		zap.L().Debug("Getting student", zap.String("id", id))

		student, err := svc.GetByID(r.Context(), id)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, "Student found", student)
	}
}

// GetByEmail handles GET /api/students/email/{email}
func GetByEmail(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, err := pathParam(r, "email")
		if err != nil {
			response.Error(w, err)
			return
		}
		zap.L().Debug("Getting student by email", zap.String("email", email))

		if err := validation.Var("email", email, "email"); err != nil {
			response.Error(w, err)
			return
		}

		student, err := svc.GetByEmail(r.Context(), email)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, "Student found", student)
	}
}

// GetByProgram handles GET /api/students/program/{program}
func GetByProgram(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		program, err := pathParam(r, "program")
		if err != nil {
			response.Error(w, err)
			return
		}

		if err := validation.Var("program", program, "notblank"); err != nil {
			response.Error(w, err)
			return
		}

		students, err := svc.ListByProgram(r.Context(), program)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK,
			fmt.Sprintf("Found %d students in program: %s", len(students), program), students)
	}
}

// Search handles GET /api/students/search?name=
// Matching is a case-insensitive substring match on the name.
func Search(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := r.URL.Query().Get("name")

		if err := validation.Var("name", name, "notblank"); err != nil {
			response.Error(w, err)
			return
		}

		students, err := svc.SearchByName(r.Context(), name)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK,
			fmt.Sprintf("Found %d students matching: %s", len(students), name), students)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /api/students/{id}
// Replaces ALL caller-supplied fields; the body uses the same rules as
// creation. An "id" in the body is ignored.
//
// Success: 200 with the updated student.
// Errors:  400 bad body or validation, 404 unknown id, 409 email taken.
// ─────────────────────────────────────────────────────────────────────────────
func Update(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathParam(r, "id")
		if err != nil {
			response.Error(w, err)
			return
		}
		zap.L().Info("Updating student", zap.String("id", id))

		fields, err := decodeStudent(w, r)
		if err != nil {
			response.Error(w, err)
			return
		}

		updated, err := svc.Update(r.Context(), id, fields)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, "Student updated successfully", updated)
	}
}

// Delete handles DELETE /api/students/{id}
func Delete(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathParam(r, "id")
		if err != nil {
			response.Error(w, err)
			return
		}
		zap.L().Info("Deleting student", zap.String("id", id))

		if err := svc.Delete(r.Context(), id); err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK, "Student deleted successfully", nil)
	}
}

// GetByBirthDateRange handles
// GET /api/students/birthdate-range?startDate=YYYY-MM-DD&endDate=YYYY-MM-DD
// Both bounds are inclusive. A start after the end yields an empty list.
func GetByBirthDateRange(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		start, err := parseDateParam(query.Get("startDate"), "startDate")
		if err != nil {
			response.Error(w, err)
			return
		}
		end, err := parseDateParam(query.Get("endDate"), "endDate")
		if err != nil {
			response.Error(w, err)
			return
		}

		students, err := svc.ListByBirthDateRange(r.Context(), start, end)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK,
			fmt.Sprintf("Found %d students born between %s and %s", len(students), start, end), students)
	}
}

// CountByProgram handles GET /api/students/count/program/{program}
func CountByProgram(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		program, err := pathParam(r, "program")
		if err != nil {
			response.Error(w, err)
			return
		}

		if err := validation.Var("program", program, "notblank"); err != nil {
			response.Error(w, err)
			return
		}

		count, err := svc.CountByProgram(r.Context(), program)
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK,
			fmt.Sprintf("Student count for program %s: %d", program, count), count)
	}
}

// GetOrderedByName handles GET /api/students/ordered-by-name
func GetOrderedByName(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		students, err := svc.ListOrderedByName(r.Context())
		if err != nil {
			response.Error(w, err)
			return
		}

		response.Success(w, http.StatusOK,
			fmt.Sprintf("Retrieved %d students ordered by name", len(students)), students)
	}
}

// Health handles GET /api/students/health. It does not touch the store.
func Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		response.Success(w, http.StatusOK, "Student service is running", "OK")
	}
}

// Ready handles GET /readyz. Unlike Health it pings the store.
func Ready(svc *service.StudentService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Ready(r.Context()); err != nil {
			response.Error(w, err)
			return
		}
		response.Success(w, http.StatusOK, "Database is reachable", "OK")
	}
}

// MaxBodyBytes caps create and update bodies.
const MaxBodyBytes = 1 << 20

// decodeStudent reads and validates a StudentRequest body.
func decodeStudent(w http.ResponseWriter, r *http.Request) (service.StudentFields, error) {
	var req types.StudentRequest

	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes)).Decode(&req)
	if errors.Is(err, io.EOF) {
		return service.StudentFields{}, apperr.BadRequest(errors.New("request body is empty"))
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return service.StudentFields{}, apperr.BadRequest(
			fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
	}
	if err != nil {
		return service.StudentFields{}, apperr.BadRequest(err)
	}

	if err := validation.Struct(req); err != nil {
		return service.StudentFields{}, err
	}

	birthDate, err := types.ParseDate(req.BirthDate)
	if err != nil {
		return service.StudentFields{}, apperr.BadRequest(err)
	}

	return service.StudentFields{
		Name:      req.Name,
		Email:     req.Email,
		BirthDate: birthDate,
		Program:   req.Program,
	}, nil
}

// pathParam returns the decoded value of a route parameter. chi matches on
// URL.RawPath when the request carries non-default escapes such as %40, and
// then hands back still-escaped text; otherwise the value is already decoded.
func pathParam(r *http.Request, name string) (string, error) {
	value := chi.URLParam(r, name)
	if r.URL.RawPath == "" {
		return value, nil
	}
	value, err := url.PathUnescape(value)
	if err != nil {
		return "", apperr.BadRequest(fmt.Errorf("%s: %w", name, err))
	}
	return value, nil
}

func parseDateParam(value, name string) (types.Date, error) {
	if value == "" {
		return types.Date{}, apperr.BadRequest(fmt.Errorf("%s is required", name))
	}
	d, err := types.ParseDate(value)
	if err != nil {
		return types.Date{}, apperr.BadRequest(fmt.Errorf("%s: %w", name, err))
	}
	return d, nil
}
