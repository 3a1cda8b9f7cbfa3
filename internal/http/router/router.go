// Package router wires the student handlers and middleware onto a chi mux.
//
// Route table:
//
//	POST   /api/students                              create a student
//	GET    /api/students                              list all students
//	GET    /api/students/health                       liveness
//	GET    /api/students/ordered-by-name              list sorted by name
//	GET    /api/students/search?name=                 search by name fragment
//	GET    /api/students/birthdate-range?startDate=&endDate=
//	GET    /api/students/email/{email}                get one by email
//	GET    /api/students/program/{program}            list by program
//	GET    /api/students/count/program/{program}      count by program
//	GET    /api/students/{id}                         get one by id
//	PUT    /api/students/{id}                         replace a student
//	DELETE /api/students/{id}                         delete a student
//	GET    /readyz                                    readiness, pings the store
//	GET    /metrics                                   Prometheus exposition
//
// chi matches static segments before parameters, so /health never reaches
// the {id} route.
package router

import (
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/aanand-mishra/student-records-api/internal/apperr"
	"github.com/aanand-mishra/student-records-api/internal/http/handlers/student"
	"github.com/aanand-mishra/student-records-api/internal/http/middleware"
	"github.com/aanand-mishra/student-records-api/internal/service"
	"github.com/aanand-mishra/student-records-api/internal/utils/response"
)

// Deps are the collaborators the router needs.
type Deps struct {
	Service *service.StudentService
	Logger  *zap.Logger

	// Registry receives the HTTP collectors and is served on /metrics.
	Registry *prometheus.Registry

	AllowedOrigins []string

	// RateLimiter is optional; nil disables rate limiting.
	RateLimiter *middleware.RateLimiter
}

func New(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestLogger(d.Logger))
	r.Use(middleware.NewMetrics(d.Registry).Handler)
	r.Use(middleware.Recoverer(d.Logger))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apperr.NotFound("No route for %s %s", r.Method, r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, apperr.MethodNotAllowed(r.Method, r.URL.Path))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(d.Registry, promhttp.HandlerOpts{}))
	r.Get("/readyz", student.Ready(d.Service))

	r.Route("/api", func(r chi.Router) {
		r.Use(newCORS(d.AllowedOrigins).Handler)
		if d.RateLimiter != nil {
			r.Use(d.RateLimiter.Handler)
		}

		r.Route("/students", func(r chi.Router) {
			svc := d.Service

			r.Post("/", student.New(svc))
			r.Get("/", student.GetList(svc))

			r.Get("/health", student.Health())
			r.Get("/ordered-by-name", student.GetOrderedByName(svc))
			r.Get("/search", student.Search(svc))
			r.Get("/birthdate-range", student.GetByBirthDateRange(svc))
			r.Get("/email/{email}", student.GetByEmail(svc))
			r.Get("/program/{program}", student.GetByProgram(svc))
			r.Get("/count/program/{program}", student.CountByProgram(svc))

			r.Get("/{id}", student.GetByID(svc))
			r.Put("/{id}", student.Update(svc))
			r.Delete("/{id}", student.Delete(svc))
		})
	})

	return r
}

// newCORS allows the configured origins with credentials. A "*" entry
// accepts any origin; the origin is still echoed back because browsers
// refuse a literal "*" on credentialed requests.
func newCORS(origins []string) *cors.Cors {
	opts := cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{
			http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions,
		},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
		MaxAge:           3600,
	}
	if slices.Contains(origins, "*") {
		opts.AllowedOrigins = nil
		opts.AllowOriginFunc = func(string) bool { return true }
	}
	return cors.New(opts)
}
