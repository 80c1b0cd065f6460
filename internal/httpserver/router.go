package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"dbugate/internal/auth"
	"dbugate/internal/config"
	"dbugate/internal/gate"
	"dbugate/internal/httpserver/handlers"
	"dbugate/internal/repository"
)

// Deps bundles the constructed services and directories the routes need.
type Deps struct {
	Gate      *gate.Service
	QR        *gate.QRSignatures
	JWT       *auth.JWTManager
	Students  repository.StudentRepo
	Assets    repository.AssetRepo
	Operators repository.OperatorRepo
	Cfg       config.Config
	Lg        *zap.SugaredLogger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Recoverer, middleware.Logger)

	r.Post("/auth/login", handlers.Login(d.Operators, d.JWT, d.Lg))
	r.Post("/auth/register", handlers.RegisterOperator(d.Operators, d.JWT, d.Cfg, d.Lg))

	r.Group(func(protected chi.Router) {
		protected.Use(auth.JWTAuth(d.JWT))
		protected.Get("/me", handlers.Me(d.Operators))

		protected.Route("/gate/exit", func(g chi.Router) {
			g.Post("/scan-student", handlers.ScanStudent(d.Gate, d.Lg))
			g.Post("/scan-asset", handlers.ScanAsset(d.Gate, d.Lg))
			g.Post("/exit-without-asset", handlers.ExitWithoutAsset(d.Gate, d.Lg))
			g.Get("/logs", handlers.ExitLogs(d.Gate, d.Lg))
		})

		protected.Group(func(admin chi.Router) {
			admin.Use(auth.RequireAdmin)
			admin.Post("/admin/register-asset", handlers.RegisterAsset(d.Students, d.Assets, d.QR, d.Lg))
			admin.Get("/admin/assets", handlers.ListAssets(d.Assets))
			admin.Get("/admin/assets/{id}", handlers.GetAsset(d.Assets))
			admin.Put("/admin/assets/{id}", handlers.UpdateAsset(d.Students, d.Assets, d.QR, d.Lg))
			admin.Delete("/admin/assets/{id}", handlers.DeleteAsset(d.Assets, d.Lg))
			admin.Get("/admin/students", handlers.ListStudents(d.Students))
			admin.Post("/admin/students", handlers.CreateStudent(d.Students, d.Lg))
			admin.Patch("/admin/students/{id}", handlers.UpdateStudentStatus(d.Students, d.Lg))
			admin.Get("/admin/statistics", handlers.AdminStatistics(d.Gate, d.Lg))
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	return r
}
