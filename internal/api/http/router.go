package http

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/repairshop-service/internal/api/http/handlers"
	"github.com/spec-kit/repairshop-service/internal/auth"
	"github.com/spec-kit/repairshop-service/internal/domain"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Auth           *handlers.AuthHandler
	Tasks          *handlers.TasksHandler
	Finance        *handlers.FinanceHandler
	Reports        *handlers.ReportsHandler
	AuthMiddleware *auth.AuthMiddleware
}

// RegisterRoutes wires HTTP routes. Coarse role gates live here; the finer
// rules (transition table, field whitelists) live in the services.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health/live", cfg.Health.Live)
	app.Get("/health/ready", cfg.Health.Ready)

	app.Post("/auth/login", cfg.Auth.Login)

	api := app.Group("/api/v1", cfg.AuthMiddleware.Handle)

	users := api.Group("/users")
	users.Post("", auth.RequireRole(domain.RoleManager), cfg.Auth.CreateUser)
	users.Get("/technicians", auth.RequireRole(), cfg.Auth.ListTechnicians)

	tasks := api.Group("/tasks")
	tasks.Post("", auth.RequireRole(domain.RoleFrontDesk, domain.RoleManager), cfg.Tasks.Create)
	tasks.Get("", auth.RequireRole(), cfg.Tasks.List)
	tasks.Get("/debts", auth.RequireRole(domain.RoleFrontDesk, domain.RoleAccountant, domain.RoleManager), cfg.Tasks.ListDebts)
	tasks.Get("/:id", auth.RequireRole(), cfg.Tasks.Get)
	tasks.Patch("/:id", auth.RequireRole(), cfg.Tasks.Update)
	tasks.Delete("/:id", auth.RequireRole(domain.RoleManager), cfg.Tasks.Delete)
	tasks.Post("/:id/status", auth.RequireRole(), cfg.Tasks.ChangeStatus)
	tasks.Get("/:id/transitions", auth.RequireRole(), cfg.Tasks.AllowedTransitions)
	tasks.Post("/:id/workshop", auth.RequireRole(domain.RoleTechnician, domain.RoleManager), cfg.Tasks.SendToWorkshop)
	tasks.Post("/:id/workshop/return", auth.RequireRole(), cfg.Tasks.ReturnFromWorkshop)
	tasks.Post("/:id/activities", auth.RequireRole(), cfg.Tasks.AddActivity)
	tasks.Get("/:id/activities", auth.RequireRole(), cfg.Tasks.ListActivities)
	tasks.Get("/:id/financials", auth.RequireRole(), cfg.Finance.TaskFinancials)
	tasks.Post("/:id/adjustments", auth.RequireRole(), cfg.Finance.AddAdjustment)

	payments := api.Group("/payments")
	payments.Post("", auth.RequireRole(domain.RoleFrontDesk, domain.RoleAccountant, domain.RoleManager), cfg.Finance.AddPayment)
	payments.Get("", auth.RequireRole(domain.RoleAccountant, domain.RoleManager), cfg.Finance.ListPayments)
	payments.Delete("/:id", auth.RequireRole(domain.RoleAccountant, domain.RoleManager), cfg.Finance.DeletePayment)

	adjustments := api.Group("/adjustments")
	adjustments.Post("/:id/resolve", auth.RequireRole(domain.RoleManager), cfg.Finance.ResolveAdjustment)
	adjustments.Delete("/:id", auth.RequireRole(domain.RoleManager), cfg.Finance.DeleteAdjustment)

	reports := api.Group("/reports", auth.RequireRole(domain.RoleManager, domain.RoleAccountant))
	reports.Get("/turnaround", cfg.Reports.Turnaround)
	reports.Get("/workload", cfg.Reports.Workload)
	reports.Get("/performance", cfg.Reports.Performance)
}
