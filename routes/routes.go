package routes

import (
	"nexus_go/controllers"
	"nexus_go/middleware"
	"nexus_go/services"

	"github.com/gofiber/fiber/v2"
)

// Dependencies are the wired services the HTTP layer needs.
type Dependencies struct {
	Auth     *middleware.Auth
	Activity *middleware.ActivityLogger
	Clock    services.Clock

	Users        *services.UserService
	Ledger       *services.RequirementLedger
	Requirements *services.RequirementService
	Payments     *services.PaymentService
	Events       *services.EventService
	Capacity     *services.CapacityManager
	Profiles     *services.ProfileAggregator
	Support      *services.SupportDesk
	Dashboard    *services.DashboardService
	ActivityLogs *services.ActivityLogService
	Health       *services.HealthService

	AllowedExtensions []string
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, d Dependencies) {
	// Initialize controllers
	authController := controllers.NewAuthController(d.Users, d.Auth, d.Activity)
	userController := controllers.NewUserController(d.Users)
	requirementController := controllers.NewRequirementController(d.Requirements, d.Ledger)
	paymentController := controllers.NewPaymentController(d.Payments, d.Clock)
	eventController := controllers.NewEventController(d.Events, d.Capacity)
	profileController := controllers.NewProfileController(d.Profiles)
	ticketController := controllers.NewSupportTicketController(d.Support, d.AllowedExtensions)
	memberController := controllers.NewMemberController(d.Profiles, d.Payments, d.Events, d.Dashboard)
	dashboardController := controllers.NewDashboardController(d.Dashboard)
	logController := controllers.NewLogController(d.ActivityLogs)
	healthController := controllers.NewHealthController(d.Health)

	jwt := d.Auth.JWTMiddleware()
	memberAccess := middleware.RequireMemberAccess()
	officerAccess := middleware.RequireOfficerOrAdmin()
	adminAccess := middleware.RequireAdminAccess()

	app.Get("/health", healthController.GetHealthStatus)

	// API group
	api := app.Group("/api")
	api.Get("/hello", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"message": "Hello from PSITS-NEXUS API"})
	})

	// Authentication routes
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Post("/logout", jwt, authController.Logout)
	auth.Get("/user", jwt, authController.Me)
	auth.Post("/refresh", jwt, authController.Refresh)

	// Public contact form; a token is used when present
	api.Post("/contact-support", d.Auth.OptionalJWT(), ticketController.CreateTicket)

	// Member API (mobile client)
	member := api.Group("/member", jwt, memberAccess)
	member.Get("/profile", memberController.Profile)
	member.Get("/dashboard", memberController.Dashboard)
	member.Get("/payments", memberController.Payments)
	member.Get("/requirements", memberController.Requirements)
	member.Get("/events", memberController.Events)

	// Events: members browse and register, officers manage
	events := api.Group("/events", jwt, memberAccess)
	events.Get("/", eventController.GetEvents)
	events.Get("/stats", officerAccess, eventController.GetStats)
	events.Post("/", officerAccess, eventController.CreateEvent)
	events.Get("/:id", eventController.GetEvent)
	events.Put("/:id", officerAccess, eventController.UpdateEvent)
	events.Delete("/:id", officerAccess, eventController.DeleteEvent)
	events.Post("/:id/register", eventController.Register)
	events.Delete("/:id/register", eventController.CancelRegistration)
	events.Get("/:id/attendees", officerAccess, eventController.GetAttendees)
	events.Get("/:id/attendees/export", officerAccess, eventController.ExportRoster)
	events.Post("/:id/register-attendees", officerAccess, eventController.RegisterAttendees)
	events.Put("/:id/attendees/:attendeeId", officerAccess, eventController.UpdateAttendanceStatus)
	events.Delete("/:id/attendees/:attendeeId", officerAccess, eventController.RemoveAttendee)

	// Support tickets owned by the caller
	tickets := api.Group("/support-tickets", jwt, memberAccess)
	tickets.Post("/", ticketController.CreateTicket)
	tickets.Get("/", ticketController.GetMyTickets)
	tickets.Get("/:id", ticketController.GetTicket)

	// Support desk
	desk := api.Group("/support-desk", jwt, officerAccess)
	desk.Get("/tickets", ticketController.GetTickets)
	desk.Put("/tickets/:id/status", ticketController.UpdateTicketStatus)
	desk.Delete("/tickets/:id", ticketController.DeleteTicket)
	desk.Post("/tickets/batch-delete", ticketController.BatchDeleteTickets)

	// Requirements
	requirements := api.Group("/requirements", jwt, officerAccess)
	requirements.Get("/", requirementController.GetRequirements)
	requirements.Post("/", requirementController.CreateRequirement)
	requirements.Post("/recalculate-counts", adminAccess, requirementController.RecalculateCounts)
	requirements.Get("/:id", requirementController.GetRequirement)
	requirements.Put("/:id", requirementController.UpdateRequirement)
	requirements.Delete("/:id", requirementController.DeleteRequirement)

	// Payment records
	payments := api.Group("/payments", jwt, officerAccess)
	payments.Get("/", paymentController.GetPayments)
	payments.Get("/stats", paymentController.GetStats)
	payments.Get("/export", paymentController.ExportPayments)
	payments.Post("/", paymentController.CreatePayment)
	payments.Post("/batch-delete", paymentController.BatchDeletePayments)
	payments.Get("/:id", paymentController.GetPayment)
	payments.Put("/:id", paymentController.UpdatePayment)
	payments.Delete("/:id", paymentController.DeletePayment)

	// Payment profiles
	profiles := api.Group("/user-profiles", jwt, officerAccess)
	profiles.Get("/", profileController.GetProfiles)
	profiles.Get("/:key", profileController.GetProfile)

	api.Get("/dashboard/stats", jwt, officerAccess, dashboardController.GetStats)

	// Administration
	users := api.Group("/users", jwt, adminAccess)
	users.Get("/", userController.GetUsers)
	users.Post("/", userController.CreateUser)
	users.Get("/:id", userController.GetUser)
	users.Put("/:id", userController.UpdateUser)
	users.Delete("/:id", userController.DeleteUser)
	api.Get("/user-management-data", jwt, officerAccess, userController.GetRegistrationOptions)

	logs := api.Group("/logs", jwt, adminAccess)
	logs.Get("/", logController.GetLogs)
	logs.Post("/flush", logController.FlushLogs)
	logs.Post("/archive", logController.ArchiveLogs)
}

// SetupStaticRoutes serves locally stored uploads.
func SetupStaticRoutes(app *fiber.App, uploadDir string) {
	app.Static("/uploads", uploadDir)
}
