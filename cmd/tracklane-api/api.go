// Package main provides the Tracklane API server.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	"go.opentelemetry.io/otel/trace"

	"github.com/tracklane/tracklane/pkg/engine"
	"github.com/tracklane/tracklane/pkg/eventbus"
	"github.com/tracklane/tracklane/pkg/persistence"
	"github.com/tracklane/tracklane/pkg/schemes"
	"github.com/tracklane/tracklane/pkg/web"
	"github.com/tracklane/tracklane/pkg/workflow"
)

type API struct {
	logger      *slog.Logger
	persistence persistence.Persistence
	eventBus    eventbus.EventBus
	validate    *validator.Validate
	tracer      trace.Tracer
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
) *API {
	return &API{
		logger:      logger,
		persistence: persistence,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

// WithTracer enables tracing of transition execution.
func (a *API) WithTracer(tracer trace.Tracer) *API {
	a.tracer = tracer

	return a
}

func (a *API) App() *fiber.App {
	workflowService := workflow.NewService(a.persistence, a.logger)
	statusService := workflow.NewStatusService(a.persistence, a.logger)
	graphService := workflow.NewGraphService(a.persistence, a.logger)
	draftService := workflow.NewDraftService(a.persistence, a.logger)
	portabilityService := workflow.NewPortabilityService(a.persistence, a.logger)
	schemeService := schemes.NewService(a.persistence, a.logger)
	resolver := schemes.NewResolver(a.persistence, a.logger)

	postFunctions := engine.NewPostFunctionExecutor(a.persistence, a.eventBus, a.logger)
	pipeline := engine.NewPipeline(a.persistence, resolver, postFunctions, a.eventBus, a.logger)

	if a.tracer != nil {
		pipeline = pipeline.WithTracer(a.tracer)
	}

	handlers := web.NewAPIHandlers(
		workflowService,
		statusService,
		graphService,
		draftService,
		portabilityService,
		schemeService,
		pipeline,
		a.persistence,
		a.validate,
		a.eventBus,
		a.logger,
	)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Tracklane API")
	})

	s := app.Group("/statuses")
	s.Get("/", handlers.GetStatuses)
	s.Post("/", handlers.CreateStatus)
	s.Get("/:id", handlers.GetStatus)
	s.Patch("/:id", handlers.UpdateStatus)
	s.Delete("/:id", handlers.DeleteStatus)

	w := app.Group("/workflows")
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Post("/import", handlers.ImportWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.DeleteWorkflow)
	w.Get("/:id/export", handlers.ExportWorkflow)

	w.Post("/:id/steps", handlers.AddStep)
	w.Patch("/:id/steps/:stepId/position", handlers.MoveStep)
	w.Post("/:id/steps/:stepId/initial", handlers.SetInitialStep)
	w.Delete("/:id/steps/:stepId", handlers.RemoveStep)

	w.Post("/:id/transitions", handlers.AddTransition)
	w.Put("/:id/transitions/:transitionId/rules", handlers.SetTransitionRules)
	w.Delete("/:id/transitions/:transitionId", handlers.RemoveTransition)

	w.Post("/:id/draft", handlers.CreateDraft)
	w.Get("/:id/draft", handlers.GetDraft)
	w.Post("/:id/draft/publish", handlers.PublishDraft)
	w.Delete("/:id/draft", handlers.DiscardDraft)
	w.Get("/:id/draft/compare", handlers.CompareDraft)

	sc := app.Group("/schemes")
	sc.Get("/", handlers.GetSchemes)
	sc.Post("/", handlers.CreateScheme)
	sc.Get("/:id", handlers.GetScheme)
	sc.Delete("/:id", handlers.DeleteScheme)
	sc.Put("/:id/mappings", handlers.SetSchemeMapping)
	sc.Delete("/:id/mappings", handlers.RemoveSchemeMapping)

	app.Post("/projects/:id/scheme", handlers.AssignProjectScheme)

	i := app.Group("/issues")
	i.Get("/:id", handlers.GetIssue)
	i.Get("/:id/history", handlers.GetIssueHistory)
	i.Get("/:id/transitions", handlers.GetAvailableTransitions)
	i.Post("/:id/transitions", handlers.ExecuteTransition)

	app.Get("/health", handlers.HealthCheck)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	a.logger.Info("Starting Tracklane API", "port", port)

	return app.Listen(":" + strconv.Itoa(port))
}
