package server

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/noah-isme/cte-skillshub-api/api/swagger"
	"github.com/noah-isme/cte-skillshub-api/internal/handler"
	"github.com/noah-isme/cte-skillshub-api/internal/middleware"
	"github.com/noah-isme/cte-skillshub-api/internal/models"
	"github.com/noah-isme/cte-skillshub-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/cte-skillshub-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/cte-skillshub-api/pkg/middleware/requestid"
)

// Options shape the router.
type Options struct {
	APIPrefix      string
	AllowedOrigins []string
	EnableDocs     bool
}

// Handlers groups the HTTP handlers mounted by NewRouter.
type Handlers struct {
	Auth      *handler.AuthHandler
	Reminders *handler.ReminderHandler
	Admin     *handler.ReminderAdminHandler
	Metrics   *handler.MetricsHandler
}

// NewRouter builds the gin engine with the middleware chain and every route.
func NewRouter(opts Options, log *zap.Logger, tokens middleware.TokenValidator, observer middleware.RequestObserver, h Handlers) *gin.Engine {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.APIPrefix == "" {
		opts.APIPrefix = "/api/v1"
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	r.Use(middleware.Metrics(observer))

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)
	if opts.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(opts.APIPrefix)
	api.POST("/auth/login", h.Auth.Login)

	secured := api.Group("")
	secured.Use(middleware.JWT(tokens))
	secured.GET("/auth/me", h.Auth.Me)

	reminders := secured.Group("/reminders")
	reminders.GET("/eligible", h.Reminders.Eligible)
	reminders.POST("/:id/view", h.Reminders.View)
	reminders.POST("/:id/dismiss", h.Reminders.Dismiss)
	reminders.GET("/session", h.Reminders.CurrentSession)
	reminders.POST("/session", h.Reminders.OpenSession)
	reminders.DELETE("/session", h.Reminders.CloseSession)
	reminders.POST("/session/advance", h.Reminders.AdvanceSession)
	reminders.POST("/session/dismiss", h.Reminders.DismissInSession)

	admin := secured.Group("/admin/reminders")
	admin.Use(middleware.RequireRoles(models.RoleAdmin, models.RoleStaff))
	admin.GET("", h.Admin.List)
	admin.POST("", h.Admin.Create)
	admin.GET("/export", middleware.RequireRoles(models.RoleAdmin), h.Admin.Export)
	admin.GET("/:id", h.Admin.Get)
	admin.PATCH("/:id", h.Admin.Update)
	admin.DELETE("/:id", h.Admin.Delete)
	admin.GET("/:id/stats", h.Admin.Stats)

	return r
}
