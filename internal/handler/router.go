package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	_ "github.com/journeyman/marketplace-api/api/swagger"
	"github.com/journeyman/marketplace-api/internal/middleware"
	"github.com/journeyman/marketplace-api/internal/service"
	"github.com/journeyman/marketplace-api/pkg/config"
	"github.com/journeyman/marketplace-api/pkg/logger"
	corsmiddleware "github.com/journeyman/marketplace-api/pkg/middleware/cors"
	reqidmiddleware "github.com/journeyman/marketplace-api/pkg/middleware/requestid"
)

// RouterDeps bundles everything route registration needs.
type RouterDeps struct {
	Auth        *AuthHandler
	Users       *UserHandler
	Tasks       *TaskHandler
	Submissions *SubmissionHandler
	Withdrawals *WithdrawalHandler
	Payments    *PaymentHandler
	Statements  *StatementHandler
	Metrics     *MetricsHandler

	AuthService    *service.AuthService
	MetricsService *service.MetricsService
}

// NewRouter builds the gin engine with middleware and all API routes.
func NewRouter(cfg *config.Config, logr *zap.Logger, deps RouterDeps) *gin.Engine {
	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins, cfg.CORS.AllowedHeaders))
	r.Use(middleware.Metrics(deps.MetricsService))

	r.GET("/health", deps.Metrics.Health)
	r.GET("/ready", deps.Metrics.Ready)
	r.GET("/metrics", deps.Metrics.Prometheus)

	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	r.POST("/auth/login", deps.Auth.Login)

	// guard enforces a token with one of the given roles only when auth is
	// switched on; the surface stays open otherwise.
	guard := func(roles ...string) []gin.HandlerFunc {
		if !cfg.Auth.Enabled {
			return nil
		}
		return []gin.HandlerFunc{middleware.JWT(deps.AuthService), middleware.RequireRoles(roles...)}
	}

	users := r.Group("/users")
	{
		users.POST("", deps.Users.Create)
		users.GET("", deps.Users.List)
		users.GET("/:email", deps.Users.Get)
		users.PUT("/:email", append(guard("admin", "SELF"), deps.Users.Update)...)
		users.DELETE("/:email", append(guard("admin"), deps.Users.Delete)...)
	}

	tasks := r.Group("/tasks")
	{
		tasks.POST("", append(guard("admin", "client"), deps.Tasks.Create)...)
		tasks.GET("", deps.Tasks.List)
		tasks.GET("/:id", deps.Tasks.Get)
		tasks.GET("/user/:email", deps.Tasks.ListByClient)
		tasks.PUT("/:id", append(guard("admin", "client"), deps.Tasks.Update)...)
		tasks.DELETE("/:id", append(guard("admin", "client"), deps.Tasks.Delete)...)
	}

	submissions := r.Group("/submissions")
	{
		submissions.POST("", append(guard("admin", "worker"), deps.Submissions.Create)...)
		submissions.GET("", deps.Submissions.List)
		submissions.GET("/:id", deps.Submissions.Get)
		submissions.GET("/user/:email", deps.Submissions.ListByWorker)
		submissions.GET("/client/:email", deps.Submissions.ListByClient)
		submissions.PUT("/:id", append(guard("admin", "client"), deps.Submissions.SetStatus)...)
		submissions.DELETE("/:id", append(guard("admin"), deps.Submissions.Delete)...)
	}

	withdrawals := r.Group("/withdrawals")
	{
		withdrawals.POST("", append(guard("admin", "worker"), deps.Withdrawals.Create)...)
		withdrawals.GET("", append(guard("admin"), deps.Withdrawals.List)...)
		withdrawals.GET("/:id", deps.Withdrawals.Get)
		withdrawals.GET("/user/:email", deps.Withdrawals.ListByWorker)
		withdrawals.PUT("/:id", append(guard("admin"), deps.Withdrawals.SetStatus)...)
		withdrawals.DELETE("/:id", append(guard("admin"), deps.Withdrawals.Delete)...)
	}

	payments := r.Group("/payments")
	{
		payments.POST("", append(guard("admin", "client"), deps.Payments.Create)...)
		payments.GET("/user/:email", deps.Payments.ListByUser)
	}

	if deps.Statements != nil {
		statements := r.Group("/statements")
		if cfg.Auth.Enabled {
			// Claims are optional here; they only default user_email on create.
			statements.Use(middleware.OptionalJWT(deps.AuthService))
		}
		{
			statements.POST("", deps.Statements.Create)
			statements.GET("/:id", deps.Statements.Status)
			statements.GET("/download/:token", deps.Statements.Download)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": gin.H{"code": "NOT_FOUND", "message": "route not found", "status": http.StatusNotFound}})
	})

	return r
}
