package router

import (
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/room-reservation-api/internal/handler"
	"github.com/noah-isme/room-reservation-api/internal/middleware"
	"github.com/noah-isme/room-reservation-api/internal/models"
	"github.com/noah-isme/room-reservation-api/internal/policy"
	"github.com/noah-isme/room-reservation-api/internal/service"
	"github.com/noah-isme/room-reservation-api/pkg/config"
	"github.com/noah-isme/room-reservation-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/room-reservation-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/room-reservation-api/pkg/middleware/requestid"
)

// Handlers groups every HTTP handler mounted by the router.
type Handlers struct {
	Auth        *handler.AuthHandler
	User        *handler.UserHandler
	Room        *handler.RoomHandler
	Reservation *handler.ReservationHandler
	Export      *handler.ExportHandler
	Calendar    *handler.CalendarHandler
	Board       *handler.BoardHandler
	Metrics     *handler.MetricsHandler
}

// Options carries the cross-cutting collaborators of the route table.
type Options struct {
	Env            string
	APIPrefix      string
	AllowedOrigins []string
	// MediaDir, when set, is served under MediaPrefix for locally stored room images.
	MediaDir     string
	MediaPrefix  string
	Tokens       middleware.TokenValidator
	Metrics      *service.MetricsService
	Audit        middleware.AuditRecorder
	LoginLimiter *middleware.IPRateLimiter
	Logger       *zap.Logger
}

// New builds the gin engine with every route.
func New(h Handlers, opts Options) *gin.Engine {
	if opts.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(log, "/health", "/ready", "/metrics"))
	r.Use(corsmiddleware.New(opts.AllowedOrigins))
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics, "/metrics", "/health", "/ready"))
	}
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", h.Metrics.Health)
	r.GET("/ready", h.Metrics.Ready)
	r.GET("/metrics", h.Metrics.Prometheus)

	if opts.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}
	if opts.MediaDir != "" && strings.HasPrefix(opts.MediaPrefix, "/") {
		r.Static(opts.MediaPrefix, opts.MediaDir)
	}

	prefix := opts.APIPrefix
	if prefix == "" {
		prefix = "/api/v1"
	}
	api := r.Group(prefix)

	login := []gin.HandlerFunc{}
	if opts.LoginLimiter != nil {
		login = append(login, middleware.RateLimit(opts.LoginLimiter))
	}
	api.POST("/users/login", append(login, h.Auth.Login)...)
	api.POST("/users/refresh", append(login, h.Auth.Refresh)...)
	api.GET("/exports/:token", h.Export.Download)
	api.GET("/calendar/oauth/callback", middleware.Audit(opts.Audit, models.AuditActionCalendarLink, "calendar_account", log), h.Calendar.Callback)

	secured := api.Group("")
	secured.Use(middleware.JWT(opts.Tokens))
	admin := middleware.AdminOnly()

	secured.POST("/users/logout", h.Auth.Logout)
	secured.PATCH("/users/password", h.Auth.ChangePassword)
	secured.GET("/users/me", h.Auth.Me)
	secured.GET("/users/types", h.User.UserTypes)
	secured.GET("/users/departments", h.User.Departments)
	secured.POST("/users/bulk", middleware.RequireCapability(policy.ManageUsers), h.User.BulkCreate)
	secured.DELETE("/users/bulk", middleware.RequireCapability(policy.ManageUsers), h.User.BulkDelete)
	secured.GET("/users", h.User.List)
	secured.POST("/users", middleware.RequireCapability(policy.ManageUsers), h.User.Create)
	secured.GET("/users/:id", h.User.Get)
	secured.PATCH("/users/:id", h.User.Update)
	secured.DELETE("/users/:id", admin, h.User.Delete)

	secured.GET("/rooms", h.Room.List)
	secured.POST("/rooms", middleware.RequireCapability(policy.ManageRooms), h.Room.Create)
	secured.GET("/rooms/:id", h.Room.Get)
	secured.PUT("/rooms/:id", middleware.RequireCapability(policy.ManageRooms), h.Room.Update)
	secured.PATCH("/rooms/:id", middleware.RequireCapability(policy.ManageRooms), h.Room.Update)
	secured.DELETE("/rooms/:id", middleware.RequireCapability(policy.ManageRooms), h.Room.Delete)
	secured.POST("/rooms/:id/images", middleware.RequireCapability(policy.ManageRooms), h.Room.AddImage)
	secured.DELETE("/rooms/:id/images/:imageId", middleware.RequireCapability(policy.ManageRooms), h.Room.DeleteImage)
	secured.GET("/rooms/:id/availability", h.Room.Availability)

	secured.GET("/reservations", h.Reservation.List)
	secured.POST("/reservations", middleware.RequireCapability(policy.Create), h.Reservation.Create)
	secured.POST("/reservations/export", middleware.RequireCapability(policy.Export), h.Export.Export)
	secured.GET("/reservations/:id", h.Reservation.Get)
	secured.PATCH("/reservations/:id", h.Reservation.Update)
	secured.DELETE("/reservations/:id", h.Reservation.Cancel)
	secured.POST("/reservations/:id/authenticate-location", h.Reservation.CheckIn)
	secured.GET("/my-reservations", h.Reservation.Mine)
	secured.DELETE("/my-reservations/:id", h.Reservation.Cancel)

	secured.GET("/calendar/oauth/url", h.Calendar.AuthURL)
	secured.DELETE("/calendar/account", middleware.Audit(opts.Audit, models.AuditActionCalendarUnlink, "calendar_account", log), h.Calendar.Unlink)

	secured.GET("/notices", h.Board.ListNotices)
	secured.POST("/notices", middleware.RequireCapability(policy.ManageNotices), h.Board.CreateNotice)
	secured.GET("/notices/:id", h.Board.GetNotice)
	secured.PUT("/notices/:id", middleware.RequireCapability(policy.ManageNotices), h.Board.UpdateNotice)
	secured.DELETE("/notices/:id", middleware.RequireCapability(policy.ManageNotices), h.Board.DeleteNotice)

	secured.GET("/reports", h.Board.ListReports)
	secured.POST("/reports", h.Board.CreateReport)
	secured.GET("/reports/:id", h.Board.GetReport)
	secured.PUT("/reports/:id", h.Board.UpdateReport)
	secured.DELETE("/reports/:id", h.Board.DeleteReport)
	secured.GET("/reports/:id/comments", h.Board.ListComments)
	secured.POST("/reports/:id/comments", h.Board.AddComment)
	secured.PUT("/comments/:id", h.Board.UpdateComment)
	secured.DELETE("/comments/:id", h.Board.DeleteComment)

	return r
}
