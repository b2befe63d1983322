package api

import (
	"time"

	"github.com/labstack/echo-contrib/echoprometheus"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/Siva2k2k/ES-TM-sub002/internal/api/handler"
	"github.com/Siva2k2k/ES-TM-sub002/internal/api/middleware"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/domain"
	"github.com/Siva2k2k/ES-TM-sub002/internal/core/service"
	"github.com/Siva2k2k/ES-TM-sub002/internal/infrastructure/config"
	mongodb "github.com/Siva2k2k/ES-TM-sub002/internal/infrastructure/db/mongo"
	redisdb "github.com/Siva2k2k/ES-TM-sub002/internal/infrastructure/db/redis"
	"github.com/Siva2k2k/ES-TM-sub002/internal/infrastructure/notify"
)

// NewRouter wires the repositories, services, and handlers and returns the
// Echo instance with all routes registered.
func NewRouter(cfg *config.Config, db *mongo.Database, rdb *redis.Client, log zerolog.Logger) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.HTTPErrorHandler = NewHTTPErrorHandler(log)

	// --- Global middleware ---
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.RequestID())
	e.Use(echomiddleware.Logger())
	e.Use(echoprometheus.NewMiddleware("billing"))

	// --- Dependencies ---
	rateRepo := mongodb.NewRateRepository(db)
	invoiceRepo := mongodb.NewInvoiceRepository(db)
	directory := mongodb.NewDirectory(db)
	snapshots := mongodb.NewSnapshotGateway(db)
	rateCache := redisdb.NewRateCache(rdb, time.Duration(cfg.Billing.RateCacheTTLSecs)*time.Second)
	notifier := notify.NewLogNotifier(log)

	policy := service.NewApprovalThresholdPolicy(service.ApprovalThresholds{
		ManagerLimit:    decimal.NewFromFloat(cfg.Billing.ManagerLimit),
		ManagementLimit: decimal.NewFromFloat(cfg.Billing.ManagementLimit),
		BoardLimit:      decimal.NewFromFloat(cfg.Billing.BoardLimit),
	}, nil)

	rateService := service.NewRateService(rateRepo, directory, directory, rateCache, log)
	invoiceService := service.NewInvoiceService(invoiceRepo, snapshots, directory, notifier, policy, cfg.Billing.PaymentTermsDays, log)

	rateHandler := handler.NewRateHandler(rateService)
	invoiceHandler := handler.NewInvoiceHandler(invoiceService)

	// --- Health probes and metrics (no auth required) ---
	healthHandler := handler.NewHealthHandler()
	readinessHandler := handler.NewReadinessHandler(db, rdb)

	e.GET("/health", healthHandler.Liveness)
	e.GET("/health/ready", readinessHandler.Readiness)
	e.GET("/metrics", echoprometheus.NewHandler())

	// --- Billing API (JWT required) ---
	billing := e.Group("/v1/billing", middleware.Auth(cfg.JWTSecret))
	invoicers := middleware.RBAC(domain.RoleManager, domain.RoleManagement, domain.RoleSuperAdmin)
	admins := middleware.RBAC(domain.RoleManagement, domain.RoleSuperAdmin)

	// Rates: everyone authenticated may resolve; administration is limited.
	billing.POST("/rates/resolve", rateHandler.Resolve)
	billing.POST("/rates/preview", rateHandler.Preview)
	billing.GET("/rates", rateHandler.List)
	billing.POST("/rates", rateHandler.Create, admins)
	billing.PUT("/rates/:id", rateHandler.Update, admins)
	billing.DELETE("/rates/:id", rateHandler.Delete, admins)

	// Invoices: creation and workflow require invoicing authority.
	billing.POST("/invoices/generate", invoiceHandler.GenerateDraft, invoicers)
	billing.POST("/invoices", invoiceHandler.Create, invoicers)
	billing.GET("/invoices", invoiceHandler.List)
	billing.GET("/invoices/dashboard", invoiceHandler.Dashboard)
	billing.POST("/invoices/flag-overdue", invoiceHandler.FlagOverdue, admins)
	billing.GET("/invoices/:id", invoiceHandler.Get)
	billing.GET("/invoices/:id/line-items", invoiceHandler.LineItems)
	billing.POST("/invoices/:id/submit", invoiceHandler.Submit, invoicers)
	billing.POST("/invoices/:id/approval", invoiceHandler.Approval, invoicers)
	billing.POST("/invoices/:id/send", invoiceHandler.Send, invoicers)
	billing.POST("/invoices/:id/payments", invoiceHandler.Payment, invoicers)
	billing.POST("/invoices/:id/cancel", invoiceHandler.Cancel, invoicers)

	return e
}
