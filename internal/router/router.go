package router

import (
	"database/sql"
	"time"

	"marketplace_ops_backend/internal/handlers"
	"marketplace_ops_backend/internal/locks"
	"marketplace_ops_backend/internal/middleware"
	"marketplace_ops_backend/internal/repositories"
	"marketplace_ops_backend/internal/services"

	"github.com/gin-gonic/gin"
)

// Dependencies are the process-level resources the routes are built on.
type Dependencies struct {
	DB             *sql.DB
	Locker         locks.Locker
	PickSessionTTL time.Duration
}

// Background exposes the services the scheduled jobs run against.
type Background struct {
	Picking   services.PickingService
	Integrity services.IntegrityService
}

// Setup initializes the routing for the application.
func Setup(engine *gin.Engine, deps Dependencies) *Background {
	db := deps.DB
	handlers.RegisterValidators()

	// Initialize Repositories
	authRepo := repositories.NewAuthRepository(db)
	orderRepo := repositories.NewOrderRepository(db)
	waveRepo := repositories.NewWaveRepository(db)
	ledgerRepo := repositories.NewStockLedgerRepository(db)
	auditRepo := repositories.NewAuditRepository(db)
	integrityRepo := repositories.NewIntegrityRepository(db)

	// Initialize Services
	authService := services.NewAuthService(authRepo)
	orderService := services.NewOrderService(orderRepo, waveRepo, ledgerRepo, db)
	waveService := services.NewWaveService(waveRepo, orderRepo, ledgerRepo, auditRepo, deps.Locker, db)
	stockService := services.NewStockService(ledgerRepo, auditRepo, db)
	pickingService := services.NewPickingService(waveRepo, ledgerRepo, auditRepo, waveService, deps.Locker,
		services.NewPickSessionStore(), db, deps.PickSessionTTL)
	packingService := services.NewPackingService(ledgerRepo, waveRepo, auditRepo, deps.Locker, db)
	auditService := services.NewAuditService(auditRepo)
	integrityService := services.NewIntegrityService(integrityRepo)

	// Initialize Handlers
	authHandler := handlers.NewAuthHandler(authService)
	orderHandler := handlers.NewOrderHandler(orderService)
	waveHandler := handlers.NewWaveHandler(waveService)
	stockHandler := handlers.NewStockHandler(stockService)
	pickingHandler := handlers.NewPickingHandler(pickingService)
	packingHandler := handlers.NewPackingHandler(packingService)
	auditHandler := handlers.NewAuditHandler(auditService)

	api := engine.Group("/api")
	SetupPublicAuthRoutes(api.Group("/auth"), authHandler)

	authenticated := api.Group("")
	authenticated.Use(middleware.AuthMiddleware())
	{
		SetupAuthenticatedAuthRoutes(authenticated.Group("/auth"), authHandler)
		SetupOrderRoutes(authenticated, orderHandler)
		SetupWaveRoutes(authenticated, waveHandler)
		SetupStockRoutes(authenticated, stockHandler)
		SetupPickingRoutes(authenticated, pickingHandler)
		SetupPackingRoutes(authenticated, packingHandler)
		SetupAuditRoutes(authenticated, auditHandler)
	}

	return &Background{Picking: pickingService, Integrity: integrityService}
}
