package router

import (
	"marketplace_ops_backend/internal/handlers"
	"marketplace_ops_backend/internal/middleware"
	"marketplace_ops_backend/internal/models"

	"github.com/gin-gonic/gin"
)

var (
	supervisorRoles = []string{models.RoleSuperAdmin, models.RoleManager, models.RoleSupervisor}
	pickerRoles     = []string{models.RoleSuperAdmin, models.RoleManager, models.RoleSupervisor, models.RolePicker}
	packerRoles     = []string{models.RoleSuperAdmin, models.RoleManager, models.RoleSupervisor, models.RolePacker}
	operatorRoles   = []string{models.RoleSuperAdmin, models.RoleManager, models.RoleSupervisor, models.RolePicker, models.RolePacker}
)

func SetupPublicAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.POST("/login", authHandler.LoginUser)
}

func SetupAuthenticatedAuthRoutes(group *gin.RouterGroup, authHandler *handlers.AuthHandler) {
	group.GET("/me", authHandler.GetCurrentUser)
}

// SetupOrderRoutes sets up the order queue routes.
func SetupOrderRoutes(authenticatedGroup *gin.RouterGroup, orderHandler *handlers.OrderHandler) {
	orderRoutes := authenticatedGroup.Group("/manual-orders")
	orderRoutes.Use(middleware.RoleAuthMiddleware(supervisorRoles...))
	{
		orderRoutes.POST("", orderHandler.CreateOrder)
		orderRoutes.GET("", orderHandler.GetOrders)
		orderRoutes.GET("/:id", orderHandler.GetOrderByID)
		orderRoutes.DELETE("/:id", orderHandler.DeleteOrder)
	}

	stateRoutes := authenticatedGroup.Group("/orders")
	stateRoutes.Use(middleware.RoleAuthMiddleware(operatorRoles...))
	{
		stateRoutes.GET("/:reference/state", orderHandler.GetOrderState)
	}
}

// SetupWaveRoutes sets up the wave routes. PATCH admits pickers; the service checks each action.
func SetupWaveRoutes(authenticatedGroup *gin.RouterGroup, waveHandler *handlers.WaveHandler) {
	waveRoutes := authenticatedGroup.Group("/waves")
	{
		waveRoutes.GET("", middleware.RoleAuthMiddleware(operatorRoles...), waveHandler.GetWaves)
		waveRoutes.GET("/:id", middleware.RoleAuthMiddleware(operatorRoles...), waveHandler.GetWave)
		waveRoutes.POST("", middleware.RoleAuthMiddleware(supervisorRoles...), waveHandler.CreateWave)
		waveRoutes.DELETE("/:id", middleware.RoleAuthMiddleware(supervisorRoles...), waveHandler.CancelWave)
		waveRoutes.PATCH("/:id", middleware.RoleAuthMiddleware(pickerRoles...), waveHandler.UpdateWave)
	}
}

// SetupStockRoutes sets up the stock ledger routes.
func SetupStockRoutes(authenticatedGroup *gin.RouterGroup, stockHandler *handlers.StockHandler) {
	docRoutes := authenticatedGroup.Group("/product-out-documents")
	{
		docRoutes.GET("", middleware.RoleAuthMiddleware(operatorRoles...), stockHandler.GetDocuments)
		docRoutes.POST("", middleware.RoleAuthMiddleware(supervisorRoles...), stockHandler.CreateDocument)
		docRoutes.PATCH("/shipping", middleware.RoleAuthMiddleware(packerRoles...), stockHandler.UpdateShippingStatus)
	}

	masterRoutes := authenticatedGroup.Group("/master-product")
	masterRoutes.Use(middleware.RoleAuthMiddleware(operatorRoles...))
	{
		masterRoutes.GET("/batch-products", stockHandler.GetBatchProducts)
	}
}

// SetupPickingRoutes sets up the picking terminal routes.
func SetupPickingRoutes(authenticatedGroup *gin.RouterGroup, pickingHandler *handlers.PickingHandler) {
	pickingRoutes := authenticatedGroup.Group("/picking/sessions")
	pickingRoutes.Use(middleware.RoleAuthMiddleware(pickerRoles...))
	{
		pickingRoutes.POST("", pickingHandler.StartSession)
		pickingRoutes.GET("/:id", pickingHandler.GetSession)
		pickingRoutes.POST("/:id/location", pickingHandler.ScanLocation)
		pickingRoutes.POST("/:id/product", pickingHandler.ScanProduct)
		pickingRoutes.POST("/:id/quantity", pickingHandler.EnterQuantity)
	}
}

// SetupPackingRoutes sets up the packing terminal routes.
func SetupPackingRoutes(authenticatedGroup *gin.RouterGroup, packingHandler *handlers.PackingHandler) {
	packingRoutes := authenticatedGroup.Group("/packing")
	packingRoutes.Use(middleware.RoleAuthMiddleware(packerRoles...))
	{
		packingRoutes.GET("/:reference", packingHandler.Lookup)
		packingRoutes.POST("/:reference/confirm", packingHandler.Confirm)
	}
}

// SetupAuditRoutes sets up the audit trail routes.
func SetupAuditRoutes(authenticatedGroup *gin.RouterGroup, auditHandler *handlers.AuditHandler) {
	auditRoutes := authenticatedGroup.Group("/audit-logs")
	auditRoutes.Use(middleware.RoleAuthMiddleware(supervisorRoles...))
	{
		auditRoutes.GET("", auditHandler.GetAuditLogs)
	}
}
