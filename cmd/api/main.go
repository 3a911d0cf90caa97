package main

import (
	"context"

	_ "tirestock/api/swagger" // swagger docs
	"tirestock/internal/access"
	"tirestock/internal/config"
	"tirestock/internal/database"
	"tirestock/internal/handler"
	"tirestock/internal/logger"
	"tirestock/internal/middleware"
	"tirestock/internal/repository"
	"tirestock/internal/service"
	"tirestock/internal/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

// @title           Tire Stock & Transfer API
// @version         1.0
// @description     Multi-branch tire inventory with inter-branch transfer orders, branch-scoped roles and an audit trail.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.LogLevel)
	defer func() { _ = log.Sync() }()

	gin.SetMode(cfg.GinMode)

	db, err := database.NewConnection(cfg.DSN())
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("database migration failed: %v", err)
	}
	log.Info("connected to postgres")

	// WebSocket hub for dashboard fan-out
	wsHub := websocket.NewHub(log)
	go wsHub.Run()

	// Repository -> Service -> Handler wiring
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	branchRepo := repository.NewBranchRepository(db)
	roleRepo := repository.NewRoleRepository(db)
	branchRoleRepo := repository.NewBranchRoleRepository(db)
	productRepo := repository.NewProductRepository(db)
	stockRepo := repository.NewStockRepository(db)
	transferRepo := repository.NewTransferRepository(db)
	auditRepo := repository.NewAuditRepository(db)

	evaluator := access.NewEvaluator(branchRoleRepo)

	userService := service.NewUserService(userRepo, middleware.GetJWTSecret())
	branchService := service.NewBranchService(branchRepo)
	roleService := service.NewRoleService(roleRepo, branchRoleRepo, txManager)
	inventoryService := service.NewInventoryService(productRepo, stockRepo, auditRepo, evaluator, txManager, wsHub)
	transferService := service.NewTransferService(transferRepo, stockRepo, productRepo, branchRepo, auditRepo, evaluator, txManager, wsHub)
	auditService := service.NewAuditService(auditRepo, transferRepo, evaluator)
	overviewService := service.NewOverviewService(db, transferRepo, evaluator)

	if err := roleService.SeedDefaultRolesAndPermissions(context.Background()); err != nil {
		log.Fatalf("seeding roles failed: %v", err)
	}

	authHandler := handler.NewAuthHandler(userService)
	userHandler := handler.NewUserHandler(userService, roleService)
	branchHandler := handler.NewBranchHandler(branchService, roleService)
	roleHandler := handler.NewRoleHandler(roleService)
	inventoryHandler := handler.NewInventoryHandler(inventoryService)
	transferHandler := handler.NewTransferHandler(transferService)
	auditHandler := handler.NewAuditHandler(auditService, overviewService)

	router := gin.Default()

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	// Swagger route
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "OK"})
	})

	// WebSocket endpoint
	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, middleware.GetJWTSecret())
	})

	// API routing
	authHandler.RegisterRoutes(router.Group(""))
	userHandler.RegisterRoutes(router.Group(""))
	branchHandler.RegisterRoutes(router.Group(""))
	roleHandler.RegisterRoutes(router.Group(""))
	inventoryHandler.RegisterRoutes(router.Group(""))
	transferHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))

	log.Infof("server listening on :%s", cfg.Port)
	if err := router.Run(":" + cfg.Port); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}
