package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "requisition/api/swagger" // swagger docs
	"requisition/internal/auth"
	"requisition/internal/config"
	"requisition/internal/database"
	"requisition/internal/handler"
	"requisition/internal/logger"
	"requisition/internal/metrics"
	"requisition/internal/middleware"
	"requisition/internal/repository"
	"requisition/internal/service"
	"requisition/internal/storage"
	"requisition/internal/websocket"
	"requisition/internal/workflow"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"
)

// @title           Requisition Approval API
// @version         1.0
// @description     Staff raise requisitions that travel up their line-manager chain until a Storekeeper approves them.
// @host            localhost:8080
// @BasePath        /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	cfg, err := config.Load(config.DefaultConfigFile, config.DefaultEnvFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zapLogger, err := logger.New(cfg.Log.Env, cfg.Log.Level)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer func() { _ = zapLogger.Sync() }()

	gin.SetMode(cfg.Server.Mode)

	db, err := database.NewConnection(cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Database connection failed", zap.Error(err))
	}
	if err := database.Migrate(db); err != nil {
		zapLogger.Warn("Failed to auto-migrate models", zap.Error(err))
	}

	attachments, err := storage.NewLocalStore(cfg.Upload.Dir, cfg.Upload.MaxBytes)
	if err != nil {
		zapLogger.Fatal("Attachment storage unavailable", zap.Error(err))
	}

	// Set up WebSocket Hub
	wsHub := websocket.NewHub(zapLogger)
	go wsHub.Run()

	// Set up dependencies (Repository -> Service -> Handler)
	txManager := repository.NewTransactionManager(db)
	userRepo := repository.NewUserRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	requisitionRepo := repository.NewRequisitionRepository(db)
	lineItemRepo := repository.NewLineItemRepository(db)
	commentRepo := repository.NewCommentRepository(db)
	expenseRepo := repository.NewExpenseRepository(db)

	tokens := auth.NewTokenManager([]byte(cfg.Auth.JWTSecret), cfg.Auth.TokenTTL)
	userService := service.NewUserService(userRepo, auditRepo, tokens, zapLogger)
	auditService := service.NewAuditService(auditRepo)
	requisitionService := service.NewRequisitionService(
		requisitionRepo, lineItemRepo, commentRepo, auditRepo, txManager,
		attachments, wsHub, zapLogger,
		service.RequisitionOptions{
			Workflow:         workflow.Options{EnforceApprover: cfg.Workflow.EnforceApprover},
			EnforceOwnership: cfg.Workflow.EnforceOwnership,
		},
	)
	expenseService := service.NewExpenseService(
		expenseRepo, auditRepo, txManager, attachments, wsHub, zapLogger,
		workflow.Options{EnforceApprover: cfg.Workflow.EnforceApprover},
	)

	// Initialize Handlers
	userHandler := handler.NewUserHandler(userService, tokens.TTL())
	auditHandler := handler.NewAuditHandler(auditService, userService)
	requisitionHandler := handler.NewRequisitionHandler(requisitionService, userService)
	expenseHandler := handler.NewExpenseHandler(expenseService, userService)

	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestLogger(zapLogger), metrics.Middleware())

	// CORS configuration
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = cfg.Server.CORSOrigins
	corsConfig.AllowCredentials = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "Accept"}
	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	router.Use(cors.New(corsConfig))

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	router.GET("/metrics", gin.WrapH(metrics.Handler()))
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK"})
	})
	router.Static("/uploads", cfg.Upload.Dir)

	router.GET("/ws", func(c *gin.Context) {
		websocket.ServeWs(wsHub, c, userService)
	})

	userHandler.RegisterRoutes(router.Group(""))
	auditHandler.RegisterRoutes(router.Group(""))
	requisitionHandler.RegisterRoutes(router.Group(""))
	expenseHandler.RegisterRoutes(router.Group(""))

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		zapLogger.Info("Server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shut down", zap.Error(err))
	}
	wsHub.Stop()

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	zapLogger.Info("Server gracefully stopped")
}
