package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kanban-platform/replenishment-service/internal/application"
	mongoRepo "github.com/kanban-platform/replenishment-service/internal/infrastructure/mongodb"
	apiutil "github.com/kanban-platform/replenishment-service/pkg/api"
	"github.com/kanban-platform/replenishment-service/pkg/cloudevents"
	"github.com/kanban-platform/replenishment-service/pkg/errors"
	"github.com/kanban-platform/replenishment-service/pkg/kafka"
	"github.com/kanban-platform/replenishment-service/pkg/logging"
	"github.com/kanban-platform/replenishment-service/pkg/metrics"
	"github.com/kanban-platform/replenishment-service/pkg/middleware"
	"github.com/kanban-platform/replenishment-service/pkg/mongodb"
	"github.com/kanban-platform/replenishment-service/pkg/outbox"
	"github.com/kanban-platform/replenishment-service/pkg/tracing"
)

const serviceName = "replenishment-service"

func main() {
	// Setup enhanced logger
	logConfig := logging.DefaultConfig(serviceName)
	logConfig.Level = logging.LogLevel(getEnv("LOG_LEVEL", "info"))
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting replenishment-service API")

	// Load configuration
	config := loadConfig()
	ctx := context.Background()

	// Initialize OpenTelemetry tracing
	tracingConfig := tracing.DefaultConfig(serviceName)
	tracingConfig.OTLPEndpoint = getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317")
	tracingConfig.Environment = getEnv("ENVIRONMENT", "development")
	tracingConfig.Enabled = getEnv("TRACING_ENABLED", "true") == "true"

	tracerProvider, err := tracing.Initialize(ctx, tracingConfig)
	if err != nil {
		logger.WithError(err).Error("Failed to initialize tracing")
		// Continue without tracing - don't exit
	} else if tracerProvider != nil {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
				logger.WithError(err).Error("Failed to shutdown tracer")
			}
		}()
		logger.Info("Tracing initialized", "endpoint", tracingConfig.OTLPEndpoint)
	}

	// Initialize Prometheus metrics
	metricsConfig := metrics.DefaultConfig(serviceName)
	m := metrics.New(metricsConfig)
	logger.Info("Metrics initialized")

	// Initialize MongoDB behind a circuit breaker
	mongoClient, err := mongodb.NewProductionClient(ctx, config.MongoDB, m, logger)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to MongoDB")
		os.Exit(1)
	}
	defer mongoClient.Close(ctx)
	logger.Info("Connected to MongoDB", "database", config.MongoDB.Database)

	// Initialize Kafka producer behind a circuit breaker
	producer := kafka.NewProductionProducer(config.Kafka, m, logger)
	defer producer.Close()
	logger.Info("Kafka producer initialized", "brokers", config.Kafka.Brokers)

	// Initialize CloudEvents factory
	eventFactory := cloudevents.NewEventFactory(cloudevents.SourceReplenishment)

	// Initialize repositories
	orderRepo := mongoRepo.NewOrderRepository(mongoClient, eventFactory, logger)
	cardCatalog := mongoRepo.NewCardCatalog(mongoClient)

	// Initialize and start outbox publisher
	outboxPublisher := outbox.NewPublisher(
		orderRepo.GetOutboxRepository(),
		producer,
		logger,
		m,
		&outbox.PublisherConfig{
			PollInterval: 1 * time.Second,
			BatchSize:    100,
		},
	)
	if err := outboxPublisher.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start outbox publisher")
		os.Exit(1)
	}
	defer outboxPublisher.Stop()
	logger.Info("Outbox publisher started")

	// Initialize application service
	duplicateGuard := application.NewDuplicateGuard(orderRepo, logger)
	businessMetrics := middleware.NewBusinessMetrics(m)
	replenishmentService := application.NewReplenishmentService(
		orderRepo,
		cardCatalog,
		duplicateGuard,
		businessMetrics,
		logger,
	)

	// Initialize and start the active store reconciler
	reconciler := application.NewReconciler(orderRepo, m, logger, &application.ReconcilerConfig{
		Interval: config.ReconcileInterval,
	})
	if err := reconciler.Start(ctx); err != nil {
		logger.WithError(err).Error("Failed to start reconciler")
		os.Exit(1)
	}
	defer reconciler.Stop()
	logger.Info("Order reconciler started")

	// Setup Gin router with middleware
	router := gin.New()

	// Apply standard middleware (includes recovery, request ID, correlation, logging, error handling)
	middlewareConfig := middleware.DefaultConfig(serviceName, logger.Logger)
	middleware.Setup(router, middlewareConfig)

	// Add metrics middleware
	router.Use(middleware.MetricsMiddleware(m))

	// Add tracing middleware
	router.Use(middleware.SimpleTracingMiddleware(serviceName))

	// Handle 404 and 405 errors
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	// Health check endpoints
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return mongoClient.HealthCheck(ctx)
	}))

	// Metrics endpoint
	router.GET("/metrics", middleware.MetricsEndpoint(m))

	// API v1 routes
	api := router.Group("/api/v1")
	{
		orders := api.Group("/orders")
		{
			orders.POST("/scan", scanCardHandler(replenishmentService, logger))
			// Static routes before the :orderId wildcard
			orders.GET("/active", listActiveOrdersHandler(replenishmentService, logger))
			orders.GET("/stats", statsHandler(replenishmentService, logger))
			orders.GET("/locations", locationsHandler(replenishmentService, logger))
			orders.GET("/:orderId", getOrderHandler(replenishmentService, logger))
			orders.POST("/:orderId/dispatch", dispatchOrderHandler(replenishmentService, logger))
			orders.POST("/:orderId/deliver", deliverOrderHandler(replenishmentService, logger))
			orders.POST("/:orderId/cancel", cancelOrderHandler(replenishmentService, logger))
		}
		api.GET("/reports/kpi", kpiReportHandler(replenishmentService, logger))
	}

	// Start server
	srv := &http.Server{
		Addr:         config.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	// Graceful shutdown
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", config.ServerAddr)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	logger.Info("Server stopped")
}

// Config holds application configuration
type Config struct {
	ServerAddr        string
	ReconcileInterval time.Duration
	MongoDB           *mongodb.Config
	Kafka             *kafka.Config
}

func loadConfig() *Config {
	reconcileInterval := 30 * time.Second
	if v, err := time.ParseDuration(getEnv("RECONCILE_INTERVAL", "30s")); err == nil {
		reconcileInterval = v
	}

	return &Config{
		ServerAddr:        getEnv("SERVER_ADDR", ":8080"),
		ReconcileInterval: reconcileInterval,
		MongoDB: &mongodb.Config{
			URI:            getEnv("MONGODB_URI", "mongodb://localhost:27017"),
			Database:       getEnv("MONGODB_DATABASE", "kanban_db"),
			ConnectTimeout: 10 * time.Second,
			MaxPoolSize:    100,
			MinPoolSize:    10,
		},
		Kafka: &kafka.Config{
			Brokers:      []string{getEnv("KAFKA_BROKERS", "localhost:9092")},
			ClientID:     serviceName,
			BatchSize:    100,
			BatchTimeout: 10 * time.Millisecond,
			RequiredAcks: -1,
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// HTTP Handlers

func scanCardHandler(service *application.ReplenishmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var req struct {
			CardID      string `json:"cardId" binding:"required,card_id"`
			RequestedBy string `json:"requestedBy" binding:"omitempty,operator_name"`
			Operator    string `json:"operator" binding:"omitempty,operator_name"`
		}

		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"card.id": req.CardID,
		})

		cmd := application.ScanCardCommand{
			CardID:      req.CardID,
			RequestedBy: req.RequestedBy,
			Operator:    req.Operator,
		}

		result, err := service.ScanCard(c.Request.Context(), cmd)
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		status := http.StatusOK
		if result.Result == application.ScanResultCreated {
			status = http.StatusCreated
		}
		c.JSON(status, result)
	}
}

func getOrderHandler(service *application.ReplenishmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		orderID := c.Param("orderId")
		middleware.AddSpanAttributes(c, map[string]interface{}{
			"order.id": orderID,
		})

		query := application.GetOrderQuery{OrderID: orderID}

		order, err := service.GetOrder(c.Request.Context(), query)
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

func listActiveOrdersHandler(service *application.ReplenishmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		pagination := apiutil.ParsePagination(c)

		var filters struct {
			Status   string `form:"status" binding:"omitempty"`
			Location string `form:"location" binding:"omitempty,location_id"`
		}
		if appErr := apiutil.BindQueryAndValidate(c, &filters); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"status":   filters.Status,
			"location": filters.Location,
		})

		query := application.ListActiveOrdersQuery{
			Status:   filters.Status,
			Location: filters.Location,
			Page:     pagination.Page,
			PageSize: pagination.PageSize,
		}

		page, err := service.ListActiveOrders(c.Request.Context(), query)
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, page)
	}
}

func dispatchOrderHandler(service *application.ReplenishmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		orderID := c.Param("orderId")
		middleware.AddSpanAttributes(c, map[string]interface{}{
			"order.id": orderID,
		})

		var req struct {
			Operator string `json:"operator" binding:"required,operator_name"`
		}

		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.DispatchOrderCommand{
			OrderID:  orderID,
			Operator: req.Operator,
		}

		order, err := service.DispatchOrder(c.Request.Context(), cmd)
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

func deliverOrderHandler(service *application.ReplenishmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		orderID := c.Param("orderId")
		middleware.AddSpanAttributes(c, map[string]interface{}{
			"order.id": orderID,
		})

		var req struct {
			Operator string `json:"operator" binding:"required,operator_name"`
		}

		if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
			responder.RespondWithAppError(appErr)
			return
		}

		cmd := application.DeliverOrderCommand{
			OrderID:  orderID,
			Operator: req.Operator,
		}

		order, err := service.DeliverOrder(c.Request.Context(), cmd)
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

func cancelOrderHandler(service *application.ReplenishmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		orderID := c.Param("orderId")
		middleware.AddSpanAttributes(c, map[string]interface{}{
			"order.id": orderID,
		})

		var req struct {
			Reason string `json:"reason" binding:"omitempty,safe_string"`
		}

		// The cancel body is optional, an empty POST cancels without a reason.
		if c.Request.ContentLength > 0 {
			if appErr := middleware.BindAndValidate(c, &req); appErr != nil {
				responder.RespondWithAppError(appErr)
				return
			}
		}

		cmd := application.CancelOrderCommand{
			OrderID: orderID,
			Reason:  req.Reason,
		}

		order, err := service.CancelOrder(c.Request.Context(), cmd)
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, order)
	}
}

func statsHandler(service *application.ReplenishmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		counts, err := service.Stats(c.Request.Context())
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, counts)
	}
}

func locationsHandler(service *application.ReplenishmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		rollup, err := service.Locations(c.Request.Context())
		if err != nil {
			if appErr, ok := err.(*errors.AppError); ok {
				responder.RespondWithAppError(appErr)
			} else {
				responder.RespondInternalError(err)
			}
			return
		}

		c.JSON(http.StatusOK, rollup)
	}
}

func kpiReportHandler(service *application.ReplenishmentService, logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		responder := middleware.NewErrorResponder(c, logger.Logger)

		var since time.Time
		if raw := c.Query("since"); raw != "" {
			parsed, err := time.Parse(time.RFC3339, raw)
			if err != nil {
				responder.RespondBadRequest("since must be an RFC3339 timestamp")
				return
			}
			since = parsed
		}

		middleware.AddSpanAttributes(c, map[string]interface{}{
			"report.since": since,
		})

		query := application.KPIReportQuery{Since: since}

		report, err := service.KPIReport(c.Request.Context(), query)
		if err != nil {
			responder.RespondInternalError(err)
			return
		}

		c.JSON(http.StatusOK, report)
	}
}
