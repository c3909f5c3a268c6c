package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	commonmw "runbox/internal/common/http/middleware"
	"runbox/internal/exec/controller"
	"runbox/internal/exec/observer"
	"runbox/internal/exec/profile"
	"runbox/internal/exec/ratelimit"
	"runbox/internal/exec/runner"
	"runbox/internal/exec/sandbox"
	"runbox/internal/exec/service"
	"runbox/internal/exec/validator"
	"runbox/pkg/utils/logger"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/exec_service.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "Path to config file")
	flag.Parse()

	// .env is optional; environment overrides apply either way.
	_ = godotenv.Load()

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load app config failed: %v\n", err)
		return
	}

	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(os.Stderr, "init logger failed: %v\n", err)
		return
	}
	defer func() {
		_ = logger.Sync()
	}()

	registry, err := profile.NewRegistry(appCfg.Languages)
	if err != nil {
		logger.Error(context.Background(), "init language registry failed", zap.Error(err))
		return
	}

	if appCfg.Execution.WorkRoot != "" {
		if err := os.MkdirAll(appCfg.Execution.WorkRoot, 0755); err != nil {
			logger.Error(context.Background(), "init work root failed", zap.Error(err))
			return
		}
	}

	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observer.NewPrometheusRecorder(promRegistry)

	launcher := sandbox.NewDockerLauncher(appCfg.Sandbox.toLauncherConfig())
	phaseRunner := runner.New(launcher)
	reqValidator := validator.New(registry, appCfg.Execution.toValidatorLimits())

	execSvc, err := service.NewService(service.Config{
		Registry:  registry,
		Validator: reqValidator,
		Runner:    phaseRunner,
		Metrics:   metrics,
		Limits:    appCfg.Execution.toServiceLimits(),
		WorkRoot:  appCfg.Execution.WorkRoot,
	})
	if err != nil {
		logger.Error(context.Background(), "init exec service failed", zap.Error(err))
		return
	}

	limiter, err := ratelimit.New(appCfg.RateLimit)
	if err != nil {
		logger.Error(context.Background(), "init rate limiter failed", zap.Error(err))
		return
	}
	defer func() {
		_ = limiter.Close()
	}()

	httpServer := buildHTTPServer(appCfg.Server, execSvc, limiter, promRegistry)
	listener, err := net.Listen("tcp", appCfg.Server.Addr)
	if err != nil {
		logger.Error(context.Background(), "init http listener failed", zap.Error(err))
		return
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "exec http server started",
			zap.String("addr", appCfg.Server.Addr),
			zap.Strings("languages", registry.IDs()))
		errCh <- httpServer.Serve(listener)
	}()

	shutdownCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error(context.Background(), "http server stopped", zap.Error(err))
		}
	case <-shutdownCtx.Done():
		logger.Info(context.Background(), "shutdown signal received")
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(ctx); err != nil {
		logger.Error(context.Background(), "http server shutdown failed", zap.Error(err))
	}
}

func buildHTTPServer(cfg ServerConfig, execSvc *service.ExecService, limiter *ratelimit.Limiter, promRegistry *prometheus.Registry) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(commonmw.TraceContextMiddleware())
	router.Use(requestLogger())

	execController := controller.NewExecuteController(execSvc)
	router.POST("/execute", ratelimit.Middleware(limiter, "execute"), execController.Execute)
	router.GET("/languages", execController.Languages)
	router.GET("/health", execController.Health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{})))

	return &http.Server{
		Addr:         cfg.Addr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		logger.Info(
			c.Request.Context(),
			"request completed",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
