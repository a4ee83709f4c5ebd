package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"todoservice/internal/app"
	"todoservice/internal/config"
	"todoservice/shared/logging"
	"todoservice/shared/utils"

	"github.com/joho/godotenv"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// Load .env file for local development (ignored in production)
	loadEnvFile()

	logEnvironmentInfo()
	cfg := loadConfig()

	logger := initLoggerSettings(cfg)
	defer logger.Close()

	application, err := app.NewApplication(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to create application: %v", err)
	}

	if err := application.Start(); err != nil {
		logger.Fatalf("Failed to start application: %v", err)
	}

	startServer(newServer(cfg, application.Handler()), application)
}

func newServer(cfg *config.RawConfig, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      handler,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}
}

func startServer(srv *http.Server, application *app.Application) {
	logger := application.Logger()

	go func() {
		logger.Infof("Starting http server on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down application ...")
	shutdown(srv, application)
	logger.Info("Server exited")
}

// shutdown drains in-flight requests before the application closes its sinks
func shutdown(srv *http.Server, application *app.Application) {
	logger := application.Logger()

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	if err := application.Shutdown(); err != nil {
		logger.Errorf("Application shutdown error: %v", err)
	}
}

// loadConfig reads conf/config.yaml under SERVICE_HOME (or the working
// directory), falling back to environment variables and defaults
func loadConfig() *config.RawConfig {
	return config.LoadConfigWithDefaults(utils.ResolveConfFilePath("config.yaml"))
}

func initLoggerSettings(cfg *config.RawConfig) logging.Logger {
	// relative log file names land in SERVICE_LOG_DIR when it is set
	logDir := os.Getenv("SERVICE_LOG_DIR")
	if logDir != "" && cfg.Logging.FileName != logging.StderrPath && !filepath.IsAbs(cfg.Logging.FileName) {
		if err := os.MkdirAll(logDir, 0755); err != nil {
			log.Printf("Failed to create log directory %s: %v", logDir, err)
		}
		cfg.Logging.FileName = filepath.Join(logDir, cfg.Logging.FileName)
	}

	loggerConfig := cfg.Logging.ConvertToLoggerConfig()

	logger, err := logging.NewLogger(&loggerConfig)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	return logger
}

// loadEnvFile loads .env file for local development
// In production (Docker/K8s), environment variables are set directly
func loadEnvFile() {
	if isRunningInContainer() {
		log.Println("Running in container - using system environment variables")
		return
	}

	for _, envPath := range envFileCandidates() {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			log.Printf("Failed to load .env from %s: %v", envPath, err)
			continue
		}
		log.Printf("Loaded environment from: %s", envPath)
		return
	}

	log.Println("No .env file found - using system environment variables")
}

func envFileCandidates() []string {
	paths := []string{".env", "../.env"}
	if home := os.Getenv("SERVICE_HOME"); home != "" {
		paths = append(paths, filepath.Join(home, ".env"))
	}
	return paths
}

// isRunningInContainer detects if the application is running in a container
func isRunningInContainer() bool {
	if os.Getenv("KUBERNETES_SERVICE_HOST") != "" {
		return true
	}
	if os.Getenv("CONTAINER") == "true" {
		return true
	}
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	return false
}

// logEnvironmentInfo logs information about the current environment
func logEnvironmentInfo() {
	appEnv := utils.GetEnv("APP_ENV", "production")
	appName := utils.GetEnv("APP_NAME", "todo-service")
	appVersion := utils.GetEnv("APP_VERSION", "unknown")

	log.Printf("Starting %s v%s in %s environment", appName, appVersion, appEnv)

	if isRunningInContainer() {
		log.Println("Running in containerized environment")
	} else {
		log.Println("Running in local development environment")
	}
}
