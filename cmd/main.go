package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/fleetops/servicelog/internal/auth"
	"github.com/fleetops/servicelog/internal/events"
	"github.com/fleetops/servicelog/internal/handlers"
	"github.com/fleetops/servicelog/internal/middleware"
	"github.com/fleetops/servicelog/internal/state"
	"github.com/fleetops/servicelog/internal/storage"
)

// newMux wires the API routes to the handlers.
func newMux(store *state.Store, authService *auth.Service) *http.ServeMux {
	authHandler := handlers.NewAuthHandler(authService)
	logHandler := handlers.NewLogHandler(store)

	mux := http.NewServeMux()
	mux.HandleFunc("/health", logHandler.Health)
	mux.HandleFunc("/api/auth/login", authHandler.Login)
	mux.HandleFunc("/api/state", logHandler.State)
	mux.HandleFunc("/api/logs", logHandler.Logs)
	mux.HandleFunc("/api/logs/{id}", logHandler.DeleteLog)
	mux.HandleFunc("/api/logs/{id}/edit", logHandler.BeginEdit)
	mux.HandleFunc("/api/edit", logHandler.Edit)
	mux.HandleFunc("/api/edit/commit", logHandler.CommitEdit)
	mux.HandleFunc("/api/drafts", logHandler.Drafts)
	mux.HandleFunc("/api/drafts/current", logHandler.SelectDraft)
	mux.HandleFunc("/api/drafts/{id}", logHandler.Draft)
	mux.HandleFunc("/api/drafts/{id}/commit", logHandler.CommitDraft)
	mux.HandleFunc("/api/search", logHandler.Search)
	mux.HandleFunc("/api/filters", logHandler.Filters)
	mux.HandleFunc("/api/filters/panel", logHandler.FilterPanel)
	return mux
}

func main() {
	if err := godotenv.Load(); err != nil {
		log.Debug("No .env file found, using process environment")
	}

	if level, err := log.ParseLevel(os.Getenv("LOG_LEVEL")); err == nil {
		log.SetLevel(level)
	}

	dbPath := os.Getenv("STATE_DB_PATH")
	if dbPath == "" {
		dbPath = "servicelog.db"
	}
	kv, err := storage.NewSQLiteStore(dbPath)
	if err != nil {
		log.WithError(err).Fatal("Failed to open state store")
	}
	defer kv.Close()
	gateway := storage.NewGateway(kv)

	var publisher events.Publisher = events.Nop{}
	if broker := os.Getenv("MQTT_BROKER_URL"); broker != "" {
		mqttPublisher, err := events.NewMQTTPublisher(broker, "servicelog-manager")
		if err != nil {
			log.WithError(err).Warn("MQTT broker unreachable, event publishing disabled")
		} else {
			publisher = mqttPublisher
			defer mqttPublisher.Close()
		}
	}

	store := state.New(gateway, publisher)
	defer store.Close()
	if snap, ok := gateway.Restore(); ok {
		store.Restore(*snap)
		log.WithFields(log.Fields{
			"service_logs": len(snap.ServiceLogs),
			"drafts":       len(snap.Drafts),
		}).Info("Restored state from storage")
	}

	authService, err := auth.NewService()
	if err != nil {
		log.WithError(err).Fatal("Failed to initialize auth service")
	}

	authMiddleware := middleware.NewAuthMiddleware(authService)
	rateLimiter := middleware.NewRateLimitMiddleware()
	handler := rateLimiter.RateLimit(300, 60)(authMiddleware.Authenticate(newMux(store, authService)))

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	server := &http.Server{Addr: ":" + port, Handler: handler}

	go func() {
		log.WithField("port", port).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down")
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.WithError(err).Error("Server shutdown failed")
	}
}
