package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/opsdesk/opsdesk/internal/auth"
	"github.com/opsdesk/opsdesk/internal/chat"
	"github.com/opsdesk/opsdesk/internal/config"
	"github.com/opsdesk/opsdesk/internal/database"
	"github.com/opsdesk/opsdesk/internal/handlers"
	"github.com/opsdesk/opsdesk/internal/middleware"
	"github.com/opsdesk/opsdesk/internal/models"
	"github.com/opsdesk/opsdesk/internal/notify"
	"github.com/opsdesk/opsdesk/internal/redisc"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	slog.Info("starting opsdesk server")

	cfg := config.Load()

	db, err := database.InitDB(cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to init database", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("connected to PostgreSQL")

	if err := database.RunMigrations(db); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	redisClient, err := redisc.InitRedis(cfg.RedisURL)
	if err != nil {
		slog.Error("failed to init Redis", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()
	slog.Info("connected to Redis")

	store := &database.ChatStore{DB: db}
	publisher := &redisc.Publisher{Client: redisClient}

	hub := chat.NewHub(redisClient)
	go hub.Run()

	svc := chat.NewService(store, hub, redisClient, publisher)

	center := notify.NewCenter()
	watcher := notify.NewWatcher(redisClient, center, hub, store)
	ctx, stopWatcher := context.WithCancel(context.Background())
	if err := watcher.Start(ctx); err != nil {
		slog.Error("failed to start notification watcher", "error", err)
		os.Exit(1)
	}

	router := mux.NewRouter()
	router.Use(middleware.Logging)
	router.Use(middleware.CORS(cfg.CORSOrigin))

	limiter := middleware.NewRateLimiter(20, 40)
	router.Use(limiter.Middleware)

	// Public routes
	router.HandleFunc("/health", handlers.Health).Methods("GET", "OPTIONS")
	router.HandleFunc("/api/auth/register", auth.RegisterHandler(db, cfg.JWTSecret)).Methods("POST", "OPTIONS")
	router.HandleFunc("/api/auth/login", auth.LoginHandler(db, cfg.JWTSecret)).Methods("POST", "OPTIONS")

	// WebSocket change feed
	router.HandleFunc("/ws", chat.ServeWS(hub, svc, cfg.JWTSecret)).Methods("GET")

	// Protected routes
	protected := router.PathPrefix("/api").Subrouter()
	protected.Use(auth.JWTMiddleware(cfg.JWTSecret))

	protected.HandleFunc("/auth/me", auth.MeHandler(db)).Methods("GET")

	protected.HandleFunc("/users", handlers.ListUsers(db)).Methods("GET")
	protected.HandleFunc("/users/{id}", handlers.GetUser(db)).Methods("GET")
	protected.HandleFunc("/profile", handlers.UpdateProfile(db)).Methods("PUT")

	admin := protected.NewRoute().Subrouter()
	admin.Use(auth.RequireRole(models.RoleAdmin))
	admin.HandleFunc("/users/{id}/role", handlers.UpdateUserRole(db)).Methods("PUT")

	protected.HandleFunc("/employees", handlers.ListEmployees(db)).Methods("GET")
	protected.HandleFunc("/employees", handlers.CreateEmployee(db)).Methods("POST")
	protected.HandleFunc("/employees/{id}", handlers.GetEmployee(db)).Methods("GET")
	protected.HandleFunc("/employees/{id}", handlers.UpdateEmployee(db)).Methods("PUT")
	protected.HandleFunc("/employees/{id}", handlers.DeleteEmployee(db)).Methods("DELETE")

	protected.HandleFunc("/assets", handlers.ListAssets(db)).Methods("GET")
	protected.HandleFunc("/assets", handlers.CreateAsset(db)).Methods("POST")
	protected.HandleFunc("/assets/{id}", handlers.GetAsset(db)).Methods("GET")
	protected.HandleFunc("/assets/{id}", handlers.UpdateAsset(db)).Methods("PUT")
	protected.HandleFunc("/assets/{id}", handlers.DeleteAsset(db)).Methods("DELETE")

	protected.HandleFunc("/expenses", handlers.ListExpenses(db)).Methods("GET")
	protected.HandleFunc("/expenses", handlers.CreateExpense(db)).Methods("POST")
	protected.HandleFunc("/expenses/{id}", handlers.GetExpense(db)).Methods("GET")
	protected.HandleFunc("/expenses/{id}", handlers.UpdateExpense(db)).Methods("PUT")
	protected.HandleFunc("/expenses/{id}", handlers.DeleteExpense(db)).Methods("DELETE")

	managers := protected.NewRoute().Subrouter()
	managers.Use(auth.RequireRole(models.RoleAdmin, models.RoleManager))
	managers.HandleFunc("/expenses/{id}/status", handlers.SetExpenseStatus(db)).Methods("PUT")

	protected.HandleFunc("/drivers", handlers.ListDrivers(db)).Methods("GET")
	protected.HandleFunc("/drivers", handlers.CreateDriver(db)).Methods("POST")
	protected.HandleFunc("/drivers/{id}", handlers.GetDriver(db)).Methods("GET")
	protected.HandleFunc("/drivers/{id}", handlers.UpdateDriver(db)).Methods("PUT")
	protected.HandleFunc("/drivers/{id}", handlers.DeleteDriver(db)).Methods("DELETE")

	protected.HandleFunc("/conversations", handlers.ListConversations(svc)).Methods("GET")
	protected.HandleFunc("/conversations", handlers.CreateConversation(svc)).Methods("POST")
	protected.HandleFunc("/conversations/{id}/messages", handlers.GetMessages(svc)).Methods("GET")
	protected.HandleFunc("/conversations/{id}/messages", handlers.SendMessage(svc)).Methods("POST")
	protected.HandleFunc("/conversations/{id}/read", handlers.MarkConversationRead(svc)).Methods("POST")
	protected.HandleFunc("/conversations/{id}/participants", handlers.AddParticipant(svc)).Methods("POST")
	protected.HandleFunc("/conversations/{id}/participants", handlers.LeaveConversation(svc)).Methods("DELETE")

	protected.HandleFunc("/presence/online", handlers.OnlineUsers(redisClient)).Methods("GET")
	protected.HandleFunc("/presence/status", handlers.UpdateStatus(redisClient)).Methods("PUT")

	protected.HandleFunc("/notifications", handlers.ListNotifications(center)).Methods("GET")
	protected.HandleFunc("/notifications/read-all", handlers.MarkAllNotificationsRead(center)).Methods("POST")
	protected.HandleFunc("/notifications/clear", handlers.ClearNotifications(center)).Methods("POST")
	protected.HandleFunc("/notifications/{id}/read", handlers.MarkNotificationRead(center)).Methods("POST")
	protected.HandleFunc("/popups/{id}/dismiss", handlers.DismissPopup(center)).Methods("POST")

	for path, table := range map[string]string{
		"/complaints":  "complaints",
		"/suggestions": "suggestions",
		"/it-requests": "it_requests",
	} {
		protected.HandleFunc(path, handlers.ListSourceRecords(db, table)).Methods("GET")
		protected.HandleFunc(path, handlers.CreateSourceRecord(db, table, publisher)).Methods("POST")
		protected.HandleFunc(path+"/{id}/status", handlers.SetSourceStatus(db, table, publisher)).Methods("PUT")
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		slog.Info("server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("shutting down", "signal", sig.String())

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	stopWatcher()
	watcher.Close()
	center.Close()
	hub.Shutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
		os.Exit(1)
	}

	slog.Info("server stopped gracefully")
}
