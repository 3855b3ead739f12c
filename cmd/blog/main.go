package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"blog_service/internal/auth"
	"blog_service/internal/config"
	"blog_service/internal/confirmation"
	"blog_service/internal/content"
	"blog_service/internal/http_server/handlers/account"
	"blog_service/internal/http_server/handlers/confirm"
	"blog_service/internal/http_server/handlers/deleteuser"
	"blog_service/internal/http_server/handlers/login"
	"blog_service/internal/http_server/handlers/logout"
	"blog_service/internal/http_server/handlers/post"
	"blog_service/internal/http_server/handlers/refresh"
	register "blog_service/internal/http_server/handlers/register"
	"blog_service/internal/http_server/handlers/resetpassword"
	"blog_service/internal/http_server/handlers/resetrequest"
	"blog_service/internal/http_server/handlers/userposts"
	sl "blog_service/internal/lib/logger"
	"blog_service/internal/middleware/authn"
	rateLimit "blog_service/internal/middleware/ratelimit"
	"blog_service/internal/rabbitmq"
	"blog_service/internal/storage/postgres"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-playground/validator/v10"
)

func main() {
	cfg := config.MustLoad("./config/config.yaml")

	log := sl.Setup(cfg.Env)

	log.Info("starting blog service", slog.String("env", cfg.Env))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigs
		log.Info("Shutdown signal received")
		cancel()
	}()

	storage, err := postgres.New(ctx, cfg)
	if err != nil {
		log.Error("failed to connect postgres", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer storage.Close()

	msgBroker, err := rabbitmq.New(cfg.RabbitMQ.URL, cfg.RabbitMQ.QueueName)
	if err != nil {
		log.Error("failed to connect rabbitmq", slog.String("err", err.Error()))
		os.Exit(1)
	}
	defer msgBroker.Close()

	confirmations := confirmation.New(log, storage, cfg.Tokens.ConfirmationTTL)

	authService := auth.New(
		log,
		storage,
		storage,
		confirmations,
		cfg.Tokens.JWTSecret,
		cfg.Tokens.AccessTokenTTL,
		cfg.Tokens.RefreshTokenTTL,
	)

	contentService := content.New(log, storage)

	router := setupRouter(log, cfg, authService, confirmations, contentService, msgBroker)

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Address,
		Handler:      router,
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("HTTP server is running")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("Server failed", slog.String("err", err.Error()))
			cancel()
		}
	}()

	<-ctx.Done()

	log.Info("Shutting down HTTP server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server shutdown error", slog.String("err", err.Error()))
	} else {
		log.Info("Server stopped gracefully")
	}

	log.Info("Main service stopped")
}

func setupRouter(
	log *slog.Logger,
	cfg *config.Config,
	authService *auth.Auth,
	confirmations *confirmation.Service,
	contentService *content.Service,
	msgBroker *rabbitmq.RabbitMQClient,
) *chi.Mux {
	validate := validator.New()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.With(rateLimit.Register()).Post("/register",
		register.New(log, validate, authService, msgBroker, cfg.BaseURL),
	)
	r.With(rateLimit.Login()).Post("/login",
		login.New(log, validate, authService),
	)
	r.With(rateLimit.Refresh()).Post("/refresh",
		refresh.New(log, validate, authService),
	)
	r.With(rateLimit.Logout()).Post("/logout",
		logout.New(log, validate, authService),
	)
	r.With(rateLimit.Confirmation()).Get("/confirmation/{confirmationID}",
		confirm.New(log, confirmations),
	)
	r.With(rateLimit.ResetRequest()).Post("/reset_password",
		resetrequest.New(
			log,
			validate,
			authService,
			msgBroker,
			cfg.Tokens.ResetTokenTTL,
			cfg.Tokens.ResetTokenSecret,
			cfg.BaseURL,
		),
	)
	r.With(rateLimit.ResetPassword()).Get("/reset_password/{token}",
		resetpassword.Probe(log, cfg.Tokens.ResetTokenSecret),
	)
	r.With(rateLimit.ResetPassword()).Post("/reset_password/{token}",
		resetpassword.New(log, validate, authService, cfg.Tokens.ResetTokenSecret),
	)

	r.Get("/user/{username}",
		userposts.New(log, authService, contentService),
	)

	// маршруты, требующие аутентификации
	r.Group(func(r chi.Router) {
		r.Use(authn.New(cfg.Tokens.JWTSecret))

		r.Get("/account", account.Get(log, authService))
		r.Post("/account", account.Update(log, validate, authService, cfg.Media.ProfilePicsDir, cfg.Media.MaxUploadSize))
		r.Get("/user/delete", deleteuser.New(log, authService))

		r.Post("/post/new", post.NewPost(log, validate, contentService))
		r.Get("/post/{postID}", post.Get(log, contentService))
		r.Post("/post/{postID}/update", post.Update(log, validate, contentService))
		r.Post("/post/{postID}/delete", post.Delete(log, contentService))
	})

	return r
}
