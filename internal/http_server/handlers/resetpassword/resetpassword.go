package resetpassword

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"blog_service/internal/auth"
	resp "blog_service/internal/lib/api/response"
	sl "blog_service/internal/lib/logger"
	"blog_service/internal/lib/resettoken"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type Request struct {
	Pass string `json:"password" validate:"required"`
}

type Response struct {
	resp.Response
}

// Probe проверяет reset-токен из ссылки без смены пароля. Некорректный или
// просроченный токен не различается по причине.
func Probe(
	log *slog.Logger,
	resetTokenSecret string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resetpassword.Probe"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := chi.URLParam(r, "token")

		if _, ok := resettoken.Verify(token, resetTokenSecret); !ok {
			log.Info("invalid or expired reset token")

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("That is an invalid token or expired token"))

			return
		}

		render.JSON(w, r, Response{Response: resp.OK()})
	}
}

// New устанавливает новый пароль по reset-токену из ссылки.
func New(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	resetTokenSecret string,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.resetpassword.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		token := chi.URLParam(r, "token")

		var req Request

		err := render.DecodeJSON(r.Body, &req)
		if err != nil {
			log.Error("Failed to decode request body", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		if err := authService.ResetPassword(ctx, token, resetTokenSecret, req.Pass); err != nil {
			if errors.Is(err, auth.ErrInvalidResetToken) {
				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("That is an invalid token or expired token"))

				return
			}

			log.Error("failed to reset password", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("password reset successfully")

		render.JSON(w, r, Response{Response: resp.OK()})
	}
}
