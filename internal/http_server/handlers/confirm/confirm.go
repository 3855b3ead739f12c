package confirm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"blog_service/internal/confirmation"
	resp "blog_service/internal/lib/api/response"
	sl "blog_service/internal/lib/logger"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
)

// New обрабатывает переход по ссылке из письма. Неизвестный идентификатор
// дает 404, просроченное или уже подтвержденное подтверждение дает 400 с
// машинным кодом ошибки, успех завершается редиректом на страницу входа.
func New(
	log *slog.Logger,
	confirmations *confirmation.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.confirm.New"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		confirmationID := chi.URLParam(r, "confirmationID")
		if confirmationID == "" {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, resp.Error("Not found"))

			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		c, err := confirmations.Confirm(ctx, confirmationID)
		if err != nil {
			switch {
			case errors.Is(err, confirmation.ErrNotFound):
				log.Info("confirmation not found")

				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Not found"))
			case errors.Is(err, confirmation.ErrExpired):
				log.Info("confirmation expired")

				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("confirmation_link_expired"))
			case errors.Is(err, confirmation.ErrAlreadyConfirmed):
				log.Info("confirmation already confirmed")

				render.Status(r, http.StatusBadRequest)
				render.JSON(w, r, resp.Error("confirmation_already_confirmed"))
			default:
				log.Error("failed to confirm", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("account confirmed", slog.Int64("uid", c.UserID))

		http.Redirect(w, r, "/login", http.StatusSeeOther)
	}
}
