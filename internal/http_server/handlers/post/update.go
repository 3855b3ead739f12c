package post

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"blog_service/internal/content"
	resp "blog_service/internal/lib/api/response"
	sl "blog_service/internal/lib/logger"
	"blog_service/internal/middleware/authn"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

func Update(
	log *slog.Logger,
	validate *validator.Validate,
	contentService *content.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.post.Update"

		log = log.With(
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
		)

		userID, ok := authn.UserID(r.Context())
		if !ok {
			render.Status(r, http.StatusUnauthorized)
			render.JSON(w, r, resp.Error("authentication required"))

			return
		}

		id, ok := postID(r)
		if !ok {
			writeBadID(w, r, log)

			return
		}

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

		err = contentService.UpdatePost(ctx, id, userID, req.Title, req.Content)
		if err != nil {
			switch {
			case errors.Is(err, content.ErrPostNotFound):
				render.Status(r, http.StatusNotFound)
				render.JSON(w, r, resp.Error("Post not found"))
			case errors.Is(err, content.ErrNotOwner):
				render.Status(r, http.StatusForbidden)
				render.JSON(w, r, resp.Error("Forbidden"))
			default:
				log.Error("failed to update post", sl.Err(err))

				render.Status(r, http.StatusInternalServerError)
				render.JSON(w, r, resp.Error("Internal error"))
			}

			return
		}

		log.Info("post updated", slog.Int64("post_id", id))

		render.JSON(w, r, Response{Response: resp.OK(), ID: id})
	}
}
