package post

import (
	"context"
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

func NewPost(
	log *slog.Logger,
	validate *validator.Validate,
	contentService *content.Service,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.post.NewPost"

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

		created, err := contentService.CreatePost(ctx, userID, req.Title, req.Content)
		if err != nil {
			log.Error("failed to create post", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("post created", slog.Int64("post_id", created.ID))

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, Response{
			Response:  resp.OK(),
			ID:        created.ID,
			Title:     created.Title,
			Content:   created.Content,
			CreatedAt: created.CreatedAt,
		})
	}
}
