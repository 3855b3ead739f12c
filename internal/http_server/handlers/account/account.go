package account

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"blog_service/internal/auth"
	resp "blog_service/internal/lib/api/response"
	sl "blog_service/internal/lib/logger"
	"blog_service/internal/middleware/authn"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator/v10"
)

type updateRequest struct {
	Username string `validate:"required,max=20"`
	Email    string `validate:"required,email"`
}

type Response struct {
	resp.Response
	Username  string `json:"username,omitempty"`
	Email     string `json:"email,omitempty"`
	ImageFile string `json:"image_file,omitempty"`
}

// Get возвращает профиль аутентифицированного пользователя.
func Get(
	log *slog.Logger,
	authService *auth.Auth,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.account.Get"

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

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		user, err := authService.UserByID(ctx, userID)
		if err != nil {
			log.Error("failed to load user", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		render.JSON(w, r, Response{
			Response:  resp.OK(),
			Username:  user.Username,
			Email:     user.Email,
			ImageFile: user.ImageFile,
		})
	}
}

// Update принимает multipart-форму с полями username, email и необязательным
// файлом picture.
func Update(
	log *slog.Logger,
	validate *validator.Validate,
	authService *auth.Auth,
	picturesDir string,
	maxUploadSize int64,
) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		const op = "handlers.account.Update"

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

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			log.Error("Failed to parse form", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.Error("Failed to decode request"))

			return
		}

		req := updateRequest{
			Username: r.FormValue("username"),
			Email:    r.FormValue("email"),
		}

		if err := validate.Struct(req); err != nil {
			validateErr := err.(validator.ValidationErrors)

			log.Error("Invalid request", sl.Err(err))

			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, resp.ValidationError(validateErr))

			return
		}

		var (
			pictureFile io.Reader
			pictureName string
		)

		file, header, err := r.FormFile("picture")
		if err == nil {
			defer file.Close()

			pictureFile = file
			pictureName = header.Filename
		}

		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		err = authService.UpdateProfile(ctx, userID, req.Username, req.Email, pictureFile, pictureName, picturesDir)
		if err != nil {
			if errors.Is(err, auth.ErrUserExists) {
				render.Status(r, http.StatusConflict)
				render.JSON(w, r, resp.Error("Username or email already taken"))

				return
			}

			log.Error("failed to update profile", sl.Err(err))

			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, resp.Error("Internal error"))

			return
		}

		log.Info("account updated", slog.Int64("uid", userID))

		render.JSON(w, r, Response{Response: resp.OK()})
	}
}
