// Package post содержит обработчики CRUD для постов. Все операции требуют
// аутентификации; изменение и удаление дополнительно требуют владения постом.
package post

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	resp "blog_service/internal/lib/api/response"

	"github.com/go-chi/chi"
	"github.com/go-chi/render"
)

type Request struct {
	Title   string `json:"title" validate:"required,max=100"`
	Content string `json:"content" validate:"required"`
}

type Response struct {
	resp.Response
	ID        int64     `json:"id,omitempty"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content,omitempty"`
	CreatedAt time.Time `json:"created_at,omitzero"`
}

func postID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}

	return id, true
}

func writeBadID(w http.ResponseWriter, r *http.Request, log *slog.Logger) {
	log.Warn("invalid post id")

	render.Status(r, http.StatusBadRequest)
	render.JSON(w, r, resp.Error("Invalid post id"))
}
