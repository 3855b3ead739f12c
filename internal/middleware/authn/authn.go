package authn

import (
	"context"
	"net/http"
	"strings"

	resp "blog_service/internal/lib/api/response"
	"blog_service/internal/lib/jwt"

	"github.com/go-chi/render"
)

type ctxKey struct{}

// New возвращает middleware, извлекающее пользователя из Bearer-токена.
// Идентичность кладется в контекст запроса и передается в обработчики явно.
func New(jwtSecret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("authentication required"))

				return
			}

			userID, err := jwt.ParseToken(token, jwtSecret)
			if err != nil {
				render.Status(r, http.StatusUnauthorized)
				render.JSON(w, r, resp.Error("invalid or expired token"))

				return
			}

			ctx := context.WithValue(r.Context(), ctxKey{}, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserID возвращает id аутентифицированного пользователя из контекста.
func UserID(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(ctxKey{}).(int64)
	return id, ok
}
