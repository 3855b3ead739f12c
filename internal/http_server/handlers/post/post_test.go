package post

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"blog_service/internal/content"
	"blog_service/internal/lib/jwt"
	"blog_service/internal/middleware/authn"
	"blog_service/internal/models"
	"blog_service/internal/storage"
)

const testJWTSecret = "test-jwt-secret"

type mockPostStorage struct {
	posts  map[int64]models.Post
	nextID int64
}

func (m *mockPostStorage) SavePost(ctx context.Context, title, postContent string, userID int64) (models.Post, error) {
	p := models.Post{
		ID:        m.nextID,
		Title:     title,
		Content:   postContent,
		CreatedAt: time.Now(),
		UserID:    userID,
	}
	m.posts[p.ID] = p
	m.nextID++
	return p, nil
}

func (m *mockPostStorage) Post(ctx context.Context, id int64) (models.Post, error) {
	p, ok := m.posts[id]
	if !ok {
		return models.Post{}, storage.ErrPostNotFound
	}
	return p, nil
}

func (m *mockPostStorage) UpdatePost(ctx context.Context, id int64, title, postContent string) error {
	p := m.posts[id]
	p.Title = title
	p.Content = postContent
	m.posts[id] = p
	return nil
}

func (m *mockPostStorage) DeletePost(ctx context.Context, id int64) error {
	delete(m.posts, id)
	return nil
}

func (m *mockPostStorage) PostsByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Post, error) {
	var all []models.Post
	for _, p := range m.posts {
		if p.UserID == userID {
			all = append(all, p)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (m *mockPostStorage) CountPostsByUser(ctx context.Context, userID int64) (int, error) {
	total := 0
	for _, p := range m.posts {
		if p.UserID == userID {
			total++
		}
	}
	return total, nil
}

func setupRouter(store *mockPostStorage) *chi.Mux {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	validate := validator.New()
	svc := content.New(log, store)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(authn.New(testJWTSecret))

		r.Post("/post/new", NewPost(log, validate, svc))
		r.Get("/post/{postID}", Get(log, svc))
		r.Post("/post/{postID}/update", Update(log, validate, svc))
		r.Post("/post/{postID}/delete", Delete(log, svc))
	})

	return r
}

func accessToken(t *testing.T, userID int64) string {
	t.Helper()

	token, err := jwt.NewToken(models.User{ID: userID, Email: "u@example.com"}, testJWTSecret, 15*time.Minute)
	require.NoError(t, err)

	return token
}

func doRequest(t *testing.T, r http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	return rec
}

func TestNewPost(t *testing.T) {
	store := &mockPostStorage{posts: map[int64]models.Post{}, nextID: 1}
	r := setupRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/post/new", accessToken(t, 1),
		`{"title": "Hello", "content": "World"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.Len(t, store.posts, 1)
	assert.Equal(t, int64(1), store.posts[1].UserID)
}

func TestNewPost_Unauthenticated(t *testing.T) {
	store := &mockPostStorage{posts: map[int64]models.Post{}, nextID: 1}
	r := setupRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/post/new", "",
		`{"title": "Hello", "content": "World"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, store.posts)
}

func TestUpdatePost_NotOwnerForbidden(t *testing.T) {
	store := &mockPostStorage{posts: map[int64]models.Post{
		1: {ID: 1, Title: "Original", Content: "Body", CreatedAt: time.Now(), UserID: 1},
	}, nextID: 2}
	r := setupRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/post/1/update", accessToken(t, 2),
		`{"title": "Hacked", "content": "Hacked"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Original", store.posts[1].Title)
	assert.Equal(t, "Body", store.posts[1].Content)
}

func TestUpdatePost_Owner(t *testing.T) {
	store := &mockPostStorage{posts: map[int64]models.Post{
		1: {ID: 1, Title: "Original", Content: "Body", CreatedAt: time.Now(), UserID: 1},
	}, nextID: 2}
	r := setupRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/post/1/update", accessToken(t, 1),
		`{"title": "Updated", "content": "New body"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Updated", store.posts[1].Title)
}

func TestDeletePost_NotOwnerForbidden(t *testing.T) {
	store := &mockPostStorage{posts: map[int64]models.Post{
		1: {ID: 1, Title: "Original", Content: "Body", CreatedAt: time.Now(), UserID: 1},
	}, nextID: 2}
	r := setupRouter(store)

	rec := doRequest(t, r, http.MethodPost, "/post/1/delete", accessToken(t, 2), "")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Len(t, store.posts, 1)
}

func TestGetPost_NotFound(t *testing.T) {
	store := &mockPostStorage{posts: map[int64]models.Post{}, nextID: 1}
	r := setupRouter(store)

	rec := doRequest(t, r, http.MethodGet, "/post/99", accessToken(t, 1), "")

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
