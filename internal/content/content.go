package content

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sl "blog_service/internal/lib/logger"
	"blog_service/internal/models"
	"blog_service/internal/storage"
)

const PageSize = 5

var (
	ErrPostNotFound = errors.New("post not found")
	ErrNotOwner     = errors.New("not the post owner")
)

type PostStorage interface {
	SavePost(ctx context.Context, title, content string, userID int64) (models.Post, error)
	Post(ctx context.Context, id int64) (models.Post, error)
	UpdatePost(ctx context.Context, id int64, title, content string) error
	DeletePost(ctx context.Context, id int64) error
	PostsByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Post, error)
	CountPostsByUser(ctx context.Context, userID int64) (int, error)
}

type Service struct {
	log   *slog.Logger
	posts PostStorage
}

// Page — страница постов пользователя, новые впереди.
type Page struct {
	Posts    []models.Post
	Page     int
	PageSize int
	Total    int
}

func New(log *slog.Logger, posts PostStorage) *Service {
	return &Service{
		log:   log,
		posts: posts,
	}
}

func (s *Service) CreatePost(ctx context.Context, authorID int64, title, content string) (models.Post, error) {
	const op = "content.CreatePost"

	post, err := s.posts.SavePost(ctx, title, content, authorID)
	if err != nil {
		s.log.Error("failed to save post", sl.Err(err))

		return models.Post{}, fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("post created", slog.Int64("post_id", post.ID), slog.Int64("uid", authorID))

	return post, nil
}

func (s *Service) Post(ctx context.Context, id int64) (models.Post, error) {
	post, err := s.posts.Post(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrPostNotFound) {
			return models.Post{}, ErrPostNotFound
		}

		return models.Post{}, err
	}

	return post, nil
}

// UpdatePost меняет заголовок и текст поста. Право на изменение имеет
// только владелец; проверка выполняется до какой-либо мутации.
func (s *Service) UpdatePost(ctx context.Context, postID, actorID int64, title, content string) error {
	const op = "content.UpdatePost"

	post, err := s.Post(ctx, postID)
	if err != nil {
		return err
	}

	if post.UserID != actorID {
		s.log.Warn("update rejected: not the owner",
			slog.Int64("post_id", postID),
			slog.Int64("uid", actorID),
		)

		return ErrNotOwner
	}

	if err := s.posts.UpdatePost(ctx, postID, title, content); err != nil {
		s.log.Error("failed to update post", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (s *Service) DeletePost(ctx context.Context, postID, actorID int64) error {
	const op = "content.DeletePost"

	post, err := s.Post(ctx, postID)
	if err != nil {
		return err
	}

	if post.UserID != actorID {
		s.log.Warn("delete rejected: not the owner",
			slog.Int64("post_id", postID),
			slog.Int64("uid", actorID),
		)

		return ErrNotOwner
	}

	if err := s.posts.DeletePost(ctx, postID); err != nil {
		s.log.Error("failed to delete post", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// ListByUser возвращает страницу постов пользователя, отсортированных по
// created_at по убыванию. Страницы нумеруются с единицы, размер фиксирован.
func (s *Service) ListByUser(ctx context.Context, userID int64, page int) (Page, error) {
	const op = "content.ListByUser"

	if page < 1 {
		page = 1
	}

	offset := (page - 1) * PageSize

	posts, err := s.posts.PostsByUser(ctx, userID, PageSize, offset)
	if err != nil {
		s.log.Error("failed to list posts", sl.Err(err))

		return Page{}, fmt.Errorf("%s: %w", op, err)
	}

	total, err := s.posts.CountPostsByUser(ctx, userID)
	if err != nil {
		s.log.Error("failed to count posts", sl.Err(err))

		return Page{}, fmt.Errorf("%s: %w", op, err)
	}

	return Page{
		Posts:    posts,
		Page:     page,
		PageSize: PageSize,
		Total:    total,
	}, nil
}
