package confirmation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	sl "blog_service/internal/lib/logger"
	"blog_service/internal/models"
	"blog_service/internal/storage"

	"github.com/google/uuid"
)

var (
	ErrNotFound         = errors.New("confirmation not found")
	ErrExpired          = errors.New("confirmation link expired")
	ErrAlreadyConfirmed = errors.New("confirmation already confirmed")
)

type Store interface {
	Confirmation(ctx context.Context, id string) (models.Confirmation, error)
	MostRecentConfirmation(ctx context.Context, userID int64) (models.Confirmation, error)
	SetConfirmed(ctx context.Context, id string) error
	SetConfirmationExpiry(ctx context.Context, id string, expiresAt time.Time) error
}

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

type Service struct {
	log   *slog.Logger
	store Store
	ttl   time.Duration
}

func New(log *slog.Logger, store Store, ttl time.Duration) *Service {
	return &Service{
		log:   log,
		store: store,
		ttl:   ttl,
	}
}

// NewPending выпускает новое подтверждение: случайный 128-битный
// hex-идентификатор, срок действия now + ttl, confirmed = false.
// Запись не сохраняется здесь: она попадает в базу одной транзакцией
// с пользователем, которому принадлежит.
func (s *Service) NewPending() models.Confirmation {
	return models.Confirmation{
		ID:        strings.ReplaceAll(uuid.New().String(), "-", ""),
		ExpiresAt: time.Now().Add(s.ttl),
		Confirmed: false,
	}
}

func (s *Service) Find(ctx context.Context, id string) (models.Confirmation, error) {
	c, err := s.store.Confirmation(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrConfirmationNotFound) {
			return models.Confirmation{}, ErrNotFound
		}

		return models.Confirmation{}, err
	}

	return c, nil
}

// MostRecent возвращает подтверждение пользователя с максимальным expires_at.
func (s *Service) MostRecent(ctx context.Context, userID int64) (models.Confirmation, error) {
	c, err := s.store.MostRecentConfirmation(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrConfirmationNotFound) {
			return models.Confirmation{}, ErrNotFound
		}

		return models.Confirmation{}, err
	}

	return c, nil
}

// Confirm переводит подтверждение из Pending в Confirmed.
// Confirmed и Expired — терминальные состояния: повторное подтверждение
// и подтверждение просроченной записи отклоняются.
func (s *Service) Confirm(ctx context.Context, id string) (models.Confirmation, error) {
	const op = "confirmation.Confirm"

	c, err := s.Find(ctx, id)
	if err != nil {
		return models.Confirmation{}, err
	}

	if c.Expired() {
		return models.Confirmation{}, ErrExpired
	}

	if c.Confirmed {
		return models.Confirmation{}, ErrAlreadyConfirmed
	}

	if err := s.store.SetConfirmed(ctx, c.ID); err != nil {
		s.log.Error("failed to mark confirmation", sl.Err(err))

		return models.Confirmation{}, fmt.Errorf("%s: %w", op, err)
	}

	c.Confirmed = true

	return c, nil
}

// ForceExpire немедленно обесценивает подтверждение, не удаляя его.
// Идемпотентна: просроченные и подтвержденные записи не меняются.
func (s *Service) ForceExpire(ctx context.Context, c models.Confirmation) error {
	const op = "confirmation.ForceExpire"

	if c.Expired() || c.Confirmed {
		return nil
	}

	if err := s.store.SetConfirmationExpiry(ctx, c.ID, time.Now()); err != nil {
		s.log.Error("failed to expire confirmation", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

// SendConfirmationEmail публикует письмо со ссылкой на подтверждение.
// Ошибка публикации логируется, но пользователь и подтверждение уже созданы
// и не откатываются.
func SendConfirmationEmail(
	ctx context.Context,
	log *slog.Logger,
	pub Publisher,
	baseURL, email, confirmationID string,
) {
	link := fmt.Sprintf("%s/confirmation/%s", baseURL, confirmationID)

	msg := models.Message{
		Email:   email,
		Link:    link,
		Purpose: "registration_confirmation",
	}

	if err := pub.SendMessage(ctx, msg); err != nil {
		log.Error("failed to send confirmation link", sl.Err(err))
	}
}
