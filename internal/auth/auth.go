package auth

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"blog_service/internal/confirmation"
	"blog_service/internal/lib/jwt"
	sl "blog_service/internal/lib/logger"
	"blog_service/internal/lib/picture"
	"blog_service/internal/lib/resettoken"
	"blog_service/internal/models"
	"blog_service/internal/storage"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("user already exists")
	ErrUserNotFound       = errors.New("user not found")
	ErrNotConfirmed       = errors.New("email not confirmed")
	ErrInvalidResetToken  = errors.New("invalid or expired reset token")
)

type Auth struct {
	log           *slog.Logger
	usrSaver      UserSaver
	usrProvider   UserProvider
	confirmations ConfirmationProvider
	jwtSecret     string
	tokenTTL      time.Duration
	refreshTTL    time.Duration
}

type UserSaver interface {
	SaveUserWithConfirmation(ctx context.Context, email string, username string, passHash []byte, c models.Confirmation) (uid int64, err error)
	UpdateUserProfile(ctx context.Context, userID int64, username, email, imageFile string) error
	UpdateUserPassword(ctx context.Context, userID int64, passHash []byte) error
	DeleteUser(ctx context.Context, userID int64) error

	SaveRefreshToken(ctx context.Context, userID int64, tokenHash []byte, expiresAt time.Time) error
	UpdateRefreshToken(ctx context.Context, userID int64, oldTokenHash, newTokenHash []byte, expiresAt time.Time) error
	DeleteRefreshToken(ctx context.Context, tokenHash []byte) error
}

type UserProvider interface {
	User(ctx context.Context, email string) (models.User, error)
	UserByID(ctx context.Context, id int64) (models.User, error)
	UserByUsername(ctx context.Context, username string) (models.User, error)
	GetRefreshToken(ctx context.Context, rawToken string) (models.RefreshToken, error)
}

type ConfirmationProvider interface {
	NewPending() models.Confirmation
	MostRecent(ctx context.Context, userID int64) (models.Confirmation, error)
}

func New(
	log *slog.Logger,
	userSaver UserSaver,
	userProvider UserProvider,
	confirmations ConfirmationProvider,
	jwtSecret string,
	tokenTTL, refreshTTL time.Duration,
) *Auth {
	return &Auth{
		usrSaver:      userSaver,
		usrProvider:   userProvider,
		confirmations: confirmations,
		log:           log,
		jwtSecret:     jwtSecret,
		tokenTTL:      tokenTTL,
		refreshTTL:    refreshTTL,
	}
}

// * Login проверяет учетные данные, убеждается, что последнее подтверждение
// пользователя имеет статус Confirmed, и возвращает JWT и refresh token.
func (a *Auth) Login(
	ctx context.Context,
	email, password string,
) (accessToken string, refreshToken string, err error) {
	const op = "Auth.Login"

	log := a.log.With(slog.String("op", op))

	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			log.Warn("user not found")
			// не раскрываем, существует ли аккаунт
			return "", "", ErrInvalidCredentials
		}

		log.Error("failed to get user", sl.Err(err))
		return "", "", err
	}

	if err := bcrypt.CompareHashAndPassword(user.PassHash, []byte(password)); err != nil {
		log.Info("invalid credentials", sl.Err(err))
		return "", "", ErrInvalidCredentials
	}

	c, err := a.confirmations.MostRecent(ctx, user.ID)
	if err != nil && !errors.Is(err, confirmation.ErrNotFound) {
		log.Error("failed to check confirmation", sl.Err(err))
		return "", "", err
	}

	if err != nil || !c.Confirmed {
		log.Info("login blocked: email not confirmed", slog.Int64("uid", user.ID))
		return "", "", ErrNotConfirmed
	}

	accessToken, err = jwt.NewToken(user, a.jwtSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", "", err
	}

	refreshTokenValue, err := jwt.NewRefreshToken()
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return "", "", err
	}

	refreshHash, err := bcrypt.GenerateFromPassword([]byte(refreshTokenValue), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash refresh token", sl.Err(err))
		return "", "", err
	}

	err = a.usrSaver.SaveRefreshToken(ctx, user.ID, refreshHash, time.Now().Add(a.refreshTTL))
	if err != nil {
		log.Error("failed to save refresh token", sl.Err(err))
		return "", "", err
	}

	log.Info("user logged in successfully", slog.Int64("uid", user.ID))
	return accessToken, refreshTokenValue, nil
}

// * RegisterNewUser создает пользователя вместе с его первым подтверждением.
// Обе записи пишутся одной транзакцией: не бывает пользователя, которому
// нечего подтверждать, и подтверждения без пользователя.
func (a *Auth) RegisterNewUser(
	ctx context.Context,
	email string,
	username string,
	pass string,
) (int64, models.Confirmation, error) {
	const op = "auth.registerNewUser"

	log := a.log.With(
		slog.String("op", op),
	)

	log.Info("Registering new user")

	passHash, err := bcrypt.GenerateFromPassword([]byte(pass), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return 0, models.Confirmation{}, fmt.Errorf("%s: %w", op, err)
	}

	c := a.confirmations.NewPending()

	id, err := a.usrSaver.SaveUserWithConfirmation(ctx, email, username, passHash, c)
	if err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			log.Warn("User already exists")

			return 0, models.Confirmation{}, fmt.Errorf("%s: %w", op, ErrUserExists)
		}

		log.Error("Failed to save user", sl.Err(err))

		return 0, models.Confirmation{}, fmt.Errorf("%s: %w", op, err)
	}

	c.UserID = id

	return id, c, nil
}

func (a *Auth) Refresh(
	ctx context.Context,
	refreshToken string,
) (string, string, error) {
	const op = "auth.refresh"

	log := a.log.With(
		slog.String("op", op),
	)

	rt, err := a.usrProvider.GetRefreshToken(ctx, refreshToken)
	if err != nil {
		log.Warn("refresh token not found", sl.Err(err))
		return "", "", ErrInvalidCredentials
	}

	if time.Now().After(rt.ExpiresAt) {
		log.Warn("refresh token expired")

		return "", "", ErrInvalidCredentials
	}

	user, err := a.usrProvider.UserByID(ctx, rt.UserID)
	if err != nil {
		log.Error("failed to load user", sl.Err(err))
		return "", "", ErrInvalidCredentials
	}

	accessToken, err := jwt.NewToken(user, a.jwtSecret, a.tokenTTL)
	if err != nil {
		log.Error("failed to generate access token", sl.Err(err))
		return "", "", err
	}

	newRefresh, err := jwt.NewRefreshToken()
	if err != nil {
		log.Error("failed to generate refresh token", sl.Err(err))
		return "", "", err
	}

	newHash, err := bcrypt.GenerateFromPassword([]byte(newRefresh), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to hash new refresh token", sl.Err(err))
		return "", "", err
	}

	err = a.usrSaver.UpdateRefreshToken(
		ctx,
		rt.UserID,
		rt.TokenHash,
		newHash,
		time.Now().Add(a.refreshTTL),
	)
	if err != nil {
		log.Error("failed to update refresh token", sl.Err(err))
		return "", "", err
	}

	log.Info("refresh successful", slog.Int64("uid", user.ID))

	return accessToken, newRefresh, nil
}

func (a *Auth) Logout(
	ctx context.Context,
	rawRefreshToken string,
) error {
	const op = "auth.Logout"

	log := a.log.With(
		slog.String("op", op),
	)

	rt, err := a.usrProvider.GetRefreshToken(ctx, rawRefreshToken)
	if err != nil {
		log.Warn("refresh token not found", slog.Any("err", err))
		return ErrInvalidCredentials
	}

	err = a.usrSaver.DeleteRefreshToken(ctx, rt.TokenHash)
	if err != nil {
		log.Error("failed to delete refresh token", slog.Any("err", err))
		return err
	}

	log.Info("logout successful")

	return nil
}

func (a *Auth) UserByID(ctx context.Context, id int64) (models.User, error) {
	user, err := a.usrProvider.UserByID(ctx, id)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}

		return models.User{}, err
	}

	return user, nil
}

func (a *Auth) UserByEmail(ctx context.Context, email string) (models.User, error) {
	user, err := a.usrProvider.User(ctx, email)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}

		return models.User{}, err
	}

	return user, nil
}

func (a *Auth) UserByUsername(ctx context.Context, username string) (models.User, error) {
	user, err := a.usrProvider.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return models.User{}, ErrUserNotFound
		}

		return models.User{}, err
	}

	return user, nil
}

// UpdateProfile меняет username и email; загруженная картинка уменьшается
// до миниатюры и сохраняется под новым именем.
// Картинка обрабатывается до записи в базу: запрос с нечитаемым файлом
// не оставляет после себя наполовину обновленный профиль.
func (a *Auth) UpdateProfile(
	ctx context.Context,
	userID int64,
	username, email string,
	pictureFile io.Reader,
	pictureName, picturesDir string,
) error {
	const op = "auth.UpdateProfile"

	log := a.log.With(
		slog.String("op", op),
	)

	var filename string

	if pictureFile != nil {
		var err error

		filename, err = picture.Save(pictureFile, pictureName, picturesDir)
		if err != nil {
			log.Error("failed to save picture", sl.Err(err))

			return fmt.Errorf("%s: %w", op, err)
		}
	}

	if err := a.usrSaver.UpdateUserProfile(ctx, userID, username, email, filename); err != nil {
		if errors.Is(err, storage.ErrUserExists) {
			return ErrUserExists
		}

		log.Error("failed to update profile", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("profile updated", slog.Int64("uid", userID))

	return nil
}

// ResetPassword проверяет подписанный reset-токен и устанавливает новый пароль.
func (a *Auth) ResetPassword(
	ctx context.Context,
	token, tokenSecret, newPassword string,
) error {
	const op = "auth.ResetPassword"

	log := a.log.With(
		slog.String("op", op),
	)

	userID, ok := resettoken.Verify(token, tokenSecret)
	if !ok {
		log.Warn("invalid reset token")

		return ErrInvalidResetToken
	}

	passHash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		log.Error("failed to generate password hash", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.usrSaver.UpdateUserPassword(ctx, userID, passHash); err != nil {
		log.Error("failed to update password", sl.Err(err))
		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("password reset", slog.Int64("uid", userID))

	return nil
}

// DeleteUser удаляет посты пользователя, затем самого пользователя.
func (a *Auth) DeleteUser(ctx context.Context, userID int64) error {
	const op = "auth.DeleteUser"

	log := a.log.With(
		slog.String("op", op),
	)

	if err := a.usrSaver.DeleteUser(ctx, userID); err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return ErrUserNotFound
		}

		log.Error("failed to delete user", sl.Err(err))

		return fmt.Errorf("%s: %w", op, err)
	}

	log.Info("user deleted", slog.Int64("uid", userID))

	return nil
}
