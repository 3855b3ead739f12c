package auth

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"blog_service/internal/confirmation"
	"blog_service/internal/lib/resettoken"
	"blog_service/internal/models"
	"blog_service/internal/storage"
)

const (
	testJWTSecret   = "test-jwt-secret"
	testResetSecret = "test-reset-secret"
)

// mockUserStorage implements UserSaver and UserProvider over maps
type mockUserStorage struct {
	users         map[int64]models.User
	confirmations map[string]models.Confirmation
	refreshTokens map[string]models.RefreshToken
	nextID        int64

	failConfirmationInsert bool
}

func newMockUserStorage() *mockUserStorage {
	return &mockUserStorage{
		users:         make(map[int64]models.User),
		confirmations: make(map[string]models.Confirmation),
		refreshTokens: make(map[string]models.RefreshToken),
		nextID:        1,
	}
}

func (m *mockUserStorage) SaveUserWithConfirmation(ctx context.Context, email, username string, passHash []byte, c models.Confirmation) (int64, error) {
	for _, u := range m.users {
		if u.Email == email || u.Username == username {
			return 0, storage.ErrUserExists
		}
	}

	// обе записи появляются вместе или не появляются вовсе
	if m.failConfirmationInsert {
		return 0, errors.New("confirmation insert failed")
	}

	id := m.nextID
	m.nextID++
	m.users[id] = models.User{
		ID:        id,
		Email:     email,
		Username:  username,
		PassHash:  passHash,
		ImageFile: "default.jpg",
	}

	c.UserID = id
	m.confirmations[c.ID] = c

	return id, nil
}

func (m *mockUserStorage) UpdateUserProfile(ctx context.Context, userID int64, username, email, imageFile string) error {
	u := m.users[userID]
	u.Username = username
	u.Email = email
	if imageFile != "" {
		u.ImageFile = imageFile
	}
	m.users[userID] = u
	return nil
}

func (m *mockUserStorage) UpdateUserPassword(ctx context.Context, userID int64, passHash []byte) error {
	u, ok := m.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}
	u.PassHash = passHash
	m.users[userID] = u
	return nil
}

func (m *mockUserStorage) DeleteUser(ctx context.Context, userID int64) error {
	if _, ok := m.users[userID]; !ok {
		return storage.ErrUserNotFound
	}
	delete(m.users, userID)
	return nil
}

func (m *mockUserStorage) SaveRefreshToken(ctx context.Context, userID int64, tokenHash []byte, expiresAt time.Time) error {
	m.refreshTokens[string(tokenHash)] = models.RefreshToken{
		TokenHash: tokenHash,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (m *mockUserStorage) UpdateRefreshToken(ctx context.Context, userID int64, oldTokenHash, newTokenHash []byte, expiresAt time.Time) error {
	delete(m.refreshTokens, string(oldTokenHash))
	return m.SaveRefreshToken(ctx, userID, newTokenHash, expiresAt)
}

func (m *mockUserStorage) DeleteRefreshToken(ctx context.Context, tokenHash []byte) error {
	delete(m.refreshTokens, string(tokenHash))
	return nil
}

func (m *mockUserStorage) User(ctx context.Context, email string) (models.User, error) {
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (m *mockUserStorage) UserByID(ctx context.Context, id int64) (models.User, error) {
	u, ok := m.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}
	return u, nil
}

func (m *mockUserStorage) UserByUsername(ctx context.Context, username string) (models.User, error) {
	for _, u := range m.users {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, storage.ErrUserNotFound
}

func (m *mockUserStorage) GetRefreshToken(ctx context.Context, rawToken string) (models.RefreshToken, error) {
	for _, rt := range m.refreshTokens {
		if bcrypt.CompareHashAndPassword(rt.TokenHash, []byte(rawToken)) == nil {
			return rt, nil
		}
	}
	return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
}

// mockConfirmations implements ConfirmationProvider
type mockConfirmations struct {
	byUser map[int64]models.Confirmation
	nextID int

	lookupErr error
}

func (m *mockConfirmations) NewPending() models.Confirmation {
	m.nextID++
	return models.Confirmation{
		ID:        fmt.Sprintf("%032d", m.nextID),
		ExpiresAt: time.Now().Add(30 * time.Minute),
	}
}

func (m *mockConfirmations) MostRecent(ctx context.Context, userID int64) (models.Confirmation, error) {
	if m.lookupErr != nil {
		return models.Confirmation{}, m.lookupErr
	}
	c, ok := m.byUser[userID]
	if !ok {
		return models.Confirmation{}, confirmation.ErrNotFound
	}
	return c, nil
}

func newTestAuth(store *mockUserStorage, confirmations *mockConfirmations) *Auth {
	return New(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		store,
		store,
		confirmations,
		testJWTSecret,
		15*time.Minute,
		time.Hour,
	)
}

func TestRegisterNewUser(t *testing.T) {
	store := newMockUserStorage()
	a := newTestAuth(store, &mockConfirmations{byUser: map[int64]models.Confirmation{}})

	id, c, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.NoError(t, err)
	require.NotZero(t, id)

	// пароль хранится как bcrypt-хеш, не в открытом виде
	u := store.users[id]
	assert.NotEqual(t, "secret", string(u.PassHash))
	assert.NoError(t, bcrypt.CompareHashAndPassword(u.PassHash, []byte("secret")))

	// подтверждение сохранено вместе с пользователем и привязано к нему
	assert.Equal(t, id, c.UserID)
	assert.False(t, c.Confirmed)
	stored, ok := store.confirmations[c.ID]
	require.True(t, ok)
	assert.Equal(t, id, stored.UserID)

	_, _, err = a.RegisterNewUser(context.Background(), "u1@example.com", "other", "secret")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestRegisterNewUser_NoOrphanOnFailure(t *testing.T) {
	store := newMockUserStorage()
	store.failConfirmationInsert = true
	a := newTestAuth(store, &mockConfirmations{byUser: map[int64]models.Confirmation{}})

	_, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.Error(t, err)

	// неудавшаяся регистрация не оставляет ни пользователя, ни подтверждения
	assert.Empty(t, store.users)
	assert.Empty(t, store.confirmations)
}

func TestLogin_NotConfirmed(t *testing.T) {
	store := newMockUserStorage()
	confirmations := &mockConfirmations{byUser: map[int64]models.Confirmation{}}
	a := newTestAuth(store, confirmations)

	id, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.NoError(t, err)

	// подтверждения нет вообще
	_, _, err = a.Login(context.Background(), "u1@example.com", "secret")
	assert.ErrorIs(t, err, ErrNotConfirmed)

	// подтверждение есть, но не подтверждено
	confirmations.byUser[id] = models.Confirmation{
		ID:        "c1",
		UserID:    id,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	_, _, err = a.Login(context.Background(), "u1@example.com", "secret")
	assert.ErrorIs(t, err, ErrNotConfirmed)
}

func TestLogin_ConfirmationLookupError(t *testing.T) {
	store := newMockUserStorage()
	confirmations := &mockConfirmations{byUser: map[int64]models.Confirmation{}}
	a := newTestAuth(store, confirmations)

	_, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.NoError(t, err)

	// сбой хранилища не выдается за отсутствие подтверждения
	storeErr := errors.New("connection refused")
	confirmations.lookupErr = storeErr

	_, _, err = a.Login(context.Background(), "u1@example.com", "secret")
	assert.ErrorIs(t, err, storeErr)
	assert.NotErrorIs(t, err, ErrNotConfirmed)
}

func TestLogin_Confirmed(t *testing.T) {
	store := newMockUserStorage()
	confirmations := &mockConfirmations{byUser: map[int64]models.Confirmation{}}
	a := newTestAuth(store, confirmations)

	id, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.NoError(t, err)

	confirmations.byUser[id] = models.Confirmation{
		ID:        "c1",
		UserID:    id,
		ExpiresAt: time.Now().Add(time.Hour),
		Confirmed: true,
	}

	access, refreshToken, err := a.Login(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEmpty(t, refreshToken)
	assert.Len(t, store.refreshTokens, 1)
}

func TestLogin_InvalidCredentials(t *testing.T) {
	store := newMockUserStorage()
	confirmations := &mockConfirmations{byUser: map[int64]models.Confirmation{}}
	a := newTestAuth(store, confirmations)

	id, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.NoError(t, err)
	confirmations.byUser[id] = models.Confirmation{ID: "c1", UserID: id, Confirmed: true}

	// неверный пароль и несуществующий email неразличимы для клиента
	_, _, errWrongPass := a.Login(context.Background(), "u1@example.com", "wrong")
	_, _, errNoUser := a.Login(context.Background(), "nobody@example.com", "secret")

	assert.ErrorIs(t, errWrongPass, ErrInvalidCredentials)
	assert.ErrorIs(t, errNoUser, ErrInvalidCredentials)
}

func TestRefreshAndLogout(t *testing.T) {
	store := newMockUserStorage()
	confirmations := &mockConfirmations{byUser: map[int64]models.Confirmation{}}
	a := newTestAuth(store, confirmations)

	id, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.NoError(t, err)
	confirmations.byUser[id] = models.Confirmation{ID: "c1", UserID: id, Confirmed: true}

	_, refreshToken, err := a.Login(context.Background(), "u1@example.com", "secret")
	require.NoError(t, err)

	access, rotated, err := a.Refresh(context.Background(), refreshToken)
	require.NoError(t, err)
	assert.NotEmpty(t, access)
	assert.NotEqual(t, refreshToken, rotated)

	// старый токен отозван ротацией
	_, _, err = a.Refresh(context.Background(), refreshToken)
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	require.NoError(t, a.Logout(context.Background(), rotated))
	assert.Empty(t, store.refreshTokens)

	err = a.Logout(context.Background(), rotated)
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestUpdateProfile(t *testing.T) {
	store := newMockUserStorage()
	a := newTestAuth(store, &mockConfirmations{byUser: map[int64]models.Confirmation{}})

	id, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.NoError(t, err)

	// без картинки меняются только username и email
	require.NoError(t, a.UpdateProfile(context.Background(), id, "renamed", "renamed@example.com", nil, "", t.TempDir()))

	u := store.users[id]
	assert.Equal(t, "renamed", u.Username)
	assert.Equal(t, "renamed@example.com", u.Email)
	assert.Equal(t, "default.jpg", u.ImageFile)

	// с картинкой обновляется и ссылка на файл
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, image.NewRGBA(image.Rect(0, 0, 10, 10))))

	require.NoError(t, a.UpdateProfile(context.Background(), id, "renamed", "renamed@example.com", buf, "avatar.png", t.TempDir()))

	u = store.users[id]
	assert.NotEqual(t, "default.jpg", u.ImageFile)
	assert.True(t, strings.HasSuffix(u.ImageFile, ".png"))
}

func TestUpdateProfile_BadPictureLeavesProfileUnchanged(t *testing.T) {
	store := newMockUserStorage()
	a := newTestAuth(store, &mockConfirmations{byUser: map[int64]models.Confirmation{}})

	id, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.NoError(t, err)

	bad := strings.NewReader("definitely not an image")
	err = a.UpdateProfile(context.Background(), id, "renamed", "renamed@example.com", bad, "avatar.png", t.TempDir())
	require.Error(t, err)

	// нечитаемая картинка не оставляет наполовину обновленный профиль
	u := store.users[id]
	assert.Equal(t, "u1", u.Username)
	assert.Equal(t, "u1@example.com", u.Email)
	assert.Equal(t, "default.jpg", u.ImageFile)
}

func TestResetPassword(t *testing.T) {
	store := newMockUserStorage()
	confirmations := &mockConfirmations{byUser: map[int64]models.Confirmation{}}
	a := newTestAuth(store, confirmations)

	id, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "old-pass")
	require.NoError(t, err)
	confirmations.byUser[id] = models.Confirmation{ID: "c1", UserID: id, Confirmed: true}

	token, err := resettoken.Issue(id, 30*time.Minute, testResetSecret)
	require.NoError(t, err)

	require.NoError(t, a.ResetPassword(context.Background(), token, testResetSecret, "new-pass"))

	_, _, err = a.Login(context.Background(), "u1@example.com", "old-pass")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = a.Login(context.Background(), "u1@example.com", "new-pass")
	assert.NoError(t, err)
}

func TestResetPassword_InvalidToken(t *testing.T) {
	store := newMockUserStorage()
	a := newTestAuth(store, &mockConfirmations{byUser: map[int64]models.Confirmation{}})

	err := a.ResetPassword(context.Background(), "garbage", testResetSecret, "new-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)

	expired, err := resettoken.Issue(1, -time.Second, testResetSecret)
	require.NoError(t, err)

	err = a.ResetPassword(context.Background(), expired, testResetSecret, "new-pass")
	assert.ErrorIs(t, err, ErrInvalidResetToken)
}

func TestDeleteUser(t *testing.T) {
	store := newMockUserStorage()
	a := newTestAuth(store, &mockConfirmations{byUser: map[int64]models.Confirmation{}})

	id, _, err := a.RegisterNewUser(context.Background(), "u1@example.com", "u1", "secret")
	require.NoError(t, err)

	require.NoError(t, a.DeleteUser(context.Background(), id))

	err = a.DeleteUser(context.Background(), id)
	assert.ErrorIs(t, err, ErrUserNotFound)
}
