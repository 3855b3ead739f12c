package resettoken

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"blog_service/internal/models"

	"github.com/golang-jwt/jwt/v5"
)

const purposePasswordReset = "password_reset"

type Publisher interface {
	SendMessage(ctx context.Context, msg models.Message) error
}

// SendResetEmail выпускает reset-токен и публикует письмо со ссылкой.
// Ошибка публикации логируется, но не отменяет запрос.
func SendResetEmail(
	ctx context.Context,
	log *slog.Logger,
	pub Publisher,
	tokenTTL time.Duration,
	tokenSecret string,
	userID int64,
	baseURL, email string,
) error {
	token, err := Issue(userID, tokenTTL, tokenSecret)
	if err != nil {
		log.Error("failed to generate reset token", slog.Any("err", err))

		return err
	}

	resetLink := fmt.Sprintf("%s/reset_password/%s", baseURL, token)

	msg := models.Message{
		Email:   email,
		Link:    resetLink,
		Purpose: purposePasswordReset,
	}

	if err := pub.SendMessage(ctx, msg); err != nil {
		log.Error("failed to send reset link", slog.Any("err", err))
	}

	return nil
}

// Issue выпускает подписанный токен, содержащий id пользователя и срок действия.
func Issue(userID int64, tokenTTL time.Duration, secret string) (string, error) {
	claims := jwt.MapClaims{
		"sub":     userID,
		"purpose": purposePasswordReset,
		"exp":     time.Now().Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	return token.SignedString([]byte(secret))
}

// Verify проверяет подпись и срок действия токена. Любой некорректный,
// подделанный или просроченный токен дает ok == false без различия причин.
func Verify(tokenStr, secret string) (int64, bool) {
	claims := jwt.MapClaims{}

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{"HS256"}),
		jwt.WithStrictDecoding(),
	)

	parsedToken, err := parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	})
	if err != nil || !parsedToken.Valid {
		return 0, false
	}

	if purpose, ok := claims["purpose"].(string); !ok || purpose != purposePasswordReset {
		return 0, false
	}

	expFloat, ok := claims["exp"].(float64)
	if !ok || time.Now().Unix() > int64(expFloat) {
		return 0, false
	}

	subFloat, ok := claims["sub"].(float64)
	if !ok {
		return 0, false
	}

	return int64(subFloat), true
}
