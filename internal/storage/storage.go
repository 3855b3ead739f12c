package storage

import "errors"

var (
	ErrUserExists           = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrPostNotFound         = errors.New("post not found")
	ErrConfirmationNotFound = errors.New("confirmation not found")
	ErrRefreshTokenNotFound = errors.New("refresh token not found")
)
