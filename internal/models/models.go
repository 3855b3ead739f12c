package models

import "time"

type User struct {
	ID        int64
	Email     string
	Username  string
	PassHash  []byte
	ImageFile string
}

type Post struct {
	ID        int64
	Title     string
	Content   string
	CreatedAt time.Time
	UserID    int64
}

type Confirmation struct {
	ID        string
	UserID    int64
	ExpiresAt time.Time
	Confirmed bool
}

// * Expired сообщает, истек ли срок действия подтверждения
func (c *Confirmation) Expired() bool {
	return time.Now().After(c.ExpiresAt)
}

type RefreshToken struct {
	TokenHash []byte
	UserID    int64
	ExpiresAt time.Time
}

type Message struct {
	Email   string `json:"to"`
	Link    string `json:"link"`
	Purpose string `json:"purpose"`
}
