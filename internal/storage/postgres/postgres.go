package postgres

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"blog_service/internal/config"
	"blog_service/internal/models"
	"blog_service/internal/storage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver for migrations
	"github.com/pressly/goose/v3"
	"golang.org/x/crypto/bcrypt"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type PostgresRepo struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, cfg *config.Config) (*PostgresRepo, error) {
	const op = "storage.postgres.New"

	dsn := dsn(cfg)

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to parse config: %w", op, err)
	}

	poolConfig.MaxConns = 10
	poolConfig.MinConns = 2
	poolConfig.MaxConnLifetime = time.Hour
	poolConfig.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to create pool: %w", op, err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to ping database: %w", op, err)
	}

	if err := runMigrations(dsn); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%s: failed to run migrations: %w", op, err)
	}

	return &PostgresRepo{pool: pool}, nil
}

func runMigrations(dsn string) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return err
	}
	defer db.Close()

	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return err
	}

	return goose.Up(db, "migrations")
}

// * SaveUserWithConfirmation создает пользователя и его подтверждение в одной
// транзакции: либо появляются оба, либо ни одного. Осиротевший пользователь
// без подтверждения никогда не смог бы залогиниться.
func (r *PostgresRepo) SaveUserWithConfirmation(
	ctx context.Context,
	email, username string,
	passHash []byte,
	c models.Confirmation,
) (int64, error) {
	const op = "storage.postgres.SaveUserWithConfirmation"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	var id int64

	err = tx.QueryRow(ctx, `
		INSERT INTO users (email, username, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id;
	`, email, username, string(passHash)).Scan(&id)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return 0, storage.ErrUserExists
		}

		return 0, fmt.Errorf("%s: failed to save user: %w", op, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO confirmations (id, expires_at, confirmed, user_id)
		VALUES ($1, $2, $3, $4)
	`, c.ID, c.ExpiresAt, c.Confirmed, id)
	if err != nil {
		return 0, fmt.Errorf("%s: failed to save confirmation: %w", op, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return id, nil
}

func (r *PostgresRepo) User(ctx context.Context, email string) (models.User, error) {
	query := `
		SELECT id, email, username, password_hash, image_file
		FROM users
		WHERE email = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepo) UserByID(ctx context.Context, id int64) (models.User, error) {
	query := `
		SELECT id, email, username, password_hash, image_file
		FROM users
		WHERE id = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) UserByUsername(ctx context.Context, username string) (models.User, error) {
	query := `
		SELECT id, email, username, password_hash, image_file
		FROM users
		WHERE username = $1;
	`

	return r.scanUser(r.pool.QueryRow(ctx, query, username))
}

func (r *PostgresRepo) scanUser(row pgx.Row) (models.User, error) {
	var u models.User
	err := row.Scan(
		&u.ID,
		&u.Email,
		&u.Username,
		&u.PassHash,
		&u.ImageFile,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, storage.ErrUserNotFound
		}

		return models.User{}, err
	}

	return u, nil
}

// UpdateUserProfile одним запросом меняет username, email и, если imageFile
// не пуст, ссылку на картинку. Частичного обновления профиля не бывает.
func (r *PostgresRepo) UpdateUserProfile(ctx context.Context, userID int64, username, email, imageFile string) error {
	const op = "storage.postgres.UpdateUserProfile"

	query := `
		UPDATE users
		SET username = $1,
		    email = $2,
		    image_file = COALESCE(NULLIF($3, ''), image_file)
		WHERE id = $4
	`

	_, err := r.pool.Exec(ctx, query, username, email, imageFile, userID)
	if err != nil {
		if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
			return storage.ErrUserExists
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	return nil
}

func (r *PostgresRepo) UpdateUserPassword(ctx context.Context, userID int64, passHash []byte) error {
	query := `UPDATE users SET password_hash = $1 WHERE id = $2`

	_, err := r.pool.Exec(ctx, query, string(passHash), userID)

	return err
}

// * DeleteUser удаляет посты пользователя и самого пользователя в одной транзакции.
// Подтверждения и refresh-токены удаляются каскадно.
func (r *PostgresRepo) DeleteUser(ctx context.Context, userID int64) error {
	const op = "storage.postgres.DeleteUser"

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM posts WHERE user_id = $1`, userID); err != nil {
		return fmt.Errorf("%s: failed to delete posts: %w", op, err)
	}

	tag, err := tx.Exec(ctx, `DELETE FROM users WHERE id = $1`, userID)
	if err != nil {
		return fmt.Errorf("%s: failed to delete user: %w", op, err)
	}

	if tag.RowsAffected() == 0 {
		return storage.ErrUserNotFound
	}

	return tx.Commit(ctx)
}

func (r *PostgresRepo) Confirmation(ctx context.Context, id string) (models.Confirmation, error) {
	query := `
		SELECT id, expires_at, confirmed, user_id
		FROM confirmations
		WHERE id = $1;
	`

	return r.scanConfirmation(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepo) MostRecentConfirmation(ctx context.Context, userID int64) (models.Confirmation, error) {
	query := `
		SELECT id, expires_at, confirmed, user_id
		FROM confirmations
		WHERE user_id = $1
		ORDER BY expires_at DESC
		LIMIT 1;
	`

	return r.scanConfirmation(r.pool.QueryRow(ctx, query, userID))
}

func (r *PostgresRepo) scanConfirmation(row pgx.Row) (models.Confirmation, error) {
	var c models.Confirmation
	err := row.Scan(&c.ID, &c.ExpiresAt, &c.Confirmed, &c.UserID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Confirmation{}, storage.ErrConfirmationNotFound
		}

		return models.Confirmation{}, err
	}

	return c, nil
}

func (r *PostgresRepo) SetConfirmed(ctx context.Context, id string) error {
	query := `UPDATE confirmations SET confirmed = TRUE WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)

	return err
}

func (r *PostgresRepo) SetConfirmationExpiry(ctx context.Context, id string, expiresAt time.Time) error {
	query := `UPDATE confirmations SET expires_at = $1 WHERE id = $2`

	_, err := r.pool.Exec(ctx, query, expiresAt, id)

	return err
}

func (r *PostgresRepo) SavePost(ctx context.Context, title, content string, userID int64) (models.Post, error) {
	const op = "storage.postgres.SavePost"

	query := `
		INSERT INTO posts (title, content, user_id)
		VALUES ($1, $2, $3)
		RETURNING id, created_at;
	`

	p := models.Post{
		Title:   title,
		Content: content,
		UserID:  userID,
	}

	err := r.pool.QueryRow(ctx, query, title, content, userID).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		return models.Post{}, fmt.Errorf("%s: %w", op, err)
	}

	return p, nil
}

func (r *PostgresRepo) Post(ctx context.Context, id int64) (models.Post, error) {
	query := `
		SELECT id, title, content, created_at, user_id
		FROM posts
		WHERE id = $1;
	`

	var p models.Post
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Title,
		&p.Content,
		&p.CreatedAt,
		&p.UserID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Post{}, storage.ErrPostNotFound
		}

		return models.Post{}, err
	}

	return p, nil
}

func (r *PostgresRepo) UpdatePost(ctx context.Context, id int64, title, content string) error {
	query := `UPDATE posts SET title = $1, content = $2 WHERE id = $3`

	_, err := r.pool.Exec(ctx, query, title, content, id)

	return err
}

func (r *PostgresRepo) DeletePost(ctx context.Context, id int64) error {
	query := `DELETE FROM posts WHERE id = $1`

	_, err := r.pool.Exec(ctx, query, id)

	return err
}

func (r *PostgresRepo) PostsByUser(ctx context.Context, userID int64, limit, offset int) ([]models.Post, error) {
	const op = "storage.postgres.PostsByUser"

	query := `
		SELECT id, title, content, created_at, user_id
		FROM posts
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3;
	`

	rows, err := r.pool.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var posts []models.Post

	for rows.Next() {
		var p models.Post
		if err := rows.Scan(&p.ID, &p.Title, &p.Content, &p.CreatedAt, &p.UserID); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}

		posts = append(posts, p)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("%s: %w", op, rows.Err())
	}

	return posts, nil
}

func (r *PostgresRepo) CountPostsByUser(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM posts WHERE user_id = $1`

	var total int
	err := r.pool.QueryRow(ctx, query, userID).Scan(&total)

	return total, err
}

func (r *PostgresRepo) SaveRefreshToken(
	ctx context.Context,
	userID int64,
	tokenHash []byte,
	expiresAt time.Time,
) error {
	const query = `
		INSERT INTO refresh_tokens (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
	`

	_, err := r.pool.Exec(ctx, query, userID, tokenHash, expiresAt)
	return err
}

func (r *PostgresRepo) UpdateRefreshToken(
	ctx context.Context,
	userID int64,
	oldTokenHash []byte,
	newTokenHash []byte,
	expiresAt time.Time,
) error {
	const query = `
		UPDATE refresh_tokens
		SET token_hash = $1, expires_at = $2
		WHERE user_id = $3 AND token_hash = $4
	`

	_, err := r.pool.Exec(ctx, query, newTokenHash, expiresAt, userID, oldTokenHash)
	return err
}

func (r *PostgresRepo) GetRefreshToken(ctx context.Context, rawToken string) (models.RefreshToken, error) {
	const query = `
		SELECT user_id, token_hash, expires_at
		FROM refresh_tokens
		WHERE expires_at > NOW();
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return models.RefreshToken{}, err
	}
	defer rows.Close()

	for rows.Next() {
		var rt models.RefreshToken

		err := rows.Scan(&rt.UserID, &rt.TokenHash, &rt.ExpiresAt)
		if err != nil {
			return models.RefreshToken{}, err
		}

		if bcrypt.CompareHashAndPassword(rt.TokenHash, []byte(rawToken)) == nil {
			return rt, nil
		}
	}
	if rows.Err() != nil {
		return models.RefreshToken{}, rows.Err()
	}

	return models.RefreshToken{}, storage.ErrRefreshTokenNotFound
}

func (r *PostgresRepo) DeleteRefreshToken(ctx context.Context, tokenHash []byte) error {
	query := `DELETE FROM refresh_tokens WHERE token_hash = $1`

	_, err := r.pool.Exec(ctx, query, tokenHash)

	return err
}

func (r *PostgresRepo) Close() {
	r.pool.Close()
}

// * dsn формирует конфигурацию базы данных.
func dsn(cfg *config.Config) string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s database=%s sslmode=%s",
		cfg.Postgres.Host,
		cfg.Postgres.Port,
		cfg.Postgres.User,
		cfg.Postgres.Password,
		cfg.Postgres.DBName,
		cfg.Postgres.SSLMode,
	)
}
