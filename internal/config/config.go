package config

import (
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type Config struct {
	Env        string `yaml:"env" env-default:"local"`
	BaseURL    string `yaml:"base_url" env-default:"http://localhost:8080"`
	Tokens     `yaml:"tokens"`
	Media      `yaml:"media"`
	Email      `yaml:"email"`
	RabbitMQ   `yaml:"rabbitmq"`
	Postgres   `yaml:"postgres"`
	HTTPServer `yaml:"http_server"`
}

type HTTPServer struct {
	Address     string        `yaml:"address" env-default:"localhost:8080"`
	Timeout     time.Duration `yaml:"timeout" env-default:"4s"`
	IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
}

type Postgres struct {
	Host     string `yaml:"host" env-default:"postgres"`
	Port     int    `yaml:"port" env-default:"5432"`
	User     string `yaml:"user" env-required:"true"`
	Password string `yaml:"password" env-required:"true"`
	DBName   string `yaml:"dbname" env-required:"true"`
	SSLMode  string `yaml:"sslmode" env-default:"disable"`
}

type Tokens struct {
	AccessTokenTTL   time.Duration `yaml:"access_token_ttl" env-default:"15m"`
	RefreshTokenTTL  time.Duration `yaml:"refresh_token_ttl" env-default:"720h"`
	ConfirmationTTL  time.Duration `yaml:"confirmation_ttl" env-default:"30m"`
	ResetTokenTTL    time.Duration `yaml:"reset_token_ttl" env-default:"30m"`
	ResetTokenSecret string        `yaml:"reset_token_secret" env-required:"true"`
	JWTSecret        string        `yaml:"jwt_secret" env-required:"true"`
}

type Media struct {
	ProfilePicsDir string `yaml:"profile_pics_dir" env-default:"./static/profile_pics"`
	MaxUploadSize  int64  `yaml:"max_upload_size" env-default:"5242880"`
}

type Email struct {
	Host     string `yaml:"host" env-default:"localhost"`
	Port     int    `yaml:"port" env-default:"587"`
	Username string `yaml:"username" env:"EMAIL_USERNAME"`
	Password string `yaml:"password" env:"EMAIL_PASSWORD"`
}

type RabbitMQ struct {
	URL       string `yaml:"url" env-required:"true"`
	QueueName string `yaml:"queue_name" env-required:"true"`
}

func MustLoad(configPath string) *Config {
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		panic("Config file does not exist" + configPath)
	}

	var cfg Config

	if err := cleanenv.ReadConfig(configPath, &cfg); err != nil {
		panic("Failed to read config" + err.Error())
	}

	return &cfg
}
