package config

import (
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/spf13/viper"
)

var (
	ErrMissingDatabaseURL  = errors.New("DATABASE_URL is required")
	ErrInvalidDatabaseURL  = errors.New("DATABASE_URL must be a postgres:// or postgresql:// url with a host")
	ErrMissingPublicAPIKey = errors.New("PUBLIC_API_KEY is required")
	ErrInvalidStorageURL   = errors.New("STORAGE_PUBLIC_URL must be an https url")
	ErrWeakJWTSecret       = errors.New("JWT_SECRET must be at least 32 characters")
)

type Storage struct {
	AccountID string
	AccessKey string
	SecretKey string
	Endpoint  string
	PublicURL string
}

type Mail struct {
	SendGridAPIKey string
	From           string
	FromName       string
}

type Config struct {
	AppEnv       string
	Port         string
	LogLevel     string
	DatabaseURL  string
	PublicAPIKey string
	RedisURI     string
	FrontendURL  string
	APIURL       string
	JWTSecret    string
	CookieName   string
	SessionTTL   time.Duration
	SignInRate   float64
	SignInBurst  int
	Storage      Storage
	Mail         Mail
}

func newViper() *viper.Viper {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("APP_ENV", "dev")
	v.SetDefault("PORT", "8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("REDIS_URI", "localhost:6379")
	v.SetDefault("FRONTEND_URL", "http://localhost:8081")
	v.SetDefault("API_URL", "http://localhost:8080")
	v.SetDefault("COOKIE_NAME", "postreview_session")
	v.SetDefault("SESSION_TTL", "12h")
	v.SetDefault("SIGN_IN_RATE", 0.2)
	v.SetDefault("SIGN_IN_BURST", 5)
	v.SetDefault("MAIL_FROM_NAME", "Aprovação de Posts")
	return v
}

// LoadConfig reads the environment (populated from .env by the caller) and
// fails fast when the backend url or public key is missing or malformed.
func LoadConfig() (*Config, error) {
	v := newViper()

	cfg := &Config{
		AppEnv:       v.GetString("APP_ENV"),
		Port:         v.GetString("PORT"),
		LogLevel:     v.GetString("LOG_LEVEL"),
		DatabaseURL:  v.GetString("DATABASE_URL"),
		PublicAPIKey: v.GetString("PUBLIC_API_KEY"),
		RedisURI:     v.GetString("REDIS_URI"),
		FrontendURL:  v.GetString("FRONTEND_URL"),
		APIURL:       v.GetString("API_URL"),
		JWTSecret:    v.GetString("JWT_SECRET"),
		CookieName:   v.GetString("COOKIE_NAME"),
		SessionTTL:   v.GetDuration("SESSION_TTL"),
		SignInRate:   v.GetFloat64("SIGN_IN_RATE"),
		SignInBurst:  v.GetInt("SIGN_IN_BURST"),
		Storage: Storage{
			AccountID: v.GetString("R2_ACCOUNT_ID"),
			AccessKey: v.GetString("R2_ACCESS_KEY"),
			SecretKey: v.GetString("R2_SECRET_KEY"),
			Endpoint:  v.GetString("STORAGE_ENDPOINT"),
			PublicURL: v.GetString("STORAGE_PUBLIC_URL"),
		},
		Mail: Mail{
			SendGridAPIKey: v.GetString("SENDGRID_API_KEY"),
			From:           v.GetString("MAIL_FROM"),
			FromName:       v.GetString("MAIL_FROM_NAME"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDatabaseURL is used by tools that only need the database connection.
func LoadDatabaseURL() (string, error) {
	dsn := newViper().GetString("DATABASE_URL")
	if err := validateDatabaseURL(dsn); err != nil {
		return "", err
	}
	return dsn, nil
}

func (c *Config) Validate() error {
	if err := validateDatabaseURL(c.DatabaseURL); err != nil {
		return err
	}
	if c.PublicAPIKey == "" {
		return ErrMissingPublicAPIKey
	}
	if len(c.JWTSecret) < 32 {
		return ErrWeakJWTSecret
	}

	u, err := url.Parse(c.Storage.PublicURL)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidStorageURL, c.Storage.PublicURL)
	}

	if c.SessionTTL <= 0 {
		c.SessionTTL = 12 * time.Hour
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.AppEnv == "prod" || c.AppEnv == "production"
}

func validateDatabaseURL(dsn string) error {
	if dsn == "" {
		return ErrMissingDatabaseURL
	}
	u, err := url.Parse(dsn)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDatabaseURL, err)
	}
	if (u.Scheme != "postgres" && u.Scheme != "postgresql") || u.Host == "" {
		return ErrInvalidDatabaseURL
	}
	return nil
}
