package internal

import (
	"fmt"
	"log/slog"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"golang.org/x/crypto/bcrypt"
)

// minSecretBytes is the shortest session secret accepted for HMAC signing.
const minSecretBytes = 32

// Config represents the application configuration.
type Config struct {
	App   ApplicationConfig `yaml:"app"`
	Auth  AuthConfig        `yaml:"auth"`
	Watch WatchConfig       `yaml:"watch"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	return c.Auth.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthConfig holds session and password hashing settings.
//
// SessionSecret signs the session cookie and must be at least 32 bytes.
// CookieMaxAge is in seconds; 0 makes the cookie last for the browser session.
type AuthConfig struct {
	SessionSecret string `yaml:"session_secret"`
	CookieName    string `yaml:"cookie_name"`
	CookieMaxAge  int    `yaml:"cookie_max_age"`
	CookieSecure  bool   `yaml:"cookie_secure"`
	BcryptCost    int    `yaml:"bcrypt_cost"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.SessionSecret, validation.Required, validation.Length(minSecretBytes, 0)),
		validation.Field(&c.CookieName, validation.Required),
		validation.Field(&c.CookieMaxAge, validation.Min(0)),
		validation.Field(&c.BcryptCost, validation.Required, validation.Min(bcrypt.MinCost), validation.Max(bcrypt.MaxCost)),
	)
}

// WatchConfig controls hot reloading of the config file.
type WatchConfig struct {
	Enabled bool `yaml:"enabled"`
}

// NewDefaultConfig returns a new Config with sensible default values.
// SessionSecret has no default and must come from the config file or environment.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Auth: AuthConfig{
			CookieName:   "jotter_session",
			CookieMaxAge: 86400,
			BcryptCost:   bcrypt.DefaultCost,
		},
		Watch: WatchConfig{
			Enabled: true,
		},
	}
}
