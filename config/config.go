package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Store backends understood by the repository factory.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

const defaultMaxBodyBytes int64 = 1 << 20

// Config aggregates every setting of the service.
type Config struct {
	Server   ServerConfig
	Store    StoreConfig
	LogLevel string
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
	MaxBodyBytes   int64
}

// StoreConfig selects and configures the persisted document.
type StoreConfig struct {
	Backend    string
	DataFile   string
	SQLitePath string
	// DSN is the postgres connection string.
	DSN string
	// Key names the row holding the collection in the SQL backends.
	Key string
}

// Load reads the configuration from environment variables.
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	store, err := loadStoreConfig()
	if err != nil {
		return nil, err
	}

	return &Config{
		Server:   server,
		Store:    store,
		LogLevel: env("LOG_LEVEL", "info"),
	}, nil
}

func loadServerConfig() (ServerConfig, error) {
	addr, err := ParseAddr(env("PORT", "3000"))
	if err != nil {
		return ServerConfig{}, err
	}

	maxBody := defaultMaxBodyBytes
	if raw := env("MAX_BODY_BYTES", ""); raw != "" {
		maxBody, err = strconv.ParseInt(raw, 10, 64)
		if err != nil || maxBody <= 0 {
			return ServerConfig{}, fmt.Errorf("invalid MAX_BODY_BYTES value: %q", raw)
		}
	}

	var origins []string
	for _, o := range strings.Split(env("ALLOWED_ORIGINS", "*"), ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}

	return ServerConfig{Addr: addr, AllowedOrigins: origins, MaxBodyBytes: maxBody}, nil
}

// ParseAddr turns a PORT value into a listen address. It accepts a bare port
// ("3000") as well as ":3000" or "127.0.0.1:3000".
func ParseAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" || strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	if strings.Contains(port, ":") {
		return port, nil
	}
	if _, err := strconv.ParseUint(port, 10, 16); err != nil {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}
	return ":" + port, nil
}

func loadStoreConfig() (StoreConfig, error) {
	cfg := StoreConfig{
		Backend:    strings.ToLower(env("STORE_BACKEND", BackendFile)),
		DataFile:   env("DATA_FILE", "data.json"),
		SQLitePath: env("SQLITE_PATH", "items.db"),
		Key:        env("STORE_KEY", "items"),
	}
	if err := ValidateBackend(cfg.Backend); err != nil {
		return StoreConfig{}, err
	}

	cfg.DSN = env("DATABASE_URL", "")
	if cfg.DSN == "" && cfg.Backend == BackendPostgres {
		dsn, err := postgresDSN()
		if err != nil {
			return StoreConfig{}, err
		}
		cfg.DSN = dsn
	}
	return cfg, nil
}

// ValidateBackend reports whether name is a supported store backend.
func ValidateBackend(name string) error {
	switch name {
	case BackendFile, BackendPostgres, BackendSQLite:
		return nil
	}
	return fmt.Errorf("unknown store backend: %q (supported: %s, %s, %s)", name, BackendFile, BackendPostgres, BackendSQLite)
}

func postgresDSN() (string, error) {
	dbUser := env("DB_USER", "")
	dbPass := env("DB_PASSWORD", "")
	dbHost := env("DB_HOST", "")
	dbPort := env("DB_PORT", "5432")
	dbName := env("DB_NAME", "")
	sslMode := env("DB_SSLMODE", "require")

	if dbHost == "" || dbName == "" {
		return "", fmt.Errorf("postgres backend needs DATABASE_URL or DB_HOST and DB_NAME")
	}

	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(dbUser, dbPass),
		Host:     dbHost + ":" + dbPort,
		Path:     "/" + dbName,
		RawQuery: "sslmode=" + url.QueryEscape(sslMode),
	}
	return u.String(), nil
}

func env(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
