// Пакет config — загрузка и валидация конфигурации файлового реестра
// из переменных окружения (префикс FR_).
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// ServiceName — имя сервиса в логах и health-ответах.
const ServiceName = "file-registry"

// Config содержит все параметры конфигурации реестра.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string

	// --- PostgreSQL ---

	// Хост PostgreSQL
	DBHost string
	// Порт PostgreSQL
	DBPort int
	// Имя базы данных
	DBName string
	// Имя пользователя PostgreSQL
	DBUser string
	// Пароль пользователя PostgreSQL
	DBPassword string
	// Режим SSL: disable, require, verify-ca, verify-full
	DBSSLMode string

	// --- JWT ---

	// Issuer JWT (пустая строка — не проверять)
	JWTIssuer string
	// URL JWKS endpoint identity provider'а
	JWTJWKSURL string
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- RabbitMQ ---

	// URL подключения к RabbitMQ (пустая строка — публикация отключена)
	AMQPURL string

	// --- IPFS ---

	// URL RPC API узла IPFS
	IPFSURL string

	// --- Кэш ---

	// Максимальное количество записей в кэше списков
	CacheSize int
	// Время жизни записи кэша
	CacheTTL time.Duration

	// --- Bootstrap ---

	// Principal, получающий роль admin при старте (пустая строка — пропустить)
	BootstrapAdmin string

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// FR_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("FR_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("FR_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("FR_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// FR_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("FR_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("FR_LOG_LEVEL: %w", err)
	}

	// FR_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("FR_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("FR_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// FR_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("FR_DB_HOST")
	if err != nil {
		return nil, err
	}

	// FR_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("FR_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("FR_DB_PORT: %w", err)
	}

	// FR_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("FR_DB_NAME")
	if err != nil {
		return nil, err
	}

	// FR_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("FR_DB_USER")
	if err != nil {
		return nil, err
	}

	// FR_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("FR_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// FR_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("FR_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("FR_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- JWT ---

	// FR_JWT_JWKS_URL — обязательный
	cfg.JWTJWKSURL, err = getEnvRequired("FR_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// FR_JWT_ISSUER — опциональный
	cfg.JWTIssuer = getEnvDefault("FR_JWT_ISSUER", "")

	// FR_JWKS_REFRESH_INTERVAL — интервал обновления ключей (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("FR_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("FR_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// FR_JWT_LEEWAY — допустимое отклонение времени (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("FR_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FR_JWT_LEEWAY: %w", err)
	}

	// --- RabbitMQ ---

	// FR_AMQP_URL — опциональный (без него публикация событий отключена)
	cfg.AMQPURL = getEnvDefault("FR_AMQP_URL", "")

	// --- IPFS ---

	// FR_IPFS_URL — URL RPC API узла (по умолчанию локальный Kubo)
	cfg.IPFSURL = strings.TrimRight(getEnvDefault("FR_IPFS_URL", "http://localhost:5001"), "/")

	// --- Кэш ---

	// FR_CACHE_SIZE — размер кэша списков (по умолчанию 1024)
	cfg.CacheSize, err = getEnvInt("FR_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("FR_CACHE_SIZE: %w", err)
	}
	if cfg.CacheSize < 1 {
		return nil, fmt.Errorf("FR_CACHE_SIZE: значение %d должно быть положительным", cfg.CacheSize)
	}

	// FR_CACHE_TTL — время жизни записи кэша (по умолчанию 30s)
	cfg.CacheTTL, err = getEnvDuration("FR_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FR_CACHE_TTL: %w", err)
	}

	// --- Bootstrap ---

	// FR_BOOTSTRAP_ADMIN — principal первоначального администратора (опционально)
	cfg.BootstrapAdmin = getEnvDefault("FR_BOOTSTRAP_ADMIN", "")

	// --- Graceful shutdown ---

	// FR_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("FR_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("FR_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
