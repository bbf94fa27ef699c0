// Пакет config — загрузка и валидация конфигурации Assethub
// из переменных окружения.
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

// Config содержит все параметры конфигурации Assethub.
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

	// --- Объектное хранилище (S3-совместимое) ---

	// Endpoint S3 (пустой — стандартный AWS endpoint региона)
	S3Endpoint string
	// Регион S3
	S3Region string
	// Имя bucket для файлов
	S3Bucket string
	// Access key
	S3AccessKey string
	// Secret key
	S3SecretKey string
	// Path-style адресация (требуется для MinIO)
	S3UsePathStyle bool
	// Время жизни presigned URL для загрузки
	PresignTTL time.Duration

	// --- JWT ---

	// URL JWKS endpoint IdP
	JWTJWKSURL string
	// Issuer JWT (пустой — не проверяется)
	JWTIssuer string
	// Интервал обновления JWKS-ключей
	JWKSRefreshInterval time.Duration
	// Допустимое отклонение времени при проверке JWT
	JWTLeeway time.Duration

	// --- Маппинг групп → ролей ---

	// Группы IdP, дающие роль admin (через запятую)
	RoleAdminGroups []string
	// Группы IdP, дающие роль readonly (через запятую)
	RoleReadonlyGroups []string

	// --- Лимиты загрузок ---

	// Максимум загрузок на владельца за скользящий час
	UploadsPerHour int
	// Максимум загрузок на владельца за скользящие сутки
	UploadsPerDay int
	// Квота хранилища на владельца в байтах
	StorageQuotaBytes int64

	// --- Кэши ---

	// Максимальный размер кэша правил namespace
	NamespaceCacheSize int
	// TTL записи кэша правил namespace
	NamespaceCacheTTL time.Duration
	// Максимальный размер кэша эффективных permissions
	PermissionCacheSize int
	// TTL записи кэша эффективных permissions
	PermissionCacheTTL time.Duration

	// --- Мониторинг зависимостей ---

	// Имя группы в метриках topologymetrics
	DephealthGroup string
	// Интервал проверки зависимостей
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	// Таймаут graceful shutdown HTTP-сервера
	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения, валидирует
// обязательные поля и возвращает Config или ошибку.
//
//nolint:cyclop // последовательная валидация переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// AH_PORT — порт HTTP-сервера (по умолчанию 8080)
	cfg.Port, err = getEnvInt("AH_PORT", 8080)
	if err != nil {
		return nil, fmt.Errorf("AH_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("AH_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// AH_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("AH_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("AH_LOG_LEVEL: %w", err)
	}

	// AH_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("AH_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("AH_LOG_FORMAT: недопустимое значение %q, допустимые: json, text", cfg.LogFormat)
	}

	// --- PostgreSQL ---

	// AH_DB_HOST — обязательный
	cfg.DBHost, err = getEnvRequired("AH_DB_HOST")
	if err != nil {
		return nil, err
	}

	// AH_DB_PORT — порт PostgreSQL (по умолчанию 5432)
	cfg.DBPort, err = getEnvInt("AH_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("AH_DB_PORT: %w", err)
	}

	// AH_DB_NAME — обязательный
	cfg.DBName, err = getEnvRequired("AH_DB_NAME")
	if err != nil {
		return nil, err
	}

	// AH_DB_USER — обязательный
	cfg.DBUser, err = getEnvRequired("AH_DB_USER")
	if err != nil {
		return nil, err
	}

	// AH_DB_PASSWORD — обязательный
	cfg.DBPassword, err = getEnvRequired("AH_DB_PASSWORD")
	if err != nil {
		return nil, err
	}

	// AH_DB_SSL_MODE — режим SSL (по умолчанию disable)
	cfg.DBSSLMode = getEnvDefault("AH_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("AH_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	// --- Объектное хранилище ---

	// AH_S3_ENDPOINT — endpoint S3 (опционально, для MinIO и совместимых)
	cfg.S3Endpoint = strings.TrimRight(getEnvDefault("AH_S3_ENDPOINT", ""), "/")

	// AH_S3_REGION — регион (по умолчанию us-east-1)
	cfg.S3Region = getEnvDefault("AH_S3_REGION", "us-east-1")

	// AH_S3_BUCKET — обязательный
	cfg.S3Bucket, err = getEnvRequired("AH_S3_BUCKET")
	if err != nil {
		return nil, err
	}

	// AH_S3_ACCESS_KEY — обязательный
	cfg.S3AccessKey, err = getEnvRequired("AH_S3_ACCESS_KEY")
	if err != nil {
		return nil, err
	}

	// AH_S3_SECRET_KEY — обязательный
	cfg.S3SecretKey, err = getEnvRequired("AH_S3_SECRET_KEY")
	if err != nil {
		return nil, err
	}

	// AH_S3_USE_PATH_STYLE — path-style адресация (по умолчанию true, MinIO)
	cfg.S3UsePathStyle, err = getEnvBool("AH_S3_USE_PATH_STYLE", true)
	if err != nil {
		return nil, fmt.Errorf("AH_S3_USE_PATH_STYLE: %w", err)
	}

	// AH_PRESIGN_TTL — время жизни presigned URL (по умолчанию 15m)
	cfg.PresignTTL, err = getEnvDuration("AH_PRESIGN_TTL", 15*time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AH_PRESIGN_TTL: %w", err)
	}
	if cfg.PresignTTL < time.Minute || cfg.PresignTTL > 24*time.Hour {
		return nil, fmt.Errorf("AH_PRESIGN_TTL: значение %s вне допустимого диапазона 1m-24h", cfg.PresignTTL)
	}

	// --- JWT ---

	// AH_JWT_JWKS_URL — обязательный
	cfg.JWTJWKSURL, err = getEnvRequired("AH_JWT_JWKS_URL")
	if err != nil {
		return nil, err
	}

	// AH_JWT_ISSUER — ожидаемый issuer (опционально)
	cfg.JWTIssuer = getEnvDefault("AH_JWT_ISSUER", "")

	// AH_JWKS_REFRESH_INTERVAL — интервал обновления JWKS (по умолчанию 1h)
	cfg.JWKSRefreshInterval, err = getEnvDuration("AH_JWKS_REFRESH_INTERVAL", time.Hour)
	if err != nil {
		return nil, fmt.Errorf("AH_JWKS_REFRESH_INTERVAL: %w", err)
	}

	// AH_JWT_LEEWAY — допустимое отклонение времени (по умолчанию 30s)
	cfg.JWTLeeway, err = getEnvDuration("AH_JWT_LEEWAY", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AH_JWT_LEEWAY: %w", err)
	}

	// --- Маппинг групп → ролей ---

	// AH_ROLE_ADMIN_GROUPS — группы для роли admin (по умолчанию "assethub-admins")
	cfg.RoleAdminGroups = parseCSV(getEnvDefault("AH_ROLE_ADMIN_GROUPS", "assethub-admins"))

	// AH_ROLE_READONLY_GROUPS — группы для роли readonly (по умолчанию "assethub-viewers")
	cfg.RoleReadonlyGroups = parseCSV(getEnvDefault("AH_ROLE_READONLY_GROUPS", "assethub-viewers"))

	// --- Лимиты загрузок ---

	// AH_UPLOADS_PER_HOUR — лимит за час (по умолчанию 100)
	cfg.UploadsPerHour, err = getEnvInt("AH_UPLOADS_PER_HOUR", 100)
	if err != nil {
		return nil, fmt.Errorf("AH_UPLOADS_PER_HOUR: %w", err)
	}
	if cfg.UploadsPerHour < 1 {
		return nil, fmt.Errorf("AH_UPLOADS_PER_HOUR: значение %d должно быть положительным", cfg.UploadsPerHour)
	}

	// AH_UPLOADS_PER_DAY — лимит за сутки (по умолчанию 1000)
	cfg.UploadsPerDay, err = getEnvInt("AH_UPLOADS_PER_DAY", 1000)
	if err != nil {
		return nil, fmt.Errorf("AH_UPLOADS_PER_DAY: %w", err)
	}
	if cfg.UploadsPerDay < cfg.UploadsPerHour {
		return nil, fmt.Errorf("AH_UPLOADS_PER_DAY: значение %d меньше лимита за час %d", cfg.UploadsPerDay, cfg.UploadsPerHour)
	}

	// AH_STORAGE_QUOTA_BYTES — квота на владельца (по умолчанию 10 GiB)
	cfg.StorageQuotaBytes, err = getEnvInt64("AH_STORAGE_QUOTA_BYTES", 10*1024*1024*1024)
	if err != nil {
		return nil, fmt.Errorf("AH_STORAGE_QUOTA_BYTES: %w", err)
	}
	if cfg.StorageQuotaBytes < 1 {
		return nil, fmt.Errorf("AH_STORAGE_QUOTA_BYTES: значение %d должно быть положительным", cfg.StorageQuotaBytes)
	}

	// --- Кэши ---

	// AH_NS_CACHE_SIZE — размер кэша правил namespace (по умолчанию 256)
	cfg.NamespaceCacheSize, err = getEnvInt("AH_NS_CACHE_SIZE", 256)
	if err != nil {
		return nil, fmt.Errorf("AH_NS_CACHE_SIZE: %w", err)
	}

	// AH_NS_CACHE_TTL — TTL кэша правил namespace (по умолчанию 1m)
	cfg.NamespaceCacheTTL, err = getEnvDuration("AH_NS_CACHE_TTL", time.Minute)
	if err != nil {
		return nil, fmt.Errorf("AH_NS_CACHE_TTL: %w", err)
	}

	// AH_PERM_CACHE_SIZE — размер кэша permissions (по умолчанию 1024)
	cfg.PermissionCacheSize, err = getEnvInt("AH_PERM_CACHE_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("AH_PERM_CACHE_SIZE: %w", err)
	}

	// AH_PERM_CACHE_TTL — TTL кэша permissions (по умолчанию 30s)
	cfg.PermissionCacheTTL, err = getEnvDuration("AH_PERM_CACHE_TTL", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AH_PERM_CACHE_TTL: %w", err)
	}

	// --- Мониторинг зависимостей ---

	// AH_DEPHEALTH_GROUP — группа в метриках (по умолчанию assethub)
	cfg.DephealthGroup = getEnvDefault("AH_DEPHEALTH_GROUP", "assethub")

	// AH_DEPHEALTH_CHECK_INTERVAL — интервал проверки зависимостей (по умолчанию 15s)
	cfg.DephealthCheckInterval, err = getEnvDuration("AH_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AH_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	// AH_SHUTDOWN_TIMEOUT — таймаут graceful shutdown (по умолчанию 5s)
	cfg.ShutdownTimeout, err = getEnvDuration("AH_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("AH_SHUTDOWN_TIMEOUT: %w", err)
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

// DatabaseURL возвращает URL подключения к PostgreSQL (для метрик/лейблов).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName, c.DBSSLMode,
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

// getEnvInt64 возвращает int64 из переменной окружения или значение по умолчанию.
func getEnvInt64(key string, defaultVal int64) (int64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q", val)
	}
	return b, nil
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

// parseCSV разбирает строку, разделённую запятыми, на срез строк.
// Пробелы вокруг элементов убираются, пустые элементы игнорируются.
func parseCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}
