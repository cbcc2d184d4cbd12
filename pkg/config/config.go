package config

import (
	"errors"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	Cookie    CookieConfig
	CORS      CORSConfig
	Log       LogConfig
	Cache     CacheConfig
	Grading   GradingConfig
	Promotion PromotionConfig
	Sync      SyncConfig
	Imports   ImportsConfig
	Audit     AuditConfig
}

type DatabaseConfig struct {
	// URL, when set, takes precedence over the discrete fields.
	URL             string
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	// ConnectAttempts is how many pings NewPostgres tries before giving up.
	ConnectAttempts int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Issuer            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

// CookieConfig controls the session cookie issued on login.
type CookieConfig struct {
	Name   string
	Domain string
	Secure bool
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig governs Redis-backed caching of permissions and dashboards.
type CacheConfig struct {
	Enabled          bool
	TTL              time.Duration
	BreakerFailures  uint32
	BreakerOpenDelay time.Duration
}

// GradingConfig holds the weighting applied to class and exam scores.
type GradingConfig struct {
	ClassScoreWeight float64
	ExamScoreWeight  float64
}

// PromotionConfig holds default promotion criteria.
type PromotionConfig struct {
	FinalLevel        int
	PassMark          float64
	MinAverage        float64
	MinAttendanceRate float64
	MaxFailedSubjects int
}

// SyncConfig bounds offline replay batches.
type SyncConfig struct {
	MaxBatchSize int
}

// ImportsConfig bounds spreadsheet uploads.
type ImportsConfig struct {
	MaxFileSizeBytes int64
}

// AuditConfig tunes the asynchronous audit writer.
type AuditConfig struct {
	Enabled      bool
	Workers      int
	BufferSize   int
	MaxRetries   int
	DrainTimeout time.Duration
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		URL:             v.GetString("DATABASE_URL"),
		Host:            v.GetString("DB_HOST"),
		Port:            v.GetInt("DB_PORT"),
		User:            v.GetString("DB_USER"),
		Password:        v.GetString("DB_PASSWORD"),
		Name:            v.GetString("DB_NAME"),
		SSLMode:         v.GetString("DB_SSL_MODE"),
		MaxOpenConns:    v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns:    v.GetInt("DB_MAX_IDLE_CONNS"),
		ConnectAttempts: v.GetInt("DB_CONNECT_ATTEMPTS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Issuer:            v.GetString("JWT_ISSUER"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
	}

	cfg.Cookie = CookieConfig{
		Name:   v.GetString("COOKIE_NAME"),
		Domain: v.GetString("COOKIE_DOMAIN"),
		Secure: v.GetBool("COOKIE_SECURE"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:          v.GetBool("ENABLE_CACHE"),
		TTL:              parseDuration(v.GetString("CACHE_TTL"), 5*time.Minute),
		BreakerFailures:  uint32(v.GetInt("CACHE_BREAKER_FAILURES")),
		BreakerOpenDelay: parseDuration(v.GetString("CACHE_BREAKER_OPEN_DELAY"), 30*time.Second),
	}

	cfg.Grading = GradingConfig{
		ClassScoreWeight: v.GetFloat64("GRADING_CLASS_WEIGHT"),
		ExamScoreWeight:  v.GetFloat64("GRADING_EXAM_WEIGHT"),
	}

	cfg.Promotion = PromotionConfig{
		FinalLevel:        v.GetInt("PROMOTION_FINAL_LEVEL"),
		PassMark:          v.GetFloat64("PROMOTION_PASS_MARK"),
		MinAverage:        v.GetFloat64("PROMOTION_MIN_AVERAGE"),
		MinAttendanceRate: v.GetFloat64("PROMOTION_MIN_ATTENDANCE_RATE"),
		MaxFailedSubjects: v.GetInt("PROMOTION_MAX_FAILED_SUBJECTS"),
	}

	cfg.Sync = SyncConfig{MaxBatchSize: v.GetInt("SYNC_MAX_BATCH_SIZE")}

	maxImportSize := v.GetInt64("IMPORT_MAX_FILE_SIZE")
	if maxImportSize <= 0 {
		maxImportSize = 5 * 1024 * 1024
	}
	cfg.Imports = ImportsConfig{MaxFileSizeBytes: maxImportSize}

	cfg.Audit = AuditConfig{
		Enabled:      v.GetBool("ENABLE_AUDIT"),
		Workers:      v.GetInt("AUDIT_WORKERS"),
		BufferSize:   v.GetInt("AUDIT_BUFFER_SIZE"),
		MaxRetries:   v.GetInt("AUDIT_MAX_RETRIES"),
		DrainTimeout: parseDuration(v.GetString("AUDIT_DRAIN_TIMEOUT"), 5*time.Second),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "school_mgmt")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_ATTEMPTS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "school-mgmt-api")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("COOKIE_NAME", "access_token")
	v.SetDefault("COOKIE_DOMAIN", "")
	v.SetDefault("COOKIE_SECURE", false)

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", true)
	v.SetDefault("CACHE_TTL", "5m")
	v.SetDefault("CACHE_BREAKER_FAILURES", 5)
	v.SetDefault("CACHE_BREAKER_OPEN_DELAY", "30s")

	v.SetDefault("GRADING_CLASS_WEIGHT", 30)
	v.SetDefault("GRADING_EXAM_WEIGHT", 70)

	v.SetDefault("PROMOTION_FINAL_LEVEL", 9)
	v.SetDefault("PROMOTION_PASS_MARK", 40)
	v.SetDefault("PROMOTION_MIN_AVERAGE", 50)
	v.SetDefault("PROMOTION_MIN_ATTENDANCE_RATE", 0.75)
	v.SetDefault("PROMOTION_MAX_FAILED_SUBJECTS", 2)

	v.SetDefault("SYNC_MAX_BATCH_SIZE", 200)
	v.SetDefault("IMPORT_MAX_FILE_SIZE", 5*1024*1024)

	v.SetDefault("ENABLE_AUDIT", true)
	v.SetDefault("AUDIT_WORKERS", 2)
	v.SetDefault("AUDIT_BUFFER_SIZE", 256)
	v.SetDefault("AUDIT_MAX_RETRIES", 3)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
