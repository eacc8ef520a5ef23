package config

import (
	"errors"
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

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Reservation ReservationConfig
	CheckIn     CheckInConfig
	Calendar    CalendarConfig
	Mail        MailConfig
	Storage     StorageConfig
	Exports     ExportsConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	LockTimeout  time.Duration
	AutoMigrate  bool
}

type RedisConfig struct {
	Enabled  bool
	URL      string
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
	Issuer            string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
	Output string
}

// ReservationConfig holds booking policy knobs.
type ReservationConfig struct {
	Timezone    string
	AllowPast   bool
	OpenHour    int
	CloseHour   int
	SlotMinutes int
}

// CheckInConfig describes the location-based attendance check.
type CheckInConfig struct {
	Window            time.Duration
	MaxDistanceMeters float64
	Latitude          float64
	Longitude         float64
}

// CalendarConfig configures Google Calendar sync.
type CalendarConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Workers      int
	Retries      int
	StateTTL     time.Duration
}

// MailConfig configures outbound SMTP notifications.
type MailConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Username string
	Password string
	From     string
	FromName string
}

// StorageConfig selects where room images are kept.
type StorageConfig struct {
	Driver    string
	Dir       string
	PublicURL string
	S3Bucket  string
	S3Region  string
	MaxBytes  int64
}

// ExportsConfig controls reservation export files.
type ExportsConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	CleanupInterval time.Duration
}

// RateLimitConfig throttles credential endpoints per client IP.
type RateLimitConfig struct {
	LoginPerMinute int
	LoginBurst     int
}

// CacheConfig tunes Redis-backed read caches.
type CacheConfig struct {
	Namespace    string
	ReferenceTTL time.Duration
	NoticeTTL    time.Duration
	FailCooldown time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
		LockTimeout:  parseDuration(v.GetString("DB_LOCK_TIMEOUT"), 5*time.Second),
		AutoMigrate:  v.GetBool("DB_AUTO_MIGRATE"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		URL:      v.GetString("REDIS_URL"),
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),
		Timeout:  parseDuration(v.GetString("REDIS_TIMEOUT"), 500*time.Millisecond),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 7*24*time.Hour),
		Issuer:            v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
		Output: v.GetString("LOG_OUTPUT"),
	}

	cfg.Reservation = ReservationConfig{
		Timezone:    v.GetString("RESERVATION_TIMEZONE"),
		AllowPast:   v.GetBool("RESERVATION_ALLOW_PAST"),
		OpenHour:    v.GetInt("RESERVATION_OPEN_HOUR"),
		CloseHour:   v.GetInt("RESERVATION_CLOSE_HOUR"),
		SlotMinutes: v.GetInt("RESERVATION_SLOT_MINUTES"),
	}

	cfg.CheckIn = CheckInConfig{
		Window:            parseDuration(v.GetString("CHECKIN_WINDOW"), 10*time.Minute),
		MaxDistanceMeters: v.GetFloat64("CHECKIN_MAX_DISTANCE_METERS"),
		Latitude:          v.GetFloat64("CHECKIN_LATITUDE"),
		Longitude:         v.GetFloat64("CHECKIN_LONGITUDE"),
	}

	cfg.Calendar = CalendarConfig{
		Enabled:      v.GetBool("CALENDAR_ENABLED"),
		ClientID:     v.GetString("GOOGLE_CLIENT_ID"),
		ClientSecret: v.GetString("GOOGLE_CLIENT_SECRET"),
		RedirectURL:  v.GetString("GOOGLE_REDIRECT_URL"),
		Workers:      v.GetInt("CALENDAR_SYNC_WORKERS"),
		Retries:      v.GetInt("CALENDAR_SYNC_RETRIES"),
		StateTTL:     parseDuration(v.GetString("CALENDAR_STATE_TTL"), 10*time.Minute),
	}

	cfg.Mail = MailConfig{
		Enabled:  v.GetBool("MAIL_ENABLED"),
		Host:     v.GetString("SMTP_HOST"),
		Port:     v.GetInt("SMTP_PORT"),
		Username: v.GetString("SMTP_USERNAME"),
		Password: v.GetString("SMTP_PASSWORD"),
		From:     v.GetString("SMTP_FROM"),
		FromName: v.GetString("SMTP_FROM_NAME"),
	}

	maxImageSize := v.GetInt64("STORAGE_MAX_FILE_SIZE")
	if maxImageSize <= 0 {
		maxImageSize = 5 * 1024 * 1024
	}
	cfg.Storage = StorageConfig{
		Driver:    strings.ToLower(v.GetString("STORAGE_DRIVER")),
		Dir:       v.GetString("STORAGE_DIR"),
		PublicURL: v.GetString("STORAGE_PUBLIC_URL"),
		S3Bucket:  v.GetString("S3_BUCKET"),
		S3Region:  v.GetString("S3_REGION"),
		MaxBytes:  maxImageSize,
	}

	cfg.Exports = ExportsConfig{
		StorageDir:      v.GetString("EXPORTS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("EXPORTS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("EXPORTS_SIGNED_URL_TTL"), time.Hour),
		CleanupInterval: parseDuration(v.GetString("EXPORTS_CLEANUP_INTERVAL"), time.Hour),
	}

	cfg.RateLimit = RateLimitConfig{
		LoginPerMinute: v.GetInt("LOGIN_RATE_LIMIT"),
		LoginBurst:     v.GetInt("LOGIN_RATE_BURST"),
	}

	cfg.Cache = CacheConfig{
		Namespace:    v.GetString("CACHE_NAMESPACE"),
		FailCooldown: parseDuration(v.GetString("CACHE_FAIL_COOLDOWN"), 30*time.Second),
		ReferenceTTL: parseDuration(v.GetString("REFERENCE_CACHE_TTL"), time.Hour),
		NoticeTTL:    parseDuration(v.GetString("NOTICE_CACHE_TTL"), 5*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "room_reservation")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_LOCK_TIMEOUT", "5s")
	v.SetDefault("DB_AUTO_MIGRATE", false)

	v.SetDefault("REDIS_ENABLED", true)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("REDIS_TIMEOUT", "500ms")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")
	v.SetDefault("JWT_ISSUER", "room-reservation-api")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("LOG_OUTPUT", "stdout")

	v.SetDefault("RESERVATION_TIMEZONE", "Asia/Seoul")
	v.SetDefault("RESERVATION_ALLOW_PAST", false)
	v.SetDefault("RESERVATION_OPEN_HOUR", 9)
	v.SetDefault("RESERVATION_CLOSE_HOUR", 22)
	v.SetDefault("RESERVATION_SLOT_MINUTES", 30)

	v.SetDefault("CHECKIN_WINDOW", "10m")
	v.SetDefault("CHECKIN_MAX_DISTANCE_METERS", 25)
	v.SetDefault("CHECKIN_LATITUDE", 37.5509)
	v.SetDefault("CHECKIN_LONGITUDE", 127.0754)

	v.SetDefault("CALENDAR_ENABLED", false)
	v.SetDefault("GOOGLE_CLIENT_ID", "")
	v.SetDefault("GOOGLE_CLIENT_SECRET", "")
	v.SetDefault("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/v1/calendar/oauth/callback")
	v.SetDefault("CALENDAR_SYNC_WORKERS", 2)
	v.SetDefault("CALENDAR_SYNC_RETRIES", 0)
	v.SetDefault("CALENDAR_STATE_TTL", "10m")

	v.SetDefault("MAIL_ENABLED", false)
	v.SetDefault("SMTP_HOST", "localhost")
	v.SetDefault("SMTP_PORT", 587)
	v.SetDefault("SMTP_USERNAME", "")
	v.SetDefault("SMTP_PASSWORD", "")
	v.SetDefault("SMTP_FROM", "no-reply@localhost")
	v.SetDefault("SMTP_FROM_NAME", "Room Reservation")

	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_DIR", "./uploads")
	v.SetDefault("STORAGE_PUBLIC_URL", "/uploads")
	v.SetDefault("S3_BUCKET", "")
	v.SetDefault("S3_REGION", "ap-northeast-2")
	v.SetDefault("STORAGE_MAX_FILE_SIZE", 5*1024*1024)

	v.SetDefault("EXPORTS_STORAGE_DIR", "./exports")
	v.SetDefault("EXPORTS_SIGNED_URL_SECRET", "dev_exports_secret")
	v.SetDefault("EXPORTS_SIGNED_URL_TTL", "1h")
	v.SetDefault("EXPORTS_CLEANUP_INTERVAL", "1h")

	v.SetDefault("LOGIN_RATE_LIMIT", 10)
	v.SetDefault("LOGIN_RATE_BURST", 5)

	v.SetDefault("CACHE_NAMESPACE", "rooms")
	v.SetDefault("CACHE_FAIL_COOLDOWN", "30s")
	v.SetDefault("REFERENCE_CACHE_TTL", "1h")
	v.SetDefault("NOTICE_CACHE_TTL", "5m")
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
