package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/attendance"
	"github.com/joho/godotenv"
)

type Config struct {
	App        AppConfig
	Database   DatabaseConfig
	JWT        JWTConfig
	Attendance AttendanceConfig
	Redis      RedisConfig
	Kafka      KafkaConfig
}

// AppConfig holds application configuration
type AppConfig struct {
	Name           string
	Version        string
	Port           int
	Env            string
	LogLevel       string
	AllowedOrigins []string
}

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	SSLMode  string
	MaxConns int32
	MinConns int32
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret           string
	AccessExpiration string
}

// AttendanceConfig is the fallback policy for companies without working hours.
type AttendanceConfig struct {
	DefaultTimezone    string
	CheckInCutoff      string
	WorkdayEnd         string
	BreakCutoff        string
	MinSession         time.Duration
	StaleSweepInterval time.Duration
}

// RedisConfig enables the location cache when Addr is set.
type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	LocationTTL time.Duration
}

// KafkaConfig enables event publishing when Brokers is set.
type KafkaConfig struct {
	Brokers         []string
	AttendanceTopic string
}

// ClientConfig configures the attendctl command.
type ClientConfig struct {
	APIURL             string
	APIToken           string
	RequestTimeout     time.Duration
	ReadRetries        int
	GeoFastTimeout     time.Duration
	GeoAccurateTimeout time.Duration
	GeoMaxAge          time.Duration
	AuxTimeout         time.Duration
}

func loadDotEnv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("failed to read .env file", "error", err)
	}
}

func Load() (*Config, error) {
	loadDotEnv()

	config := &Config{}

	// Application configuration
	appPort, err := getEnvInt("APP_PORT", 8080)
	if err != nil {
		return nil, err
	}

	config.App = AppConfig{
		Name:           getEnv("APP_NAME", "attendance-engine"),
		Version:        getEnv("APP_VERSION", "dev"),
		Port:           appPort,
		Env:            getEnv("APP_ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		AllowedOrigins: getEnvSlice("ALLOWED_ORIGINS"),
	}

	// Database configuration
	dbPort, err := getEnvInt("DB_PORT", 5432)
	if err != nil {
		return nil, err
	}
	maxConns, err := getEnvInt("DB_MAX_CONNS", 25)
	if err != nil {
		return nil, err
	}
	minConns, err := getEnvInt("DB_MIN_CONNS", 5)
	if err != nil {
		return nil, err
	}

	config.Database = DatabaseConfig{
		Host:     getEnv("DB_HOST", "localhost"),
		Port:     dbPort,
		User:     getEnv("DB_USER", "postgres"),
		Password: getEnv("DB_PASSWORD", ""),
		Name:     getEnv("DB_NAME", "attendance"),
		SSLMode:  getEnv("DB_SSL_MODE", "disable"),
		MaxConns: int32(maxConns),
		MinConns: int32(minConns),
	}

	// JWT configuration
	config.JWT = JWTConfig{
		Secret:           getEnv("JWT_SECRET_KEY", ""),
		AccessExpiration: getEnv("JWT_ACCESS_EXPIRATION_TIME", "1h"),
	}

	// Attendance policy
	minSession, err := getEnvDuration("ATTENDANCE_MIN_SESSION", 4*time.Hour)
	if err != nil {
		return nil, err
	}
	sweep, err := getEnvDuration("ATTENDANCE_STALE_SWEEP_INTERVAL", time.Hour)
	if err != nil {
		return nil, err
	}

	config.Attendance = AttendanceConfig{
		DefaultTimezone:    getEnv("ATTENDANCE_DEFAULT_TIMEZONE", "Asia/Jakarta"),
		CheckInCutoff:      getEnv("ATTENDANCE_CHECKIN_CUTOFF", "09:30"),
		WorkdayEnd:         getEnv("ATTENDANCE_WORKDAY_END", "17:00"),
		BreakCutoff:        getEnv("ATTENDANCE_BREAK_CUTOFF", "13:00"),
		MinSession:         minSession,
		StaleSweepInterval: sweep,
	}

	// Redis configuration
	redisDB, err := getEnvInt("REDIS_DB", 0)
	if err != nil {
		return nil, err
	}
	redisTTL, err := getEnvDuration("REDIS_LOCATION_TTL", 10*time.Minute)
	if err != nil {
		return nil, err
	}

	config.Redis = RedisConfig{
		Addr:        getEnv("REDIS_ADDR", ""),
		Password:    getEnv("REDIS_PASSWORD", ""),
		DB:          redisDB,
		LocationTTL: redisTTL,
	}

	// Kafka configuration
	config.Kafka = KafkaConfig{
		Brokers:         getEnvSlice("KAFKA_BROKERS"),
		AttendanceTopic: getEnv("KAFKA_ATTENDANCE_TOPIC", "attendance_events"),
	}

	// Validate required fields
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if c.JWT.Secret == "" {
		return fmt.Errorf("JWT_SECRET_KEY is required")
	}
	if _, err := c.Policy(); err != nil {
		return err
	}
	if len(c.Kafka.Brokers) > 0 && c.Kafka.AttendanceTopic == "" {
		return fmt.Errorf("KAFKA_ATTENDANCE_TOPIC is required when KAFKA_BROKERS is set")
	}
	return nil
}

// DatabaseURL returns the PostgreSQL connection string
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.Database.User,
		c.Database.Password,
		c.Database.Host,
		c.Database.Port,
		c.Database.Name,
		c.Database.SSLMode,
	)
}

// Policy is the attendance policy applied when a company defines no working hours.
func (c *Config) Policy() (attendance.Policy, error) {
	p := attendance.DefaultPolicy()
	a := c.Attendance

	if a.DefaultTimezone != "" {
		tz, err := time.LoadLocation(a.DefaultTimezone)
		if err != nil {
			return attendance.Policy{}, fmt.Errorf("invalid ATTENDANCE_DEFAULT_TIMEZONE %q: %w", a.DefaultTimezone, err)
		}
		p.Location = tz
	}

	clocks := []struct {
		env    string
		value  string
		target *attendance.ClockTime
	}{
		{"ATTENDANCE_CHECKIN_CUTOFF", a.CheckInCutoff, &p.CheckInCutoff},
		{"ATTENDANCE_WORKDAY_END", a.WorkdayEnd, &p.WorkdayEnd},
		{"ATTENDANCE_BREAK_CUTOFF", a.BreakCutoff, &p.BreakCutoff},
	}
	for _, cl := range clocks {
		if cl.value == "" {
			continue
		}
		parsed, err := attendance.ParseClock(cl.value)
		if err != nil {
			return attendance.Policy{}, fmt.Errorf("invalid %s: %w", cl.env, err)
		}
		*cl.target = parsed
	}

	if a.MinSession > 0 {
		p.MinSession = a.MinSession
	}
	return p, nil
}

// SlogLevel converts LOG_LEVEL to a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.App.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return level
}

// LoadClient reads the attendctl configuration.
func LoadClient() (*ClientConfig, error) {
	loadDotEnv()

	retries, err := getEnvInt("CLIENT_READ_RETRIES", 2)
	if err != nil {
		return nil, err
	}

	cfg := &ClientConfig{
		APIURL:      getEnv("ATTENDANCE_API_URL", "http://localhost:8080"),
		APIToken:    getEnv("ATTENDANCE_API_TOKEN", ""),
		ReadRetries: retries,
	}

	durations := []struct {
		env      string
		fallback time.Duration
		target   *time.Duration
	}{
		{"CLIENT_REQUEST_TIMEOUT", 10 * time.Second, &cfg.RequestTimeout},
		{"GEO_FAST_TIMEOUT", 5 * time.Second, &cfg.GeoFastTimeout},
		{"GEO_ACCURATE_TIMEOUT", 20 * time.Second, &cfg.GeoAccurateTimeout},
		{"GEO_MAX_AGE", time.Minute, &cfg.GeoMaxAge},
		{"AUX_TIMEOUT", 5 * time.Second, &cfg.AuxTimeout},
	}
	for _, d := range durations {
		v, err := getEnvDuration(d.env, d.fallback)
		if err != nil {
			return nil, err
		}
		*d.target = v
	}

	if cfg.APIToken == "" {
		return nil, fmt.Errorf("ATTENDANCE_API_TOKEN is required")
	}
	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func getEnvDuration(key string, fallback time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func getEnvSlice(env string) []string {
	value := getEnv(env, "")
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
