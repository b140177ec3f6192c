package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string
	AllowedOrigin string
	Env           string
	LogLevel      string

	// StoreBackend is one of memory, file, sqlite, postgres, redis, mongo.
	StoreBackend  string
	DataFile      string
	SQLitePath    string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
	MongoURI      string
	MongoDatabase string

	AuthSecret            string
	AccessTokenTTLMinutes int
	ManagerPIN            string
	SeedAdminPassword     string

	ShiftStaleHours     int
	ClearStalePointer   bool
	StampDemotedEndTime bool
	RepairOnStart       bool
	RepairSchedule      string
	ReportTTLMinutes    int
}

// Load reads .env or config.env from the working directory when present;
// environment variables take precedence.
func Load() Config {
	v := viper.New()
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig()

	v.SetConfigName("config")
	v.AddConfigPath("./config")
	_ = v.ReadInConfig()

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	return Config{
		Port:          getString(v, "PORT", "8080"),
		AllowedOrigin: getString(v, "ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		Env:           getString(v, "APP_ENV", "development"),
		LogLevel:      getString(v, "LOG_LEVEL", "info"),

		StoreBackend:  strings.ToLower(getString(v, "STORE_BACKEND", "memory")),
		DataFile:      getString(v, "DATA_FILE", "data.json"),
		SQLitePath:    getString(v, "SQLITE_PATH", "pos.db"),
		DatabaseURL:   getString(v, "DATABASE_URL", ""),
		RedisAddr:     getString(v, "REDIS_ADDR", ""),
		RedisPassword: getString(v, "REDIS_PASSWORD", ""),
		RedisDB:       getInt(v, "REDIS_DB", 0),
		RedisPrefix:   getString(v, "REDIS_PREFIX", "pos"),
		MongoURI:      getString(v, "MONGO_URI", ""),
		MongoDatabase: getString(v, "MONGO_DATABASE", "pos"),

		AuthSecret:            strings.TrimSpace(getString(v, "AUTH_SECRET", "")),
		AccessTokenTTLMinutes: positive(getInt(v, "ACCESS_TOKEN_TTL_MINUTES", 480), 480),
		ManagerPIN:            strings.TrimSpace(getString(v, "MANAGER_PIN", "")),
		SeedAdminPassword:     getString(v, "SEED_ADMIN_PASSWORD", ""),

		ShiftStaleHours:     positive(getInt(v, "SHIFT_STALE_HOURS", 24), 24),
		ClearStalePointer:   getBool(v, "RECONCILE_CLEAR_STALE_POINTER", false),
		StampDemotedEndTime: getBool(v, "RECONCILE_STAMP_DEMOTED_END_TIME", false),
		RepairOnStart:       getBool(v, "REPAIR_ON_START", false),
		RepairSchedule:      strings.TrimSpace(getString(v, "REPAIR_SCHEDULE", "")),
		ReportTTLMinutes:    positive(getInt(v, "REPORT_TTL_MINUTES", 1440), 1440),
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) StaleAfter() time.Duration {
	return time.Duration(c.ShiftStaleHours) * time.Hour
}

func (c Config) ReportTTL() time.Duration {
	return time.Duration(c.ReportTTLMinutes) * time.Minute
}

func getString(v *viper.Viper, key string, fallback string) string {
	if v.IsSet(key) {
		return v.GetString(key)
	}
	return fallback
}

func getInt(v *viper.Viper, key string, fallback int) int {
	if !v.IsSet(key) {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return fallback
	}
	return n
}

func getBool(v *viper.Viper, key string, fallback bool) bool {
	if !v.IsSet(key) {
		return fallback
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v.GetString(key)))
	if err != nil {
		return fallback
	}
	return b
}

func positive(n int, fallback int) int {
	if n < 1 {
		return fallback
	}
	return n
}
