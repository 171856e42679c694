package config

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"    validate:"required"`
	Database  DatabaseConfig  `mapstructure:"database"  validate:"required"`
	Auth      AuthConfig      `mapstructure:"auth"      validate:"required"`
	Scheduler SchedulerConfig `mapstructure:"scheduler" validate:"required"`
	Redis     RedisConfig     `mapstructure:"redis"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port"                     validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level"                validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gte=1"`
}

// DatabaseConfig selects and configures the task store.
type DatabaseConfig struct {
	// Driver is "postgres" for the relational store or "memory" for a
	// process-local store used in development.
	Driver       string `mapstructure:"driver"         validate:"required,oneof=postgres memory"`
	URL          string `mapstructure:"url"            validate:"required_if=Driver postgres,omitempty,url"`
	MaxOpenConns int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns int    `mapstructure:"max_idle_conns" validate:"gte=0"`
}

// AuthConfig contains the access-token verification settings.
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=32"`
	// TokenLifetimeMinutes applies to tokens minted with -issue-token.
	TokenLifetimeMinutes int `mapstructure:"token_lifetime_minutes" validate:"gte=1"`
}

// SchedulerConfig controls the background reminder and recurrence jobs.
// Specs use the standard five-field cron syntax or descriptors like @hourly.
type SchedulerConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	DueScanSpec        string `mapstructure:"due_scan_spec"         validate:"required"`
	RecurrenceSpec     string `mapstructure:"recurrence_spec"       validate:"required"`
	DueSoonWindowHours int    `mapstructure:"due_soon_window_hours" validate:"gt=0"`
	DueSoonGapHours    int    `mapstructure:"due_soon_gap_hours"    validate:"gt=0"`
	OverdueGapHours    int    `mapstructure:"overdue_gap_hours"     validate:"gt=0"`
	LockTTLSeconds     int    `mapstructure:"lock_ttl_seconds"      validate:"gt=0"`
}

// RedisConfig configures the optional cross-process scan lock. An empty URL
// keeps locking in-process.
type RedisConfig struct {
	URL string `mapstructure:"url" validate:"omitempty,url"`
}
