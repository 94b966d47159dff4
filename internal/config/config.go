package config

import (
	"fmt"
	"os"
	"reflect"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the service
type Config struct {
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"logLevel"`
	Server      struct {
		Port         int           `mapstructure:"port"`
		ReadTimeout  time.Duration `mapstructure:"readTimeout"`
		WriteTimeout time.Duration `mapstructure:"writeTimeout"`
	} `mapstructure:"server"`
	Auth      AuthConfig      `mapstructure:"auth"`
	RateLimit RateLimitConfig `mapstructure:"rateLimit"`
	Followup  FollowupConfig  `mapstructure:"followup"`
	NATS      struct {
		URL                 string             `mapstructure:"url"`
		Enabled             bool               `mapstructure:"enabled"`
		Contacts            ConsumerNatsConfig `mapstructure:"contacts"`
		ReminderSubject     string             `mapstructure:"reminderSubject"`     // Base subject for due follow-up digests
		ReminderStream      string             `mapstructure:"reminderStream"`      // Stream holding reminder digests
		DLQStream           string             `mapstructure:"dlqStream"`           // Name of the Dead Letter Queue stream
		DLQSubject          string             `mapstructure:"dlqSubject"`          // Base subject for DLQ messages (e.g., v1.dlq)
		DLQWorkers          int                `mapstructure:"dlqWorkers"`          // Number of concurrent DLQ processing workers
		DLQBaseDelayMinutes int                `mapstructure:"dlqBaseDelayMinutes"` // Base delay in minutes for exponential backoff
		DLQMaxDelayMinutes  int                `mapstructure:"dlqMaxDelayMinutes"`
		DLQMaxAgeDays       int                `mapstructure:"dlqMaxAgeDays"`
		DLQMaxDeliver       int                `mapstructure:"dlqMaxDeliver"`
		DLQMaxRetries       int                `mapstructure:"dlqMaxRetries"` // Re-route attempts before an event is persisted as exhausted
		DLQAckWait          time.Duration      `mapstructure:"dlqAckWait"`
		DLQMaxAckPending    int                `mapstructure:"dlqMaxAckPending"`
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"metrics"`
}

// AuthConfig describes how dashboard session tokens are verified.
type AuthConfig struct {
	JWTSecret  string `mapstructure:"jwtSecret"`  // HS256 secret shared with the identity provider
	CookieName string `mapstructure:"cookieName"` // Session cookie forwarded by the browser extension
	Issuer     string `mapstructure:"issuer"`     // Expected "iss" claim; empty disables the check
	Audience   string `mapstructure:"audience"`   // Expected "aud" claim; empty disables the check
}

// RateLimitConfig configures the per-client token bucket on the HTTP API.
type RateLimitConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	TTL     time.Duration `mapstructure:"ttl"` // Idle limiter eviction
}

// FollowupConfig holds follow-up scheduling settings.
type FollowupConfig struct {
	DefaultDelayDays int    `mapstructure:"defaultDelayDays"`
	ReminderEnabled  bool   `mapstructure:"reminderEnabled"`
	ReminderCron     string `mapstructure:"reminderCron"`
	Timezone         string `mapstructure:"reminderTimezone"`
	ReminderWorkers  int    `mapstructure:"reminderWorkers"`
}

// ConsumerNatsConfig holds configuration specific to a NATS consumer
type ConsumerNatsConfig struct {
	MaxAge       int64         `mapstructure:"maxAge"` // max age of messages in day
	Stream       string        `mapstructure:"stream"`
	Consumer     string        `mapstructure:"consumer"` // durable name
	QueueGroup   string        `mapstructure:"group"`
	SubjectList  []string      `mapstructure:"subjectList"`
	MaxDeliver   int           `mapstructure:"maxDeliver"`   // Max delivery attempts before DLQ
	NakBaseDelay time.Duration `mapstructure:"nakBaseDelay"` // Base delay for exponential backoff NAK
	NakMaxDelay  time.Duration `mapstructure:"nakMaxDelay"`  // Maximum delay for exponential backoff NAK
	AckWait      time.Duration `mapstructure:"ackWait"`
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.readTimeout", 10*time.Second)
	v.SetDefault("server.writeTimeout", 15*time.Second)
	v.SetDefault("metrics.enabled", true)

	v.SetDefault("auth.cookieName", "sb-access-token")

	v.SetDefault("rateLimit.enabled", true)
	v.SetDefault("rateLimit.rps", 5.0)
	v.SetDefault("rateLimit.burst", 20)
	v.SetDefault("rateLimit.ttl", 10*time.Minute)

	v.SetDefault("followup.defaultDelayDays", 2)
	v.SetDefault("followup.reminderEnabled", true)
	v.SetDefault("followup.reminderCron", "0 8 * * *")
	v.SetDefault("followup.reminderTimezone", "UTC")
	v.SetDefault("followup.reminderWorkers", 4)

	v.SetDefault("nats.enabled", true)
	v.SetDefault("nats.contacts.stream", "CONTACT_EVENTS")
	v.SetDefault("nats.contacts.consumer", "contact-events-processor")
	v.SetDefault("nats.contacts.group", "contact-events")
	v.SetDefault("nats.contacts.subjectList", []string{"v1.contacts.save", "v1.contacts.update"})
	v.SetDefault("nats.contacts.maxAge", 7)
	v.SetDefault("nats.contacts.maxDeliver", 5)
	v.SetDefault("nats.contacts.nakBaseDelay", 2*time.Second)
	v.SetDefault("nats.contacts.nakMaxDelay", time.Minute)
	v.SetDefault("nats.contacts.ackWait", 30*time.Second)
	v.SetDefault("nats.reminderStream", "FOLLOWUP_REMINDERS")
	v.SetDefault("nats.reminderSubject", "v1.followups.due")

	// DLQ Worker Defaults
	v.SetDefault("nats.dlqStream", "CONTACT_EVENTS_DLQ")
	v.SetDefault("nats.dlqSubject", "v1.dlq")
	v.SetDefault("nats.dlqWorkers", 8)
	v.SetDefault("nats.dlqBaseDelayMinutes", 1)
	v.SetDefault("nats.dlqMaxDelayMinutes", 15)
	v.SetDefault("nats.dlqMaxAgeDays", 7)
	v.SetDefault("nats.dlqMaxDeliver", 10)
	v.SetDefault("nats.dlqMaxRetries", 5)
	v.SetDefault("nats.dlqAckWait", 2*time.Minute)
	v.SetDefault("nats.dlqMaxAckPending", 100)

	v.SetConfigName("default")
	v.SetConfigType("yaml")

	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.followup-tracker")
	v.AddConfigPath("/etc/followup-tracker")

	if err := v.ReadInConfig(); err != nil {
		// A missing file is fine, env vars still apply.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvs(v, Config{})

	// Read directly from ENV for critical values
	if dsn := os.Getenv("POSTGRES_DSN"); dsn != "" {
		v.Set("database.postgresDSN", dsn)
	}
	if lgLevel := os.Getenv("LOG_LEVEL"); lgLevel != "" {
		v.Set("logLevel", lgLevel)
	}
	if url := os.Getenv("NATS_URL"); url != "" {
		v.Set("nats.url", url)
	}
	if secret := os.Getenv("SESSION_JWT_SECRET"); secret != "" {
		v.Set("auth.jwtSecret", secret)
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// Validate reports settings the service cannot start without.
func (c *Config) Validate() error {
	var missing []string
	if c.Database.PostgresDSN == "" {
		missing = append(missing, "database.postgresDSN")
	}
	if c.Auth.JWTSecret == "" {
		missing = append(missing, "auth.jwtSecret")
	}
	if c.NATS.Enabled && c.NATS.URL == "" {
		missing = append(missing, "nats.url")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required config: %s", strings.Join(missing, ", "))
	}
	if c.Followup.DefaultDelayDays <= 0 {
		return fmt.Errorf("followup.defaultDelayDays must be positive, got %d", c.Followup.DefaultDelayDays)
	}
	return nil
}

// Location resolves the follow-up time zone, falling back to UTC.
func (f FollowupConfig) Location() *time.Location {
	if f.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(f.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		path := append(parts, tag)
		key := strings.Join(path, ".")

		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		_ = v.BindEnv(key)
	}
}
