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
		Port int `mapstructure:"port"`
	} `mapstructure:"server"`
	NATS struct {
		URL                 string             `mapstructure:"url"`
		Lifecycle           ConsumerNatsConfig `mapstructure:"lifecycle"`
		StageSubject        string             `mapstructure:"stageSubject"`        // Base subject for outbound stage change events (e.g., v1.leads.stage)
		DLQStream           string             `mapstructure:"dlqStream"`           // Name of the Dead Letter Queue stream
		DLQSubject          string             `mapstructure:"dlqSubject"`          // Base subject for DLQ messages (e.g., v1.dlq)
		DLQMaxAgeDays       int                `mapstructure:"dlqMaxAgeDays"`       // Retention period for DLQ messages (days)
		DLQBaseDelayMinutes int                `mapstructure:"dlqBaseDelayMinutes"` // Base delay in minutes for exponential backoff
		DLQMaxDelayMinutes  int                `mapstructure:"dlqMaxDelayMinutes"`  // Max delay in minutes for exponential backoff
	} `mapstructure:"nats"`
	Database struct {
		PostgresDSN         string `mapstructure:"postgresDSN"`
		PostgresAutoMigrate bool   `mapstructure:"postgresAutoMigrate"`
	} `mapstructure:"database"`
	Company struct {
		Default string `mapstructure:"default"`
		ID      string `mapstructure:"id"`
	} `mapstructure:"company"`
	Metrics struct {
		Enabled bool `mapstructure:"enabled"`
		Port    int  `mapstructure:"port"`
	} `mapstructure:"metrics"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Outbox    OutboxConfig    `mapstructure:"outbox"`
	WorkerPools struct {
		Sweep SweepWorkerPoolConfig `mapstructure:"sweep"`
	} `mapstructure:"workerPools"`
}

// LifecycleConfig holds the stage transition thresholds, all expressed in
// IST calendar days, plus engine tuning knobs.
type LifecycleConfig struct {
	QualifyWindowDays     int `mapstructure:"qualifyWindowDays"`     // Days a NEW_LEAD has to show activity before decaying
	QualifiedIdleDays     int `mapstructure:"qualifiedIdleDays"`     // Idle days before QUALIFIED becomes AT_RISK_LEAD
	AtRiskLeadIdleDays    int `mapstructure:"atRiskLeadIdleDays"`    // Idle days before AT_RISK_LEAD becomes INACTIVE_LEAD
	ActiveVisitorIdleDays int `mapstructure:"activeVisitorIdleDays"` // Idle days before ACTIVE_VISITOR becomes AT_RISK_VISITOR
	AtRiskVisitorIdleDays int `mapstructure:"atRiskVisitorIdleDays"` // Idle days before AT_RISK_VISITOR becomes INACTIVE_VISITOR
	MaxConflictRetries    int `mapstructure:"maxConflictRetries"`    // Re-read attempts after an optimistic lock conflict
	SweepBatchSize        int `mapstructure:"sweepBatchSize"`        // Max leads fetched per sweep query
}

// OutboxConfig holds configuration for the stage event outbox republisher
type OutboxConfig struct {
	RepublishInterval time.Duration `mapstructure:"republishInterval"` // How often pending rows are drained
	BatchSize         int           `mapstructure:"batchSize"`         // Max rows republished per tick
	MaxAttempts       int           `mapstructure:"maxAttempts"`       // Attempts before a row is abandoned to the DLQ subject
}

// SweepWorkerPoolConfig holds configuration for the sweep worker pool
type SweepWorkerPoolConfig struct {
	PoolSize   int           `mapstructure:"poolSize"`   // Number of workers
	QueueSize  int           `mapstructure:"queueSize"`  // Task queue buffer size
	MaxBlock   time.Duration `mapstructure:"maxBlock"`   // Max time to block when submitting if queue full
	ExpiryTime time.Duration `mapstructure:"expiryTime"` // Idle worker expiry time
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
}

// LoadConfig reads configuration from file or environment variables
func LoadConfig(path string) (*Config, error) {
	// Create new viper instance
	v := viper.New()

	// Set defaults
	v.SetDefault("environment", "development")
	v.SetDefault("logLevel", "info")
	v.SetDefault("server.port", 8080)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 2112)

	// Lifecycle threshold defaults
	v.SetDefault("lifecycle.qualifyWindowDays", 7)
	v.SetDefault("lifecycle.qualifiedIdleDays", 7)
	v.SetDefault("lifecycle.atRiskLeadIdleDays", 14)
	v.SetDefault("lifecycle.activeVisitorIdleDays", 7)
	v.SetDefault("lifecycle.atRiskVisitorIdleDays", 14)
	v.SetDefault("lifecycle.maxConflictRetries", 3)
	v.SetDefault("lifecycle.sweepBatchSize", 500)

	// Outbound subject default
	v.SetDefault("nats.stageSubject", "v1.leads.stage")

	// DLQ Defaults
	v.SetDefault("nats.dlqBaseDelayMinutes", 1)
	v.SetDefault("nats.dlqMaxDelayMinutes", 15)

	// Outbox Defaults
	v.SetDefault("outbox.republishInterval", 30*time.Second)
	v.SetDefault("outbox.batchSize", 100)
	v.SetDefault("outbox.maxAttempts", 10)

	// WorkerPools Defaults
	v.SetDefault("workerPools.sweep.poolSize", 10)
	v.SetDefault("workerPools.sweep.queueSize", 10000)
	v.SetDefault("workerPools.sweep.maxBlock", time.Second)   // Default to 1 second block
	v.SetDefault("workerPools.sweep.expiryTime", time.Minute) // Default to 1 minute expiry

	// Config file settings
	v.SetConfigName("default") // name of config file (without extension)
	v.SetConfigType("yaml")    // REQUIRED if the config file does not have the extension in the name

	// Add lookup paths
	if path != "" {
		v.AddConfigPath(path)
	}
	v.AddConfigPath(".")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath("$HOME/.lead-lifecycle-service")
	v.AddConfigPath("/etc/lead-lifecycle-service")

	// Try to read from config file
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file is not found, we'll use env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// Override with environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map environment variables to config fields
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
	if company := os.Getenv("COMPANY_ID"); company != "" {
		v.Set("company.id", company)
	}

	// Unmarshal config
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config into struct: %w", err)
	}

	return &config, nil
}

// bindEnvs recursively binds environment variables to config struct fields
func bindEnvs(v *viper.Viper, cfg interface{}, parts ...string) {
	ifv := reflect.ValueOf(cfg)
	ift := reflect.TypeOf(cfg)
	for i := 0; i < ift.NumField(); i++ {
		fieldVal := ifv.Field(i)
		fieldType := ift.Field(i)

		// Get the field tag value (mapstructure)
		tag := fieldType.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}

		// Build the env var path
		path := append(parts, tag)
		key := strings.Join(path, ".")

		// If it's a struct, recursively bind its fields
		if fieldType.Type.Kind() == reflect.Struct {
			bindEnvs(v, fieldVal.Interface(), path...)
			continue
		}

		// Bind the env var
		_ = v.BindEnv(key)
	}
}
