// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Workflow      WorkflowConfig      `mapstructure:"workflow"`
	Scoring       ScoringConfig       `mapstructure:"scoring"`
	Tracks        TracksConfig        `mapstructure:"tracks"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Auth          AuthConfig          `mapstructure:"auth"`
	Integrations  IntegrationConfig   `mapstructure:"integrations"`
	Notifications NotificationConfig  `mapstructure:"notifications"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
	HTTPPort    int    `mapstructure:"http_port"` // health/ready/metrics server
}

// WorkflowConfig holds the review pipeline tunables. Stage SLA days key by
// stage name (constituency, regional, national, eligibility).
type WorkflowConfig struct {
	StageSLADays        map[string]int `mapstructure:"stage_sla_days"`
	SweepInterval       int            `mapstructure:"sweep_interval"` // milliseconds
	MaxPerReviewer      int            `mapstructure:"max_per_reviewer"`
	ChangesDeadlineDays int            `mapstructure:"changes_deadline_days"`
	LoadCacheTTL        int            `mapstructure:"load_cache_ttl"` // milliseconds
	PoolCacheTTL        int            `mapstructure:"pool_cache_ttl"` // milliseconds
}

// ScoringConfig carries priority weights and eligibility penalties. Zero
// values fall back to the scoring package defaults at assembly time.
type ScoringConfig struct {
	Priority    PriorityWeightsConfig    `mapstructure:"priority"`
	Eligibility EligibilityScoringConfig `mapstructure:"eligibility"`
}

type PriorityWeightsConfig struct {
	VerifiedChannel  int     `mapstructure:"verified_channel"`
	LowRisk          int     `mapstructure:"low_risk"`
	MidRisk          int     `mapstructure:"mid_risk"`
	LowRiskThreshold float64 `mapstructure:"low_risk_threshold"`
	MidRiskThreshold float64 `mapstructure:"mid_risk_threshold"`
	PriorExperience  int     `mapstructure:"prior_experience"`
	OperationalAsset int     `mapstructure:"operational_asset"`
	WaitingPerDay    int     `mapstructure:"waiting_per_day"`
	WaitingCap       int     `mapstructure:"waiting_cap"`
}

type EligibilityScoringConfig struct {
	Ceiling         int `mapstructure:"ceiling"`
	PassThreshold   int `mapstructure:"pass_threshold"`
	AgePenalty      int `mapstructure:"age_penalty"`
	DurationPenalty int `mapstructure:"duration_penalty"`
	CapacityPenalty int `mapstructure:"capacity_penalty"`
	LocationPenalty int `mapstructure:"location_penalty"`
	DeadlinePenalty int `mapstructure:"deadline_penalty"`
	SlotsPenalty    int `mapstructure:"slots_penalty"`
}

// TracksConfig points at the track registry file.
type TracksConfig struct {
	RegistryPath string `mapstructure:"registry_path"`
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	SSLEnabled bool     `mapstructure:"ssl_enabled"`
	URL        string   `mapstructure:"url"` // Single URL for backwards compatibility
}

// GetURL returns the first address or the URL field
func (e ElasticsearchConfig) GetURL() string {
	if e.URL != "" {
		return e.URL
	}
	if len(e.Addresses) > 0 {
		return e.Addresses[0]
	}
	return ""
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// --- Specific Configuration Sections ---

// AuthConfig holds the reviewer identity collaborator settings. RoleMapping
// translates realm role names into engine reviewer roles.
type AuthConfig struct {
	Keycloak struct {
		URL          string            `mapstructure:"url"`
		Realm        string            `mapstructure:"realm"`
		ClientID     string            `mapstructure:"client_id"`
		ClientSecret string            `mapstructure:"client_secret"`
		RoleMapping  map[string]string `mapstructure:"role_mapping"`
	} `mapstructure:"keycloak"`
}

// IntegrationConfig holds settings for AWS-backed delivery channels.
type IntegrationConfig struct {
	AWS struct {
		Region string `mapstructure:"region"`
		SES    struct {
			Enabled   bool   `mapstructure:"enabled"`
			FromEmail string `mapstructure:"from_email"`
		} `mapstructure:"ses"`
		SNS struct {
			Enabled            bool   `mapstructure:"enabled"`
			DefaultSMSSenderID string `mapstructure:"default_sms_sender_id"`
		} `mapstructure:"sns"`
	} `mapstructure:"aws"`
}

// NotificationConfig holds settings for the notification dispatcher.
type NotificationConfig struct {
	Email struct {
		Enabled   bool   `mapstructure:"enabled"`
		FromEmail string `mapstructure:"from_email"`
	} `mapstructure:"email"`
	SMS struct {
		Enabled bool `mapstructure:"enabled"`
	} `mapstructure:"sms"`
	QueueSize  int `mapstructure:"queue_size"`
	MaxRetries int `mapstructure:"max_retries"`
}

// ObservabilityConfig gates tracing and the audit search mirror.
type ObservabilityConfig struct {
	Tracing struct {
		Enabled        bool   `mapstructure:"enabled"`
		JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
	} `mapstructure:"tracing"`
	AuditIndex struct {
		Enabled   bool   `mapstructure:"enabled"`
		Prefix    string `mapstructure:"prefix"`
		QueueSize int    `mapstructure:"queue_size"`
	} `mapstructure:"audit_index"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}
