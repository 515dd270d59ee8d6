package models

import "time"

// Config represents the application configuration
type Config struct {
	Database  DatabaseConfig
	Server    ServerConfig
	Processor ProcessorConfig
	Reconcile ReconcileConfig
	Events    EventsConfig
	Redis     RedisConfig
	Formance  FormanceConfig
}

// DatabaseConfig holds database connection settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	PingTimeout     time.Duration
	BusyTimeout     time.Duration
}

// ServerConfig holds HTTP server settings
type ServerConfig struct {
	Port           string
	RequestTimeout time.Duration
	JWTSecret      string
}

// ProcessorConfig holds payment processor settings. An empty SecretKey means
// the processor integration is not configured.
type ProcessorConfig struct {
	SecretKey         string
	WebhookSecret     string
	ConnectRefreshUrl string
	ConnectReturnUrl  string
	FrontendBaseUrl   string
	HTTPTimeout       time.Duration
	CheckoutFile      string
}

// Configured reports whether processor credentials are present
func (c ProcessorConfig) Configured() bool {
	return c.SecretKey != ""
}

// ReconcileConfig holds sweep settings
type ReconcileConfig struct {
	SweepConcurrency int
	Interval         time.Duration
}

// EventsConfig holds domain event publishing settings
type EventsConfig struct {
	RabbitMQUrl string
	Exchange    string
}

// RedisConfig holds rate limiter settings
type RedisConfig struct {
	Url                   string
	RateLimitPrefix       string
	ConfirmLimitPerMinute int
}

// FormanceConfig holds the optional external journal settings
type FormanceConfig struct {
	StackURL     string
	ClientID     string
	ClientSecret string
	LedgerName   string
}

// Configured reports whether journal credentials are present
func (c FormanceConfig) Configured() bool {
	return c.StackURL != "" && c.ClientID != "" && c.ClientSecret != ""
}

// CheckoutConfig holds hosted checkout presentation settings loaded from checkout.yaml.
// ProductName, SuccessPath and CancelPath may contain {title}, {campaign_id} and
// {CHECKOUT_SESSION_ID} placeholders.
type CheckoutConfig struct {
	Currency    string `yaml:"currency"`
	ProductName string `yaml:"product_name"`
	MinAmount   string `yaml:"min_amount"`
	MaxAmount   string `yaml:"max_amount"`
	SuccessPath string `yaml:"success_path"`
	CancelPath  string `yaml:"cancel_path"`
}
