package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment   string
	Server        ServerConfig
	Database      DatabaseConfig
	Plaid         PlaidConfig
	Verification  VerificationConfig
	Pool          PoolConfig
	Delivery      DeliveryConfig
	Timeouts      TimeoutConfig
	AWS           AWSConfig
	Observability ObservabilityConfig
}

type ServerConfig struct {
	Port                int
	WebhookPath         string
	ShutdownGracePeriod time.Duration
}

type DatabaseConfig struct {
	Driver    string
	Path      string
	DSN       string
	LogTiming bool
}

type PlaidConfig struct {
	ClientID    string
	Secret      string
	Environment string
	ClientName  string
	WebhookURL  string
	RedirectURI string
}

type VerificationConfig struct {
	Header       string
	KeyCacheSize int
	KeyCacheTTL  time.Duration
	MaxAge       time.Duration
}

type PoolConfig struct {
	CoreWorkers int
	MaxWorkers  int
	QueueSize   int
	KeepAlive   time.Duration
}

type DeliveryConfig struct {
	UploadConcurrency int
	InlineThreshold   int
	LinkExpiry        time.Duration
}

// TimeoutConfig bounds every outbound call separately.
type TimeoutConfig struct {
	KeyFetch          time.Duration
	Exchange          time.Duration
	LinkToken         time.Duration
	StatementList     time.Duration
	StatementDownload time.Duration
	Upload            time.Duration
	Mail              time.Duration
	Job               time.Duration
}

type AWSConfig struct {
	Region      string
	Bucket      string
	S3Endpoint  string
	SESFrom     string
	SESEndpoint string
}

type ObservabilityConfig struct {
	Enabled           bool
	OTLPEndpoint      string
	OTLPTraceHeaders  map[string]string
	OTLPMetricHeaders map[string]string
	ServiceName       string
	ServiceVer        string
	SamplingRatio     float64
	MetricsConsole    bool
}

// Load reads service configuration and enforces production requirements.
func Load() (Config, error) {
	return load(true)
}

// LoadForTool reads configuration for maintenance commands that only need
// the database, skipping aggregator and AWS requirements.
func LoadForTool() (Config, error) {
	return load(false)
}

func load(requireServiceCredentials bool) (Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("ledgerlink_env", "")
	v.SetDefault("app_env", "")
	v.SetDefault("go_env", "")
	v.SetDefault("ledgerlink_port", 8080)
	v.SetDefault("ledgerlink_webhook_path", "/plaid/webhook")
	v.SetDefault("ledgerlink_shutdown_grace", "30s")
	v.SetDefault("ledgerlink_db_driver", "sqlite")
	v.SetDefault("ledgerlink_db_path", "data/ledgerlink")
	v.SetDefault("ledgerlink_db_dsn", "")
	v.SetDefault("ledgerlink_db_timing", false)
	v.SetDefault("plaid_client_id", "")
	v.SetDefault("plaid_secret", "")
	v.SetDefault("plaid_env", "sandbox")
	v.SetDefault("plaid_client_name", "Personal Finance App")
	v.SetDefault("plaid_webhook_url", "")
	v.SetDefault("plaid_redirect_uri", "")
	v.SetDefault("ledgerlink_verification_header", "Plaid-Verification")
	v.SetDefault("ledgerlink_key_cache_size", 10)
	v.SetDefault("ledgerlink_key_cache_ttl", "12h")
	v.SetDefault("ledgerlink_webhook_max_age", "5m")
	v.SetDefault("ledgerlink_pool_core", 10)
	v.SetDefault("ledgerlink_pool_max", 20)
	v.SetDefault("ledgerlink_pool_queue", 500)
	v.SetDefault("ledgerlink_pool_keep_alive", "60s")
	v.SetDefault("ledgerlink_upload_concurrency", 8)
	v.SetDefault("ledgerlink_inline_threshold", 5)
	v.SetDefault("ledgerlink_link_expiry", "24h")
	v.SetDefault("ledgerlink_timeout_key_fetch", "5s")
	v.SetDefault("ledgerlink_timeout_exchange", "10s")
	v.SetDefault("ledgerlink_timeout_link_token", "10s")
	v.SetDefault("ledgerlink_timeout_statement_list", "30s")
	v.SetDefault("ledgerlink_timeout_statement_download", "60s")
	v.SetDefault("ledgerlink_timeout_upload", "30s")
	v.SetDefault("ledgerlink_timeout_mail", "30s")
	v.SetDefault("ledgerlink_timeout_job", "10m")
	v.SetDefault("aws_region", "us-east-1")
	v.SetDefault("ledgerlink_s3_bucket", "plaid-bank-statements")
	v.SetDefault("ledgerlink_s3_endpoint", "")
	v.SetDefault("ledgerlink_ses_from", "")
	v.SetDefault("ledgerlink_ses_endpoint", "")
	v.SetDefault("ledgerlink_otel_enabled", false)
	v.SetDefault("otel_exporter_otlp_endpoint", "")
	v.SetDefault("otel_exporter_otlp_headers", "")
	v.SetDefault("otel_exporter_otlp_traces_headers", "")
	v.SetDefault("otel_exporter_otlp_metrics_headers", "")
	v.SetDefault("otel_service_name", "ledgerlink")
	v.SetDefault("ledgerlink_version", "dev")
	v.SetDefault("otel_service_version", "")
	v.SetDefault("ledgerlink_otel_sampling_ratio", 1.0)
	v.SetDefault("ledgerlink_otel_metrics_console", false)

	env := resolveEnvironment(v)
	port := v.GetInt("ledgerlink_port")
	if port <= 0 || port > 65535 {
		return Config{}, fmt.Errorf("invalid LEDGERLINK_PORT: %d", port)
	}

	driver := strings.ToLower(strings.TrimSpace(v.GetString("ledgerlink_db_driver")))
	if driver != "sqlite" && driver != "postgres" {
		return Config{}, fmt.Errorf("invalid LEDGERLINK_DB_DRIVER: %q", driver)
	}

	webhookPath := strings.TrimSpace(v.GetString("ledgerlink_webhook_path"))
	if !strings.HasPrefix(webhookPath, "/") {
		webhookPath = "/" + webhookPath
	}

	samplingRatio := clampFloat(v.GetFloat64("ledgerlink_otel_sampling_ratio"), 0, 1)

	coreWorkers := clampInt(v.GetInt("ledgerlink_pool_core"), 1, 256)
	maxWorkers := clampInt(v.GetInt("ledgerlink_pool_max"), coreWorkers, 512)

	serviceName := strings.TrimSpace(v.GetString("otel_service_name"))
	if serviceName == "" {
		serviceName = "ledgerlink"
	}
	serviceVersion := strings.TrimSpace(v.GetString("ledgerlink_version"))
	if serviceVersion == "" {
		serviceVersion = strings.TrimSpace(v.GetString("otel_service_version"))
	}
	if serviceVersion == "" {
		serviceVersion = "dev"
	}

	otlpEndpoint := strings.TrimSpace(v.GetString("otel_exporter_otlp_endpoint"))
	otlpCommonHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_headers"))
	otlpTraceHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_traces_headers"))
	otlpMetricHeaders := parseOTLPHeaders(v.GetString("otel_exporter_otlp_metrics_headers"))
	metricsConsole := v.GetBool("ledgerlink_otel_metrics_console")
	otelEnabled := v.GetBool("ledgerlink_otel_enabled") || otlpEndpoint != "" || metricsConsole

	cfg := Config{
		Environment: env,
		Server: ServerConfig{
			Port:                port,
			WebhookPath:         webhookPath,
			ShutdownGracePeriod: positiveDuration(v.GetDuration("ledgerlink_shutdown_grace"), 30*time.Second),
		},
		Database: DatabaseConfig{
			Driver:    driver,
			Path:      strings.TrimSpace(v.GetString("ledgerlink_db_path")),
			DSN:       strings.TrimSpace(v.GetString("ledgerlink_db_dsn")),
			LogTiming: v.GetBool("ledgerlink_db_timing"),
		},
		Plaid: PlaidConfig{
			ClientID:    strings.TrimSpace(v.GetString("plaid_client_id")),
			Secret:      strings.TrimSpace(v.GetString("plaid_secret")),
			Environment: strings.ToLower(strings.TrimSpace(v.GetString("plaid_env"))),
			ClientName:  strings.TrimSpace(v.GetString("plaid_client_name")),
			WebhookURL:  strings.TrimSpace(v.GetString("plaid_webhook_url")),
			RedirectURI: strings.TrimSpace(v.GetString("plaid_redirect_uri")),
		},
		Verification: VerificationConfig{
			Header:       strings.TrimSpace(v.GetString("ledgerlink_verification_header")),
			KeyCacheSize: clampInt(v.GetInt("ledgerlink_key_cache_size"), 1, 1000),
			KeyCacheTTL:  positiveDuration(v.GetDuration("ledgerlink_key_cache_ttl"), 12*time.Hour),
			MaxAge:       positiveDuration(v.GetDuration("ledgerlink_webhook_max_age"), 5*time.Minute),
		},
		Pool: PoolConfig{
			CoreWorkers: coreWorkers,
			MaxWorkers:  maxWorkers,
			QueueSize:   clampInt(v.GetInt("ledgerlink_pool_queue"), 1, 100000),
			KeepAlive:   positiveDuration(v.GetDuration("ledgerlink_pool_keep_alive"), 60*time.Second),
		},
		Delivery: DeliveryConfig{
			UploadConcurrency: clampInt(v.GetInt("ledgerlink_upload_concurrency"), 1, 64),
			InlineThreshold:   clampInt(v.GetInt("ledgerlink_inline_threshold"), 0, 100),
			LinkExpiry:        clampDuration(v.GetDuration("ledgerlink_link_expiry"), time.Minute, 7*24*time.Hour),
		},
		Timeouts: TimeoutConfig{
			KeyFetch:          positiveDuration(v.GetDuration("ledgerlink_timeout_key_fetch"), 5*time.Second),
			Exchange:          positiveDuration(v.GetDuration("ledgerlink_timeout_exchange"), 10*time.Second),
			LinkToken:         positiveDuration(v.GetDuration("ledgerlink_timeout_link_token"), 10*time.Second),
			StatementList:     positiveDuration(v.GetDuration("ledgerlink_timeout_statement_list"), 30*time.Second),
			StatementDownload: positiveDuration(v.GetDuration("ledgerlink_timeout_statement_download"), 60*time.Second),
			Upload:            positiveDuration(v.GetDuration("ledgerlink_timeout_upload"), 30*time.Second),
			Mail:              positiveDuration(v.GetDuration("ledgerlink_timeout_mail"), 30*time.Second),
			Job:               positiveDuration(v.GetDuration("ledgerlink_timeout_job"), 10*time.Minute),
		},
		AWS: AWSConfig{
			Region:      strings.TrimSpace(v.GetString("aws_region")),
			Bucket:      strings.TrimSpace(v.GetString("ledgerlink_s3_bucket")),
			S3Endpoint:  strings.TrimSpace(v.GetString("ledgerlink_s3_endpoint")),
			SESFrom:     strings.TrimSpace(v.GetString("ledgerlink_ses_from")),
			SESEndpoint: strings.TrimSpace(v.GetString("ledgerlink_ses_endpoint")),
		},
		Observability: ObservabilityConfig{
			Enabled:           otelEnabled,
			OTLPEndpoint:      otlpEndpoint,
			OTLPTraceHeaders:  mergeHeaderMaps(otlpCommonHeaders, otlpTraceHeaders),
			OTLPMetricHeaders: mergeHeaderMaps(otlpCommonHeaders, otlpMetricHeaders),
			ServiceName:       serviceName,
			ServiceVer:        serviceVersion,
			SamplingRatio:     samplingRatio,
			MetricsConsole:    metricsConsole,
		},
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/ledgerlink"
	}
	if cfg.Verification.Header == "" {
		cfg.Verification.Header = "Plaid-Verification"
	}
	if cfg.Database.Driver == "postgres" && cfg.Database.DSN == "" {
		return Config{}, errors.New("LEDGERLINK_DB_DSN is required when LEDGERLINK_DB_DRIVER=postgres")
	}
	if requireServiceCredentials && !cfg.IsLocalDevelopment() {
		if err := cfg.validateProduction(); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

func (c Config) validateProduction() error {
	var missing []string
	if c.Plaid.ClientID == "" {
		missing = append(missing, "PLAID_CLIENT_ID")
	}
	if c.Plaid.Secret == "" {
		missing = append(missing, "PLAID_SECRET")
	}
	if c.AWS.Bucket == "" {
		missing = append(missing, "LEDGERLINK_S3_BUCKET")
	}
	if c.AWS.SESFrom == "" {
		missing = append(missing, "LEDGERLINK_SES_FROM")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%s required outside local/dev environments", strings.Join(missing, ", "))
	}
	return nil
}

func parseOTLPHeaders(raw string) map[string]string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		pair := strings.SplitN(part, "=", 2)
		if len(pair) != 2 {
			continue
		}
		key := strings.TrimSpace(pair[0])
		value := strings.TrimSpace(pair[1])
		if key == "" || value == "" {
			continue
		}
		out[key] = value
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func mergeHeaderMaps(base, override map[string]string) map[string]string {
	if len(base) == 0 && len(override) == 0 {
		return nil
	}
	out := make(map[string]string, len(base)+len(override))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range override {
		out[k] = v
	}
	return out
}

func clampInt(value, lo, hi int) int {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func clampFloat(value, lo, hi float64) float64 {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func clampDuration(value, lo, hi time.Duration) time.Duration {
	if value < lo {
		return lo
	}
	if value > hi {
		return hi
	}
	return value
}

func positiveDuration(value, fallback time.Duration) time.Duration {
	if value <= 0 {
		return fallback
	}
	return value
}

func (c Config) IsLocalDevelopment() bool {
	switch strings.ToLower(strings.TrimSpace(c.Environment)) {
	case "", "local", "dev", "development", "test":
		return true
	default:
		return false
	}
}

// IsProduction reports whether the live Plaid environment is configured.
func (c Config) IsProduction() bool {
	return c.Plaid.Environment == "production"
}

func resolveEnvironment(v *viper.Viper) string {
	for _, key := range []string{"ledgerlink_env", "app_env", "go_env"} {
		value := strings.TrimSpace(v.GetString(key))
		if value != "" {
			return strings.ToLower(value)
		}
	}
	return ""
}
