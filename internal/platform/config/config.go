// Package config loads runtime configuration with viper. Environment
// variables use the CLAIMDESK_ prefix and override an optional config file;
// nested keys map to underscores (database.url -> CLAIMDESK_DATABASE_URL).
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full runtime configuration.
type Config struct {
	Server       Server
	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Tracing      TracingConfig
	Tenancy      TenancyConfig
	Claims       ClaimsConfig
	Files        FilesConfig
	Auth         AuthConfig
	Environment  string
	LogLevel     string
	BootstrapKey string
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	DomainTTL    time.Duration
}

type KafkaConfig struct {
	Brokers            []string
	NotificationsTopic string
	ClaimEventsTopic   string
}

type TracingConfig struct {
	Endpoint    string
	ServiceName string
	Insecure    bool
	SampleRatio float64
}

// TenancyConfig controls registration and provisioning.
type TenancyConfig struct {
	// PlatformHost serves registration and administration routes.
	PlatformHost string
	// DomainSuffix is appended to every requested routing domain.
	DomainSuffix      string
	ProvisionAttempts int
	AbandonedAfter    time.Duration
	ReclaimOnStartup  bool
}

type ClaimsConfig struct {
	NumberAttempts int
}

type FilesConfig struct {
	Root string
}

type AuthConfig struct {
	JWTSigningKey string
	Issuer        string
	TokenTTL      time.Duration
}

// DemoMode reports whether the service runs without external infrastructure.
func (c Config) DemoMode() bool {
	return c.Database.URL == ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("log_level", "info")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("redis.pool_size", 10)
	v.SetDefault("redis.min_idle_conns", 2)
	v.SetDefault("redis.dial_timeout", 5*time.Second)
	v.SetDefault("redis.read_timeout", 3*time.Second)
	v.SetDefault("redis.write_timeout", 3*time.Second)
	v.SetDefault("redis.domain_ttl", 5*time.Minute)
	v.SetDefault("kafka.notifications_topic", "claimdesk.notifications")
	v.SetDefault("kafka.claim_events_topic", "claimdesk.claim-events")
	v.SetDefault("tracing.service_name", "claimdesk")
	v.SetDefault("tracing.sample_ratio", 1.0)
	v.SetDefault("tenancy.platform_host", "localhost")
	v.SetDefault("tenancy.domain_suffix", ".localhost")
	v.SetDefault("tenancy.provision_attempts", 3)
	v.SetDefault("tenancy.abandoned_after", 15*time.Minute)
	v.SetDefault("tenancy.reclaim_on_startup", true)
	v.SetDefault("claims.number_attempts", 5)
	v.SetDefault("files.root", "./data/documents")
	v.SetDefault("auth.jwt_signing_key", "dev-secret-key-change-in-production")
	v.SetDefault("auth.issuer", "claimdesk")
	v.SetDefault("auth.token_ttl", time.Hour)
}

// Load reads configuration from the environment and, when present, from
// config.yaml in the working directory or /etc/claimdesk.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("CLAIMDESK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/claimdesk")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return fromViper(v)
}

func fromViper(v *viper.Viper) (Config, error) {
	cfg := Config{
		Environment:  v.GetString("environment"),
		LogLevel:     v.GetString("log_level"),
		BootstrapKey: v.GetString("bootstrap_key"),
		Server: Server{
			Addr:            v.GetString("server.addr"),
			ReadTimeout:     v.GetDuration("server.read_timeout"),
			WriteTimeout:    v.GetDuration("server.write_timeout"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Database: DatabaseConfig{
			URL:             v.GetString("database.url"),
			MaxOpenConns:    v.GetInt("database.max_open_conns"),
			MaxIdleConns:    v.GetInt("database.max_idle_conns"),
			ConnMaxLifetime: v.GetDuration("database.conn_max_lifetime"),
		},
		Redis: RedisConfig{
			URL:          v.GetString("redis.url"),
			PoolSize:     v.GetInt("redis.pool_size"),
			MinIdleConns: v.GetInt("redis.min_idle_conns"),
			DialTimeout:  v.GetDuration("redis.dial_timeout"),
			ReadTimeout:  v.GetDuration("redis.read_timeout"),
			WriteTimeout: v.GetDuration("redis.write_timeout"),
			DomainTTL:    v.GetDuration("redis.domain_ttl"),
		},
		Kafka: KafkaConfig{
			Brokers:            splitList(v.GetString("kafka.brokers")),
			NotificationsTopic: v.GetString("kafka.notifications_topic"),
			ClaimEventsTopic:   v.GetString("kafka.claim_events_topic"),
		},
		Tracing: TracingConfig{
			Endpoint:    v.GetString("tracing.endpoint"),
			ServiceName: v.GetString("tracing.service_name"),
			Insecure:    v.GetBool("tracing.insecure"),
			SampleRatio: v.GetFloat64("tracing.sample_ratio"),
		},
		Tenancy: TenancyConfig{
			PlatformHost:      strings.ToLower(v.GetString("tenancy.platform_host")),
			DomainSuffix:      v.GetString("tenancy.domain_suffix"),
			ProvisionAttempts: v.GetInt("tenancy.provision_attempts"),
			AbandonedAfter:    v.GetDuration("tenancy.abandoned_after"),
			ReclaimOnStartup:  v.GetBool("tenancy.reclaim_on_startup"),
		},
		Claims: ClaimsConfig{
			NumberAttempts: v.GetInt("claims.number_attempts"),
		},
		Files: FilesConfig{
			Root: v.GetString("files.root"),
		},
		Auth: AuthConfig{
			JWTSigningKey: v.GetString("auth.jwt_signing_key"),
			Issuer:        v.GetString("auth.issuer"),
			TokenTTL:      v.GetDuration("auth.token_ttl"),
		},
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.Tenancy.ProvisionAttempts < 1 {
		return fmt.Errorf("tenancy.provision_attempts must be at least 1")
	}
	if c.Claims.NumberAttempts < 1 {
		return fmt.Errorf("claims.number_attempts must be at least 1")
	}
	if c.Environment == "production" && c.Auth.JWTSigningKey == "dev-secret-key-change-in-production" {
		return fmt.Errorf("auth.jwt_signing_key must be set in production")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
