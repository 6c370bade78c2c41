package config

import (
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"evcharge/pkg/client"
	"evcharge/pkg/logger"

	"github.com/joho/godotenv"
)

type Config struct {
	MongoURI          string
	MongoDatabaseName string
	MongoConnTimeout  time.Duration

	Port string

	StoreBackend string
	SlotBackend  string
	RedisURL     string

	SlotsPerStation  int
	EntryEarlyWindow time.Duration
	StationTimezone  string
	Location         *time.Location

	StripeSecretKey string
	PaymentCurrency string

	KafkaEnabled    bool
	KafkaEntryTopic string
	KafkaPlateTopic string
	KafkaGroupID    string
	KafkaDLQTopic   string

	RateLimitRequests int
	RateLimitWindow   time.Duration

	RequestTimeout  time.Duration
	IdempotencyTTL  time.Duration
	MaxRequestSize  int
	CleanupInterval time.Duration

	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	RelaySendBuffer     int
	RelayPongWait       time.Duration
	RelayWriteWait      time.Duration
	RelayAllowedOrigins []string

	Log    *logger.Logger
	Client *client.Client
}

func Load(serviceName string) *Config {
	// A missing .env file is normal outside local development.
	_ = godotenv.Load()

	cfg := &Config{
		MongoURI:          getEnvStr(EnvMongoURI, DefaultMongoURI),
		MongoDatabaseName: getEnvStr(EnvMongoDatabaseName, DefaultMongoDatabaseName),
		MongoConnTimeout:  getEnvDuration(EnvMongoConnTimeout, DefaultMongoConnTimeout),

		Port: getEnvStr(EnvPort, DefaultPort),

		StoreBackend: strings.ToLower(getEnvStr(EnvStoreBackend, DefaultStoreBackend)),
		SlotBackend:  strings.ToLower(getEnvStr(EnvSlotBackend, DefaultSlotBackend)),
		RedisURL:     getEnvStr(EnvRedisURL, DefaultRedisURL),

		SlotsPerStation:  getEnvNum(EnvSlotsPerStation, DefaultSlotsPerStation),
		EntryEarlyWindow: getEnvDuration(EnvEntryEarlyWindow, DefaultEntryEarlyWindow),
		StationTimezone:  getEnvStr(EnvStationTimezone, DefaultStationTimezone),

		StripeSecretKey: getEnvStr(EnvStripeSecretKey, ""),
		PaymentCurrency: getEnvStr(EnvPaymentCurrency, DefaultPaymentCurrency),

		KafkaEnabled:    getEnvBool(EnvKafkaEnabled, DefaultKafkaEnabled),
		KafkaEntryTopic: getEnvStr(EnvKafkaEntryTopic, DefaultKafkaEntryTopic),
		KafkaPlateTopic: getEnvStr(EnvKafkaPlateTopic, DefaultKafkaPlateTopic),
		KafkaGroupID:    getEnvStr(EnvKafkaGroupID, DefaultKafkaGroupID),
		KafkaDLQTopic:   getEnvStr(EnvKafkaDLQTopic, ""),

		RateLimitRequests: getEnvNum(EnvRateLimitRequests, DefaultRateLimitRequests),
		RateLimitWindow:   getEnvDuration(EnvRateLimitWindow, DefaultRateLimitWindow),

		RequestTimeout:  getEnvDuration(EnvRequestTimeout, DefaultRequestTimeout),
		IdempotencyTTL:  getEnvDuration(EnvIdempotencyTTL, DefaultIdempotencyTTL),
		MaxRequestSize:  getEnvNum(EnvMaxRequestSize, DefaultMaxRequestSize),
		CleanupInterval: getEnvDuration(EnvCleanupInterval, DefaultCleanupInterval),

		ReadTimeout:     getEnvDuration(EnvReadTimeout, DefaultReadTimeout),
		WriteTimeout:    getEnvDuration(EnvWriteTimeout, DefaultWriteTimeout),
		IdleTimeout:     getEnvDuration(EnvIdleTimeout, DefaultIdleTimeout),
		ShutdownTimeout: getEnvDuration(EnvShutdownTimeout, DefaultShutdownTimeout),

		RelaySendBuffer:     getEnvNum(EnvRelaySendBuffer, DefaultRelaySendBuffer),
		RelayPongWait:       getEnvDuration(EnvRelayPongWait, DefaultRelayPongWait),
		RelayWriteWait:      getEnvDuration(EnvRelayWriteWait, DefaultRelayWriteWait),
		RelayAllowedOrigins: getEnvList(EnvRelayAllowedOrigins),

		Log: logger.New(logger.Config{
			Level:     getEnvStr(EnvLogLevel, DefaultLogLevel),
			Format:    logger.JSON,
			AddSource: true,
			Service:   serviceName,
		}),
		Client: client.NewClient(),
	}

	if err := cfg.Validate(); err != nil {
		cfg.Log.Fatal(err.Error())
	}
	cfg.LogConfiguration()
	return cfg
}

func (cfg *Config) SetMongo() {
	cfg.Client.SetMongo(cfg.Log, cfg.MongoURI, cfg.MongoConnTimeout)
}

func (cfg *Config) SetRedis() {
	cfg.Client.SetRedis(cfg.Log, cfg.RedisURL, cfg.MongoConnTimeout)
}

// UsesMongo reports whether any configured component needs a MongoDB connection.
func (cfg *Config) UsesMongo() bool {
	return cfg.StoreBackend == StoreBackendMongo
}

func (cfg *Config) UsesRedis() bool {
	return cfg.SlotBackend == SlotBackendRedis
}

// Validate checks every setting and reports all problems at once. On success
// it also resolves Location from StationTimezone.
func (cfg *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(cfg.Port); err != nil || port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("Port must be between 1 and 65535, got: %s", cfg.Port))
	}

	switch cfg.StoreBackend {
	case StoreBackendMongo:
		if cfg.MongoURI == "" {
			errors = append(errors, "MongoURI cannot be empty")
		} else if !regexp.MustCompile(`^mongodb(\+srv)?://`).MatchString(cfg.MongoURI) {
			errors = append(errors, fmt.Sprintf("MongoURI must start with 'mongodb://' or 'mongodb+srv://', got: %s", cfg.MongoURI))
		}
		if cfg.MongoDatabaseName == "" {
			errors = append(errors, "MongoDatabaseName cannot be empty")
		}
		if cfg.MongoConnTimeout <= 0 {
			errors = append(errors, fmt.Sprintf("MongoConnTimeout must be positive, got: %s", cfg.MongoConnTimeout))
		}
	case StoreBackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("StoreBackend must be one of [%s, %s], got: %s", StoreBackendMongo, StoreBackendMemory, cfg.StoreBackend))
	}

	switch cfg.SlotBackend {
	case SlotBackendRedis:
		if !regexp.MustCompile(`^rediss?://`).MatchString(cfg.RedisURL) {
			errors = append(errors, fmt.Sprintf("RedisURL must start with 'redis://' or 'rediss://', got: %s", cfg.RedisURL))
		}
	case SlotBackendMemory:
	default:
		errors = append(errors, fmt.Sprintf("SlotBackend must be one of [%s, %s], got: %s", SlotBackendMemory, SlotBackendRedis, cfg.SlotBackend))
	}

	if cfg.SlotsPerStation <= 0 {
		errors = append(errors, fmt.Sprintf("SlotsPerStation must be positive, got: %d", cfg.SlotsPerStation))
	}
	if cfg.EntryEarlyWindow < 0 {
		errors = append(errors, fmt.Sprintf("EntryEarlyWindow cannot be negative, got: %s", cfg.EntryEarlyWindow))
	}
	loc, err := time.LoadLocation(cfg.StationTimezone)
	if err != nil {
		errors = append(errors, fmt.Sprintf("StationTimezone must be a valid IANA zone, got: %s", cfg.StationTimezone))
	}

	if cfg.PaymentCurrency == "" {
		errors = append(errors, "PaymentCurrency cannot be empty")
	}

	if cfg.KafkaEnabled {
		if cfg.KafkaEntryTopic == "" {
			errors = append(errors, "KafkaEntryTopic cannot be empty when Kafka is enabled")
		}
		if cfg.KafkaPlateTopic != "" && cfg.KafkaGroupID == "" {
			errors = append(errors, "KafkaGroupID cannot be empty when KafkaPlateTopic is set")
		}
	}

	if cfg.RateLimitWindow <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitWindow must be positive, got: %s", cfg.RateLimitWindow))
	}
	if cfg.RateLimitRequests <= 0 {
		errors = append(errors, fmt.Sprintf("RateLimitRequests must be positive, got: %d", cfg.RateLimitRequests))
	}
	if cfg.RequestTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("RequestTimeout must be positive, got: %s", cfg.RequestTimeout))
	}
	if cfg.IdempotencyTTL <= 0 {
		errors = append(errors, fmt.Sprintf("IdempotencyTTL must be positive, got: %s", cfg.IdempotencyTTL))
	}
	if cfg.MaxRequestSize <= 0 {
		errors = append(errors, fmt.Sprintf("MaxRequestSize must be positive, got: %d", cfg.MaxRequestSize))
	}
	if cfg.CleanupInterval <= 0 {
		errors = append(errors, fmt.Sprintf("CleanupInterval must be positive, got: %s", cfg.CleanupInterval))
	}
	if cfg.ReadTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ReadTimeout must be positive, got: %s", cfg.ReadTimeout))
	}
	if cfg.WriteTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("WriteTimeout must be positive, got: %s", cfg.WriteTimeout))
	}
	if cfg.IdleTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("IdleTimeout must be positive, got: %s", cfg.IdleTimeout))
	}
	if cfg.ShutdownTimeout <= 0 {
		errors = append(errors, fmt.Sprintf("ShutdownTimeout must be positive, got: %s", cfg.ShutdownTimeout))
	}

	if cfg.RelaySendBuffer <= 0 {
		errors = append(errors, fmt.Sprintf("RelaySendBuffer must be positive, got: %d", cfg.RelaySendBuffer))
	}
	if cfg.RelayPongWait <= 0 {
		errors = append(errors, fmt.Sprintf("RelayPongWait must be positive, got: %s", cfg.RelayPongWait))
	}
	if cfg.RelayWriteWait <= 0 {
		errors = append(errors, fmt.Sprintf("RelayWriteWait must be positive, got: %s", cfg.RelayWriteWait))
	}

	if len(errors) > 0 {
		errMsg := "Configuration validation failed:\n"
		for i, err := range errors {
			errMsg += fmt.Sprintf("  %d. %s\n", i+1, err)
		}
		return fmt.Errorf("%s", errMsg)
	}

	cfg.Location = loc
	return nil
}

func (cfg *Config) LogConfiguration() {
	cfg.Log.Info("Configuration loaded successfully",
		"mongo_uri", redactURI(cfg.MongoURI),
		"mongo_database", cfg.MongoDatabaseName,
		"mongo_conn_timeout", cfg.MongoConnTimeout,
		"port", cfg.Port,
		"store_backend", cfg.StoreBackend,
		"slot_backend", cfg.SlotBackend,
		"redis_url", redactURI(cfg.RedisURL),
		"slots_per_station", cfg.SlotsPerStation,
		"entry_early_window", cfg.EntryEarlyWindow,
		"station_timezone", cfg.StationTimezone,
		"stripe_key_set", cfg.StripeSecretKey != "",
		"payment_currency", cfg.PaymentCurrency,
		"kafka_enabled", cfg.KafkaEnabled,
		"kafka_entry_topic", cfg.KafkaEntryTopic,
		"kafka_plate_topic", cfg.KafkaPlateTopic,
		"rate_limit_requests", cfg.RateLimitRequests,
		"rate_limit_window", cfg.RateLimitWindow,
		"request_timeout", cfg.RequestTimeout,
		"idempotency_ttl", cfg.IdempotencyTTL,
		"max_request_size", cfg.MaxRequestSize,
		"cleanup_interval", cfg.CleanupInterval,
		"read_timeout", cfg.ReadTimeout,
		"write_timeout", cfg.WriteTimeout,
		"idle_timeout", cfg.IdleTimeout,
		"shutdown_timeout", cfg.ShutdownTimeout,
		"relay_send_buffer", cfg.RelaySendBuffer,
		"relay_pong_wait", cfg.RelayPongWait,
		"relay_write_wait", cfg.RelayWriteWait,
		"relay_allowed_origins", cfg.RelayAllowedOrigins,
	)
}

func redactURI(uri string) string {
	credentialRegex := regexp.MustCompile(`([a-z+]+://)[^:@/]*:[^@]+@`)
	return credentialRegex.ReplaceAllString(uri, "${1}***:***@")
}

func getEnvStr(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvNum(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (cfg *Config) GracefulShutdown() {
	cfg.Client.GracefulShutdown(cfg.Log)
}
