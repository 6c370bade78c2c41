package config

const (
	EnvMongoURI          = "MONGO_URI"
	EnvMongoDatabaseName = "MONGO_DATABASE_NAME"
	EnvMongoConnTimeout  = "MONGO_CONN_TIMEOUT"

	EnvPort     = "PORT"
	EnvLogLevel = "LOG_LEVEL"

	EnvStoreBackend = "STORE_BACKEND"
	EnvSlotBackend  = "SLOT_BACKEND"
	EnvRedisURL     = "REDIS_URL"

	EnvSlotsPerStation  = "SLOTS_PER_STATION"
	EnvEntryEarlyWindow = "ENTRY_EARLY_WINDOW"
	EnvStationTimezone  = "STATION_TIMEZONE"

	EnvStripeSecretKey = "STRIPE_SECRET_KEY"
	EnvPaymentCurrency = "PAYMENT_CURRENCY"

	EnvKafkaEnabled    = "KAFKA_ENABLED"
	EnvKafkaEntryTopic = "KAFKA_ENTRY_TOPIC"
	EnvKafkaPlateTopic = "KAFKA_PLATE_TOPIC"
	EnvKafkaGroupID    = "KAFKA_GROUP_ID"
	EnvKafkaDLQTopic   = "KAFKA_DLQ_TOPIC"

	EnvRateLimitRequests = "RATE_LIMIT_REQUESTS"
	EnvRateLimitWindow   = "RATE_LIMIT_WINDOW"

	EnvRequestTimeout  = "REQUEST_TIMEOUT"
	EnvIdempotencyTTL  = "IDEMPOTENCY_TTL"
	EnvMaxRequestSize  = "MAX_REQUEST_SIZE"
	EnvCleanupInterval = "CLEANUP_INTERVAL"

	EnvReadTimeout     = "READ_TIMEOUT"
	EnvWriteTimeout    = "WRITE_TIMEOUT"
	EnvIdleTimeout     = "IDLE_TIMEOUT"
	EnvShutdownTimeout = "SHUTDOWN_TIMEOUT"

	EnvRelaySendBuffer     = "RELAY_SEND_BUFFER"
	EnvRelayPongWait       = "RELAY_PONG_WAIT"
	EnvRelayWriteWait      = "RELAY_WRITE_WAIT"
	EnvRelayAllowedOrigins = "RELAY_ALLOWED_ORIGINS"
)
