package config

import "time"

const (
	StoreBackendMongo  = "mongo"
	StoreBackendMemory = "memory"

	SlotBackendMemory = "memory"
	SlotBackendRedis  = "redis"
)

const (
	DefaultMongoURI          = "mongodb://localhost:27017"
	DefaultMongoDatabaseName = "evcharge"
	DefaultMongoConnTimeout  = 10 * time.Second

	DefaultPort     = "5000"
	DefaultLogLevel = "info"

	DefaultStoreBackend = StoreBackendMongo
	DefaultSlotBackend  = SlotBackendMemory
	DefaultRedisURL     = "redis://localhost:6379/0"

	DefaultSlotsPerStation  = 3
	DefaultEntryEarlyWindow = 30 * time.Minute
	DefaultStationTimezone  = "Asia/Kolkata"

	DefaultPaymentCurrency = "inr"

	DefaultKafkaEnabled    = false
	DefaultKafkaEntryTopic = "gate-entry-events"
	DefaultKafkaPlateTopic = "plate-detections"
	DefaultKafkaGroupID    = "evcharge-gateway"

	DefaultRateLimitRequests = 60
	DefaultRateLimitWindow   = 1 * time.Minute

	DefaultRequestTimeout  = 30 * time.Second
	DefaultIdempotencyTTL  = 24 * time.Hour
	DefaultMaxRequestSize  = 1 * 1024 * 1024 // 1MB
	DefaultCleanupInterval = 10 * time.Minute

	DefaultReadTimeout     = 15 * time.Second
	DefaultWriteTimeout    = 15 * time.Second
	DefaultIdleTimeout     = 60 * time.Second
	DefaultShutdownTimeout = 30 * time.Second

	DefaultRelaySendBuffer = 32
	DefaultRelayPongWait   = 60 * time.Second
	DefaultRelayWriteWait  = 10 * time.Second
)
