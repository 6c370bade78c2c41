package main

import (
	_ "time/tzdata"

	bookinghandler "evcharge/internal/bookings/handler"
	bookingrepo "evcharge/internal/bookings/repository"
	bookingservice "evcharge/internal/bookings/service"
	bookingvalidator "evcharge/internal/bookings/validator"
	"evcharge/internal/entry"
	"evcharge/internal/relay"
	"evcharge/internal/slots"
	stationhandler "evcharge/internal/stations/handler"
	stationrepo "evcharge/internal/stations/repository"
	stationservice "evcharge/internal/stations/service"
	"evcharge/pkg/app"
	"evcharge/pkg/config"
	"evcharge/pkg/kafka"
	kafka_config "evcharge/pkg/kafka/config"
	kafka_middleware "evcharge/pkg/kafka/middleware"
	"evcharge/pkg/model"
	"evcharge/pkg/payments"
)

const ServiceName = "gateway"

type repositories struct {
	bookings bookingrepo.BookingRepository
	locks    bookingrepo.BookingLockRepository
	stations stationrepo.StationRepository
}

func main() {
	cfg := config.Load(ServiceName)

	if cfg.UsesMongo() {
		cfg.SetMongo()
	}
	if cfg.UsesRedis() {
		cfg.SetRedis()
	}

	repos := initRepositories(cfg)
	registry := initSlotRegistry(cfg)

	hub := relay.NewHub(registry, relay.Options{
		SendBuffer:     cfg.RelaySendBuffer,
		WriteWait:      cfg.RelayWriteWait,
		PongWait:       cfg.RelayPongWait,
		AllowedOrigins: cfg.RelayAllowedOrigins,
	}, cfg.Log.Component("relay"))

	application := app.NewApplication(cfg)
	if cfg.Client.Mongo != nil {
		application.Health().AddCheck("mongo", app.MongoCheck(cfg.Client.Mongo))
	}
	if cfg.Client.Redis != nil {
		application.Health().AddCheck("redis", app.RedisCheck(cfg.Client.Redis))
	}

	var kcfg *kafka_config.Config
	if cfg.KafkaEnabled {
		kcfg = loadKafkaConfig(cfg)
	}

	events := initEntryEvents(cfg, kcfg, application)
	engine := entry.NewEngine(repos.bookings, registry, hub, events, entry.Options{
		Location:    cfg.Location,
		EarlyWindow: cfg.EntryEarlyWindow,
	}, cfg.Log.Component("entry"))
	initPlateConsumer(cfg, kcfg, application, engine)

	processor := payments.NewStripe(cfg.StripeSecretKey, cfg.PaymentCurrency, cfg.Log.Component("payments"))
	bookingService := bookingservice.NewBookingService(
		repos.bookings,
		repos.locks,
		repos.stations,
		processor,
		bookingvalidator.NewBookingValidator(cfg.Log),
		cfg,
	)
	stationService := stationservice.NewStationService(
		repos.stations,
		repos.bookings,
		registry,
		cfg.Location,
		cfg.Log.Component("stations"),
	)

	application.SetApp(hub,
		bookinghandler.NewBookingHandler(bookingService, cfg.Log),
		stationhandler.NewStationHandler(stationService, cfg.Log),
		entry.NewHandler(engine, cfg.Log.Component("entry")),
	)
	application.OnShutdown("relay", func() error {
		hub.Shutdown()
		return nil
	})

	cfg.Log.Info("Starting EV charging gateway",
		"store_backend", cfg.StoreBackend,
		"slot_backend", cfg.SlotBackend,
		"kafka_enabled", cfg.KafkaEnabled,
	)
	application.Run()
}

func initRepositories(cfg *config.Config) repositories {
	if cfg.StoreBackend == config.StoreBackendMemory {
		cfg.Log.Warn("Using in-memory booking store; data is lost on restart")
		return repositories{
			bookings: bookingrepo.NewMemoryBookingRepository(),
			locks:    bookingrepo.NewMemoryBookingLockRepository(),
			stations: stationrepo.NewMemoryStationRepository(model.DefaultStations()),
		}
	}

	cfg.Log.Info("Using MongoDB booking store", "database", cfg.MongoDatabaseName)
	return repositories{
		bookings: bookingrepo.NewMongoBookingRepository(cfg),
		locks:    bookingrepo.NewBookingLockRepository(cfg),
		stations: stationrepo.NewMongoStationRepository(cfg),
	}
}

func initSlotRegistry(cfg *config.Config) slots.Registry {
	if cfg.SlotBackend == config.SlotBackendRedis {
		cfg.Log.Info("Using Redis slot registry", "slots_per_station", cfg.SlotsPerStation)
		return slots.NewRedisRegistry(cfg.Client.Redis, cfg.SlotsPerStation)
	}
	cfg.Log.Info("Using in-memory slot registry", "slots_per_station", cfg.SlotsPerStation)
	return slots.NewMemoryRegistry(cfg.SlotsPerStation)
}

func loadKafkaConfig(cfg *config.Config) *kafka_config.Config {
	kcfg, err := kafka_config.Load()
	if err != nil {
		cfg.Log.Fatal("Invalid Kafka configuration", "error", err)
	}
	kcfg.LogConfiguration(cfg.Log)
	return kcfg
}

func initEntryEvents(cfg *config.Config, kcfg *kafka_config.Config, application *app.Application) entry.EventPublisher {
	if !cfg.KafkaEnabled {
		return entry.NoopPublisher{}
	}

	log := cfg.Log.Component("kafka")
	producer, err := kafka.NewProducer(kcfg, cfg.KafkaEntryTopic, cfg.KafkaDLQTopic, log)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka producer", "error", err)
	}
	producer.Use(kafka_middleware.LoggingProducerMiddleware(log))
	application.OnShutdown("kafka-producer", producer.Close)

	cfg.Log.Info("Entry events enabled", "topic", cfg.KafkaEntryTopic)
	return entry.NewKafkaPublisher(producer)
}

func initPlateConsumer(cfg *config.Config, kcfg *kafka_config.Config, application *app.Application, engine *entry.Engine) {
	if !cfg.KafkaEnabled || cfg.KafkaPlateTopic == "" {
		return
	}

	log := cfg.Log.Component("kafka")
	consumer, err := kafka.NewConsumer(
		kcfg,
		cfg.KafkaPlateTopic,
		cfg.KafkaGroupID,
		cfg.KafkaDLQTopic,
		entry.PlateDetectionHandler(engine, cfg.Log.Component("entry")),
		log,
	)
	if err != nil {
		cfg.Log.Fatal("Failed to create Kafka consumer", "error", err)
	}
	consumer.Use(kafka_middleware.LoggingConsumerMiddleware(log))

	application.AddWorker("plate-detections", consumer.Start)
	application.OnShutdown("kafka-consumer", consumer.Close)
	cfg.Log.Info("Plate detection consumer enabled", "topic", cfg.KafkaPlateTopic, "group_id", cfg.KafkaGroupID)
}
