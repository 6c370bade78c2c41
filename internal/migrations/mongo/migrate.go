package mongo

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	bookingsrepo "evcharge/internal/bookings/repository"
	"evcharge/internal/migrations/mongo/validators"
	stationsrepo "evcharge/internal/stations/repository"
	"evcharge/pkg/logger"
	"evcharge/pkg/model"
	"evcharge/pkg/sanitizer"
)

var (
	StationsIndexes = []mongo.IndexModel{
		{Keys: bson.D{{Key: "name", Value: 1}}},
	}

	BookingsIndexes = []mongo.IndexModel{
		// entry lookups by plate in insertion order
		{Keys: bson.D{
			{Key: "car_number", Value: 1},
			{Key: "created_at", Value: 1},
		}},
		// availability and conflict checks
		{Keys: bson.D{
			{Key: "station_id", Value: 1},
			{Key: "date", Value: 1},
			{Key: "start_time", Value: 1},
		}},
		{Keys: bson.D{
			{Key: "status", Value: 1},
			{Key: "created_at", Value: -1},
		}},
	}

	BookingLocksIndexes = []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "expires_at", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(0),
		},
	}
)

type collectionDef struct {
	Name      string
	Indexes   []mongo.IndexModel
	Validator bson.M
}

func collections() []collectionDef {
	return []collectionDef{
		{Name: stationsrepo.CollectionName, Indexes: StationsIndexes, Validator: validators.StationValidator},
		{Name: bookingsrepo.CollectionName, Indexes: BookingsIndexes, Validator: validators.BookingValidator},
		{Name: bookingsrepo.LockCollectionName, Indexes: BookingLocksIndexes, Validator: validators.BookingLockValidator},
	}
}

// RunMigration creates or updates every collection with its validator and
// indexes, then upserts the station catalogue.
func RunMigration(ctx context.Context, db *mongo.Database, log *logger.Logger) error {
	log.Info("Running Mongo migrations", "database", db.Name())

	for _, def := range collections() {
		if err := ensureCollection(ctx, db, def.Name, def.Validator, log); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", def.Name, err)
		}
		if err := ensureIndexes(ctx, db, def.Name, def.Indexes, log); err != nil {
			return fmt.Errorf("failed to ensure indexes for %s: %w", def.Name, err)
		}
	}

	if err := seedStations(ctx, db, model.DefaultStations(), log); err != nil {
		return fmt.Errorf("failed to seed stations: %w", err)
	}

	log.Info("All migrations applied successfully")
	return nil
}

func ensureCollection(ctx context.Context, db *mongo.Database, name string, validator bson.M, log *logger.Logger) error {
	existing, err := db.ListCollectionNames(ctx, bson.D{{Key: "name", Value: name}})
	if err != nil {
		return err
	}

	if len(existing) == 0 {
		log.Info("Creating collection", "collection", name)
		opts := options.CreateCollection().SetValidator(validator)
		if err := db.CreateCollection(ctx, name, opts); err != nil {
			return fmt.Errorf("failed creating %s: %w", name, err)
		}
		return nil
	}

	log.Info("Collection exists, updating validator", "collection", name)
	command := bson.D{
		{Key: "collMod", Value: name},
		{Key: "validator", Value: validator},
	}
	if err := db.RunCommand(ctx, command).Err(); err != nil {
		log.Warn("Failed updating validator", "collection", name, "error", err)
	}
	return nil
}

func ensureIndexes(ctx context.Context, db *mongo.Database, name string, models []mongo.IndexModel, log *logger.Logger) error {
	if len(models) == 0 {
		return nil
	}
	if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
		return err
	}
	log.Info("Ensured indexes", "collection", name, "count", len(models))
	return nil
}

// seedStations upserts by id so reruns refresh the catalogue in place.
func seedStations(ctx context.Context, db *mongo.Database, stations []*model.Station, log *logger.Logger) error {
	coll := db.Collection(stationsrepo.CollectionName)
	for _, st := range stations {
		doc := *st
		doc.ChargerTypes = sanitizer.NormalizeChargerTypes(st.ChargerTypes)
		_, err := coll.ReplaceOne(ctx, bson.M{"_id": doc.ID}, &doc, options.Replace().SetUpsert(true))
		if err != nil {
			return fmt.Errorf("upsert station %d: %w", st.ID, err)
		}
	}
	log.Info("Seeded stations", "count", len(stations))
	return nil
}
