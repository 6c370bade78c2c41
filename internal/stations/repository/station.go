package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	stationserrors "evcharge/internal/stations/errors"
	"evcharge/pkg/config"
	"evcharge/pkg/model"
	"evcharge/pkg/sanitizer"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const CollectionName = "Stations"

type StationRepository interface {
	FindAll(ctx context.Context) ([]*model.Station, error)
	FindByID(ctx context.Context, id int) (*model.Station, error)
}

type mongoStationRepository struct {
	cfg        *config.Config
	collection *mongo.Collection
}

func NewMongoStationRepository(cfg *config.Config) StationRepository {
	db := cfg.Client.Mongo.Database(cfg.MongoDatabaseName)
	return &mongoStationRepository{
		cfg:        cfg,
		collection: db.Collection(CollectionName),
	}
}

func (r *mongoStationRepository) FindAll(ctx context.Context) ([]*model.Station, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to find stations: %w", err)
	}
	defer cursor.Close(ctx)

	stations := []*model.Station{}
	if err := cursor.All(ctx, &stations); err != nil {
		return nil, fmt.Errorf("failed to decode stations: %w", err)
	}
	return stations, nil
}

func (r *mongoStationRepository) FindByID(ctx context.Context, id int) (*model.Station, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ReadTimeout)
	defer cancel()

	var station model.Station
	if err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&station); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, stationserrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find station: %w", err)
	}
	return &station, nil
}

type memoryStationRepository struct {
	mu       sync.RWMutex
	stations map[int]*model.Station
}

// NewMemoryStationRepository serves a fixed catalogue, typically
// model.DefaultStations().
func NewMemoryStationRepository(stations []*model.Station) StationRepository {
	r := &memoryStationRepository{stations: make(map[int]*model.Station, len(stations))}
	for _, s := range stations {
		c := *s
		c.ChargerTypes = sanitizer.NormalizeChargerTypes(s.ChargerTypes)
		r.stations[s.ID] = &c
	}
	return r
}

func (r *memoryStationRepository) FindAll(_ context.Context) ([]*model.Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*model.Station, 0, len(r.stations))
	for _, s := range r.stations {
		c := *s
		c.ChargerTypes = slices.Clone(s.ChargerTypes)
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *model.Station) int { return a.ID - b.ID })
	return out, nil
}

func (r *memoryStationRepository) FindByID(_ context.Context, id int) (*model.Station, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.stations[id]
	if !ok {
		return nil, stationserrors.ErrNotFound
	}
	c := *s
	c.ChargerTypes = slices.Clone(s.ChargerTypes)
	return &c, nil
}
