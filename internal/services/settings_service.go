package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/models"
)

const (
	configCollection    = "configuration"
	apiConfigCollection = "api_endpoints_config"
	configUpdateChannel = "config_updates"
)

// ISettingsService serves runtime configuration stored in MongoDB.
type ISettingsService interface {
	Load(ctx context.Context) error
	SubscribeToChanges(ctx context.Context) error
	GetAllPublic(ctx context.Context) (map[string]interface{}, error)
	GetInt(key string, defaultValue int) int
	SetValue(ctx context.Context, key string, value interface{}, public bool) error
	GetEndpointConfig(method, endpoint string) *models.APIEndpointConfig
}

// settingsService keeps both collections cached in memory and reloads them
// when a message arrives on the config_updates channel.
type settingsService struct {
	db        *mongo.Database
	cfg       *config.Config
	rdb       *redis.Client
	mutex     sync.RWMutex
	cache     map[string]interface{}
	endpoints map[string]*models.APIEndpointConfig
}

// NewSettingsService creates a new SettingsService. rdb may be nil, in which
// case changes made by other processes are not picked up.
func NewSettingsService(db *mongo.Database, cfg *config.Config, rdb *redis.Client) ISettingsService {
	return &settingsService{
		db:        db,
		cfg:       cfg,
		rdb:       rdb,
		cache:     make(map[string]interface{}),
		endpoints: make(map[string]*models.APIEndpointConfig),
	}
}

func endpointKey(method, endpoint string) string {
	return strings.ToUpper(method) + " " + endpoint
}

// Load replaces the in-memory caches with the current contents of the DB.
func (s *settingsService) Load(ctx context.Context) error {
	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query config collection: %w", err)
	}
	var entries []models.ConfigEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return fmt.Errorf("failed to decode config entries: %w", err)
	}
	values := make(map[string]interface{}, len(entries))
	for _, e := range entries {
		values[e.Key] = e.Value
	}

	apiCursor, err := s.db.Collection(apiConfigCollection).Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to query API endpoint configs: %w", err)
	}
	var apiEntries []models.APIEndpointConfig
	if err := apiCursor.All(ctx, &apiEntries); err != nil {
		return fmt.Errorf("failed to decode API endpoint configs: %w", err)
	}
	endpoints := make(map[string]*models.APIEndpointConfig, len(apiEntries))
	for i := range apiEntries {
		e := &apiEntries[i]
		endpoints[endpointKey(e.Method, e.Endpoint)] = e
	}

	s.mutex.Lock()
	s.cache = values
	s.endpoints = endpoints
	s.mutex.Unlock()

	log.Printf("Loaded %d config entries and %d API endpoint configs from DB.", len(values), len(endpoints))
	return nil
}

// GetAllPublic reads the public entries straight from the DB, since the
// cache also holds private ones.
func (s *settingsService) GetAllPublic(ctx context.Context) (map[string]interface{}, error) {
	cursor, err := s.db.Collection(configCollection).Find(ctx, bson.M{"public": true})
	if err != nil {
		return nil, fmt.Errorf("failed to query public config from DB: %w", err)
	}
	var entries []models.ConfigEntry
	if err := cursor.All(ctx, &entries); err != nil {
		return nil, fmt.Errorf("failed to decode public config: %w", err)
	}

	public := map[string]interface{}{}
	for _, e := range entries {
		public[e.Key] = e.Value
	}
	if _, exists := public["APP_NAME"]; !exists {
		public["APP_NAME"] = s.cfg.AppName
	}
	if _, exists := public["PASSWORD_MIN_LENGTH"]; !exists {
		public["PASSWORD_MIN_LENGTH"] = s.cfg.PasswordMinLength
	}
	return public, nil
}

// GetInt returns the cached value of key, or defaultValue when it is
// missing or not numeric. MongoDB may hand numbers back as any of these types.
func (s *settingsService) GetInt(key string, defaultValue int) int {
	s.mutex.RLock()
	val, exists := s.cache[key]
	s.mutex.RUnlock()
	if !exists {
		return defaultValue
	}
	switch v := val.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		log.Printf("Warning: Config key '%s' is not an integer type (%T), using default.", key, val)
		return defaultValue
	}
}

// GetEndpointConfig returns the override for a route, falling back to one
// stored without a method. It returns nil when no override exists.
func (s *settingsService) GetEndpointConfig(method, endpoint string) *models.APIEndpointConfig {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	if c, ok := s.endpoints[endpointKey(method, endpoint)]; ok {
		return c
	}
	return s.endpoints[endpointKey("", endpoint)]
}

// SetValue upserts a config entry and tells every process to reload.
func (s *settingsService) SetValue(ctx context.Context, key string, value interface{}, public bool) error {
	_, err := s.db.Collection(configCollection).UpdateOne(ctx,
		bson.M{"key": key},
		bson.M{"$set": bson.M{"key": key, "value": value, "public": public}},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert config key '%s' in DB: %w", key, err)
	}

	s.mutex.Lock()
	s.cache[key] = value
	s.mutex.Unlock()

	if s.rdb != nil {
		if err := s.rdb.Publish(ctx, configUpdateChannel, key).Err(); err != nil {
			log.Printf("Warning: Failed to publish config update notification for key '%s': %v", key, err)
		}
	}
	return nil
}

// SubscribeToChanges reloads the caches on every config_updates message.
// It blocks until ctx is cancelled.
func (s *settingsService) SubscribeToChanges(ctx context.Context) error {
	if s.rdb == nil {
		log.Println("Redis client not configured, cannot subscribe to config changes.")
		return nil
	}

	pubsub := s.rdb.Subscribe(ctx, configUpdateChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return fmt.Errorf("failed to receive confirmation from Redis Pub/Sub subscription: %w", err)
	}
	log.Println("Subscribed to Redis channel for config updates:", configUpdateChannel)

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			log.Println("Config Pub/Sub listener stopped.")
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			log.Printf("Received config update notification: %s", msg.Payload)
			if err := s.Load(ctx); err != nil {
				log.Printf("ERROR reloading config from DB after notification: %v", err)
			}
		}
	}
}
