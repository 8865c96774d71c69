package models

// RateLimitConfig holds token bucket parameters.
type RateLimitConfig struct {
	BucketSize      int `bson:"bucket_size" json:"bucket_size"`
	TokenRefillRate int `bson:"token_refill_rate" json:"token_refill_rate"` // Tokens per second
}

// APIEndpointConfig overrides the default rate limit for one route.
// Stored in the `api_endpoints_config` collection.
type APIEndpointConfig struct {
	Base      `bson:",inline"`
	Method    string           `bson:"method" json:"method"`     // HTTP method, empty matches any
	Endpoint  string           `bson:"endpoint" json:"endpoint"` // gin route path, e.g. /api/trips/:id/bid
	RateLimit *RateLimitConfig `bson:"rate_limit,omitempty" json:"rate_limit,omitempty"`
}

// ConfigEntry is a document in the configuration collection.
type ConfigEntry struct {
	Key    string      `bson:"key" json:"key"`
	Value  interface{} `bson:"value" json:"value"`
	Public bool        `bson:"public" json:"public"`
}
