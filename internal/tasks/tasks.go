package tasks

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

// Task types handled by the bg worker.
const (
	TypeEmailDelivery  = "email:deliver"
	TypeImageProcess   = "image:process"
	TypeExpireSweep    = "bids:expire_sweep"
	TypeStatsReconcile = "agents:stats:reconcile"
)

const (
	QueueCritical = "critical"
	QueueDefault  = "default"
	QueueImages   = "images"
	QueueLow      = "low"
)

// Enqueuer is the part of *asynq.Client the API side needs.
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RedisOpt builds asynq connection options from an existing go-redis client.
func RedisOpt(rdb *redis.Client) asynq.RedisClientOpt {
	opts := rdb.Options()
	return asynq.RedisClientOpt{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}
}

// NewClient returns an asynq client on the same Redis as rdb.
func NewClient(rdb *redis.Client) *asynq.Client {
	return asynq.NewClient(RedisOpt(rdb))
}

// EmailTaskPayload names the recipient by user id; the worker resolves the address.
type EmailTaskPayload struct {
	UserID         string  `json:"user_id"`
	CounterpartyID string  `json:"counterparty_id,omitempty"`
	Template       string  `json:"template"`
	TripTitle      string  `json:"trip_title"`
	Destination    string  `json:"destination"`
	Price          float64 `json:"price"`
}

// ImageTaskPayload points at an uploaded trip photo awaiting normalization.
type ImageTaskPayload struct {
	S3Key  string `json:"s3_key"`
	TripID string `json:"trip_id"`
}

// StatsReconcilePayload targets one agent; an empty AgentID means every agent.
type StatsReconcilePayload struct {
	AgentID string `json:"agent_id,omitempty"`
}

func newJSONTask(typ string, payload interface{}, opts ...asynq.Option) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", typ, err)
	}
	return asynq.NewTask(typ, data, opts...), nil
}

func NewEmailDeliveryTask(payload EmailTaskPayload) (*asynq.Task, error) {
	return newJSONTask(TypeEmailDelivery, payload, asynq.Queue(QueueDefault), asynq.MaxRetry(5))
}

func NewImageProcessTask(tripID, key string) (*asynq.Task, error) {
	return newJSONTask(TypeImageProcess, ImageTaskPayload{S3Key: key, TripID: tripID}, asynq.Queue(QueueImages), asynq.MaxRetry(3))
}

func NewExpireSweepTask() *asynq.Task {
	return asynq.NewTask(TypeExpireSweep, nil, asynq.Queue(QueueLow), asynq.MaxRetry(1))
}

func NewStatsReconcileTask(agentID string) (*asynq.Task, error) {
	return newJSONTask(TypeStatsReconcile, StatsReconcilePayload{AgentID: agentID}, asynq.Queue(QueueLow), asynq.MaxRetry(1))
}
