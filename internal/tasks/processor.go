package tasks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/hibiken/asynq"
	"github.com/nfnt/resize"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/Meekal-Jamil/travelbid/internal/config"
	"github.com/Meekal-Jamil/travelbid/internal/email"
	"github.com/Meekal-Jamil/travelbid/internal/services"
	"github.com/Meekal-Jamil/travelbid/internal/storage"
)

// TaskProcessor holds what the task handlers need.
type TaskProcessor struct {
	cfg         *config.Config
	emailSender email.Sender
	storage     storage.IS3Storage
	userService services.IUserService
	tripService services.ITripService
	bidService  services.IBidService
	now         func() time.Time
}

func NewTaskProcessor(
	cfg *config.Config,
	emailSender email.Sender,
	storageService storage.IS3Storage,
	userService services.IUserService,
	tripService services.ITripService,
	bidService services.IBidService,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:         cfg,
		emailSender: emailSender,
		storage:     storageService,
		userService: userService,
		tripService: tripService,
		bidService:  bidService,
		now:         time.Now,
	}
}

// SetupServer configures the asynq server and its handlers. The caller runs
// it with srv.Start(mux) and stops it with srv.Shutdown().
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	srv := asynq.NewServer(
		RedisOpt(rdb),
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				QueueCritical: 6,
				QueueImages:   5,
				QueueDefault:  3,
				QueueLow:      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), task.Payload(), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeEmailDelivery, processor.HandleEmailDeliveryTask)
	mux.HandleFunc(TypeImageProcess, processor.HandleImageProcessTask)
	mux.HandleFunc(TypeExpireSweep, processor.HandleExpireSweepTask)
	mux.HandleFunc(TypeStatsReconcile, processor.HandleStatsReconcileTask)
	return srv, mux
}

// HandleEmailDeliveryTask renders a template for a user and sends it.
func (p *TaskProcessor) HandleEmailDeliveryTask(ctx context.Context, t *asynq.Task) error {
	var payload EmailTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal email task payload: %v: %w", err, asynq.SkipRetry)
	}
	if !email.KnownTemplate(payload.Template) {
		return fmt.Errorf("unknown email template %q: %w", payload.Template, asynq.SkipRetry)
	}
	userID, err := primitive.ObjectIDFromHex(payload.UserID)
	if err != nil {
		return fmt.Errorf("invalid user id %q in email task: %w", payload.UserID, asynq.SkipRetry)
	}

	recipient, err := p.userService.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, services.ErrUserNotFound) {
			return fmt.Errorf("email recipient %s not found: %w", payload.UserID, asynq.SkipRetry)
		}
		return err
	}

	data := email.TemplateData{
		AppName:       p.cfg.AppName,
		RecipientName: recipient.Name,
		TripTitle:     payload.TripTitle,
		Destination:   payload.Destination,
		Price:         payload.Price,
	}
	if cid, err := primitive.ObjectIDFromHex(payload.CounterpartyID); err == nil {
		if other, err := p.userService.FindByID(ctx, cid); err == nil {
			data.CounterpartyName = other.Name
		} else {
			log.Printf("Could not resolve counterparty %s for %s email: %v", payload.CounterpartyID, payload.Template, err)
		}
	}

	subject, body, err := email.Render(payload.Template, data)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	from := p.cfg.SmtpFromAddress
	if from == "" {
		from = "noreply@travelbid.local"
	}
	raw := email.BuildMessage(from, recipient.Email, subject, payload.Template, body, p.now())
	if err := p.emailSender.Send(ctx, []string{recipient.Email}, subject, raw); err != nil {
		return fmt.Errorf("failed to send %s email to user %s: %w", payload.Template, payload.UserID, err)
	}

	log.Printf("Email task processed: Template=%s, User=%s", payload.Template, payload.UserID)
	return nil
}

// HandleImageProcessTask shrinks an uploaded trip photo to the configured
// bounds and records it on the trip.
func (p *TaskProcessor) HandleImageProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload ImageTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal image task payload: %v: %w", err, asynq.SkipRetry)
	}
	tripID, err := primitive.ObjectIDFromHex(payload.TripID)
	if err != nil {
		return fmt.Errorf("invalid trip id %q in image task: %w", payload.TripID, asynq.SkipRetry)
	}
	if !strings.HasPrefix(payload.S3Key, storage.TripKeyPrefix(payload.TripID)) {
		return fmt.Errorf("image key %s does not belong to trip %s: %w", payload.S3Key, payload.TripID, asynq.SkipRetry)
	}
	if p.storage == nil {
		return fmt.Errorf("image storage is not configured: %w", asynq.SkipRetry)
	}

	data, contentType, err := p.storage.GetObject(ctx, payload.S3Key)
	if err != nil {
		var nsk *types.NoSuchKey
		if errors.As(err, &nsk) {
			return fmt.Errorf("s3 object %s not found: %w", payload.S3Key, asynq.SkipRetry)
		}
		return err
	}

	processed, processedType, err := p.normalizeImage(data, contentType)
	if err != nil {
		return fmt.Errorf("image %s rejected: %v: %w", payload.S3Key, err, asynq.SkipRetry)
	}
	if processed != nil {
		if err := p.storage.PutObject(ctx, payload.S3Key, processed, processedType); err != nil {
			return err
		}
	}

	if err := p.tripService.AddImage(ctx, tripID, payload.S3Key); err != nil {
		if errors.Is(err, services.ErrTripNotFound) {
			return fmt.Errorf("trip %s no longer exists: %w", payload.TripID, asynq.SkipRetry)
		}
		return err
	}
	log.Printf("Image task processed: Key=%s, Trip=%s", payload.S3Key, payload.TripID)
	return nil
}

// normalizeImage returns nil data when the original can be kept as is.
func (p *TaskProcessor) normalizeImage(data []byte, contentType string) ([]byte, string, error) {
	maxBytes := p.cfg.ImageMaxSizeMB * 1024 * 1024
	if maxBytes > 0 && len(data) > maxBytes {
		return nil, "", fmt.Errorf("size %d exceeds %d bytes", len(data), maxBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("unsupported or corrupt image: %w", err)
	}

	limit := uint(p.cfg.ImageMaxDimension)
	if limit == 0 || (uint(img.Bounds().Dx()) <= limit && uint(img.Bounds().Dy()) <= limit) {
		return nil, contentType, nil
	}

	resized := resize.Thumbnail(limit, limit, img, resize.Lanczos3)
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: 85}); err != nil {
		return nil, "", fmt.Errorf("failed to re-encode %s image: %w", format, err)
	}
	log.Printf("Resized %s image from %dx%d to %dx%d", format,
		img.Bounds().Dx(), img.Bounds().Dy(), resized.Bounds().Dx(), resized.Bounds().Dy())
	return buf.Bytes(), "image/jpeg", nil
}

// HandleExpireSweepTask expires bids on open trips that have already started.
func (p *TaskProcessor) HandleExpireSweepTask(ctx context.Context, t *asynq.Task) error {
	n, err := p.bidService.ExpireStaleBids(ctx, p.now().UTC())
	if err != nil {
		return fmt.Errorf("expire sweep stopped after %d bids: %w", n, err)
	}
	log.Printf("Expire sweep finished. Expired %d bids.", n)
	return nil
}

// HandleStatsReconcileTask recomputes stats for one agent or for all of them.
func (p *TaskProcessor) HandleStatsReconcileTask(ctx context.Context, t *asynq.Task) error {
	var payload StatsReconcilePayload
	if len(t.Payload()) > 0 {
		if err := json.Unmarshal(t.Payload(), &payload); err != nil {
			return fmt.Errorf("failed to unmarshal reconcile payload: %v: %w", err, asynq.SkipRetry)
		}
	}

	var agents []primitive.ObjectID
	if payload.AgentID != "" {
		id, err := primitive.ObjectIDFromHex(payload.AgentID)
		if err != nil {
			return fmt.Errorf("invalid agent id %q: %w", payload.AgentID, asynq.SkipRetry)
		}
		agents = append(agents, id)
	} else {
		ids, err := p.userService.ListAgentIDs(ctx)
		if err != nil {
			return err
		}
		agents = ids
	}

	failed := 0
	for _, id := range agents {
		if _, err := p.userService.ReconcileAgentStats(ctx, id); err != nil {
			log.Printf("ERROR reconciling stats for agent %s: %v", id.Hex(), err)
			failed++
		}
	}
	log.Printf("Stats reconcile finished for %d agents (%d failed).", len(agents), failed)
	if failed > 0 {
		return fmt.Errorf("stats reconcile failed for %d of %d agents", failed, len(agents))
	}
	return nil
}
