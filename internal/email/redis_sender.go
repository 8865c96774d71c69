package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Meekal-Jamil/travelbid/internal/cache"
	"github.com/Meekal-Jamil/travelbid/internal/config"
)

const mockEmailTTL = 5 * time.Minute

// MockEmail is what RedisSender stores for each message.
type MockEmail struct {
	To       string `json:"to"`
	From     string `json:"from"`
	Subject  string `json:"subject"`
	Body     string `json:"body"`
	Template string `json:"template"`
	SentAt   string `json:"sent_at"`
}

// RedisSender stores messages in Redis so end-to-end tests can read them
// back through the service API. Used when MOCK_SERVICES is true.
type RedisSender struct {
	client *redis.Client
	cfg    *config.Config
}

func NewRedisSender(client *redis.Client, cfg *config.Config) Sender {
	return &RedisSender{client: client, cfg: cfg}
}

// Send keys the message by its first recipient and the template named in
// its X-Template header.
func (s *RedisSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	primaryTo := ""
	if len(to) > 0 {
		primaryTo = to[0]
	}

	template := "unknown"
	body := string(rawMessage)
	if msg, err := mail.ReadMessage(bytes.NewReader(rawMessage)); err == nil {
		if t := msg.Header.Get(TemplateHeader); t != "" {
			template = t
		}
		var buf bytes.Buffer
		if _, err := buf.ReadFrom(msg.Body); err == nil {
			body = buf.String()
		}
	}

	data, err := json.Marshal(MockEmail{
		To:       strings.Join(to, ", "),
		From:     s.cfg.SmtpFromAddress,
		Subject:  subject,
		Body:     body,
		Template: template,
		SentAt:   time.Now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal email data: %w", err)
	}

	key := cache.MockEmailKey(primaryTo, template)
	if err := s.client.Set(ctx, key, data, mockEmailTTL).Err(); err != nil {
		return fmt.Errorf("failed to store email in Redis key '%s': %w", key, err)
	}
	log.Printf("Mock email stored in Redis key '%s' (TTL: %v)", key, mockEmailTTL)
	return nil
}
