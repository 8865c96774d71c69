package db

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// Operation is a function that performs an action and returns an error if it fails.
type Operation func() error

// IsRetryable decides whether a failed Operation should be attempted again.
type IsRetryable func(err error) bool

const DefaultMaxRetries = 3

// Try runs op, retrying when the insert collided on the _id index.
// Collisions on other unique indexes (e.g. users.email) are returned immediately.
func Try(op Operation) error {
	return WithRetries(op, DefaultMaxRetries, IsIDCollision)
}

// WithRetries runs op up to maxRetries+1 times while retryable(err) holds.
func WithRetries(op Operation, maxRetries int, retryable IsRetryable) error {
	var err error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err = op()
		if err == nil {
			return nil
		}
		if attempt == maxRetries || !retryable(err) {
			return err
		}
		time.Sleep(time.Duration(50*(attempt+1)) * time.Millisecond)
	}
	return err
}

// IsMongoDuplicateKeyError checks if an error from MongoDB is a duplicate key error (code 11000).
func IsMongoDuplicateKeyError(err error) bool {
	return len(duplicateKeyMessages(err)) > 0
}

// IsIDCollision reports a duplicate key error on the _id index.
func IsIDCollision(err error) bool {
	for _, msg := range duplicateKeyMessages(err) {
		if strings.Contains(msg, "_id_") {
			return true
		}
	}
	return false
}

// IsDuplicateOn reports a duplicate key error raised by the named index.
func IsDuplicateOn(err error, index string) bool {
	for _, msg := range duplicateKeyMessages(err) {
		if strings.Contains(msg, "index: "+index) {
			return true
		}
	}
	return false
}

func duplicateKeyMessages(err error) []string {
	var msgs []string
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 {
				msgs = append(msgs, e.Message)
			}
		}
	}
	var bwe mongo.BulkWriteException
	if errors.As(err, &bwe) {
		for _, e := range bwe.WriteErrors {
			if e.Code == 11000 {
				msgs = append(msgs, e.Message)
			}
		}
	}
	return msgs
}
