package services

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Meekal-Jamil/travelbid/internal/models"
)

// statsChange is a pending $inc against one agent's stats.
type statsChange struct {
	agent primitive.ObjectID
	inc   bson.M
}

// statsField maps a bid status to the counter that tracks it.
// Expired bids are reported as rejected.
func statsField(status models.BidStatus) string {
	switch status {
	case models.BidPending:
		return "stats.pending_bids"
	case models.BidAccepted:
		return "stats.accepted_bids"
	case models.BidRejected, models.BidExpired:
		return "stats.rejected_bids"
	}
	return ""
}

// statsDelta returns the counter increments for a bid moving from one status
// to another. An empty from means the bid was just created. The result is
// nil when the move does not change any counter.
func statsDelta(from, to models.BidStatus) bson.M {
	inc := bson.M{}
	if from == "" {
		inc["stats.total_bids"] = 1
	} else if f := statsField(from); f != "" {
		inc[f] = -1
	}
	if t := statsField(to); t != "" {
		inc[t] = addInc(inc[t], 1)
	}
	for k, v := range inc {
		if n, ok := v.(int); ok && n == 0 {
			delete(inc, k)
		}
	}
	if len(inc) == 0 {
		return nil
	}
	return inc
}

func earningsDelta(amount float64) bson.M {
	return bson.M{"stats.total_earnings": amount}
}

func addInc(cur interface{}, n interface{}) interface{} {
	switch c := cur.(type) {
	case nil:
		return n
	case int:
		switch v := n.(type) {
		case int:
			return c + v
		case float64:
			return float64(c) + v
		}
	case float64:
		switch v := n.(type) {
		case int:
			return c + float64(v)
		case float64:
			return c + v
		}
	}
	return n
}

// mergeStats folds changes into one $inc document per agent.
func mergeStats(changes []statsChange) map[primitive.ObjectID]bson.M {
	merged := make(map[primitive.ObjectID]bson.M)
	for _, ch := range changes {
		if len(ch.inc) == 0 {
			continue
		}
		doc, ok := merged[ch.agent]
		if !ok {
			doc = bson.M{}
			merged[ch.agent] = doc
		}
		for k, v := range ch.inc {
			doc[k] = addInc(doc[k], v)
		}
	}
	return merged
}

// applyStats writes all changes with atomic $inc in a single unordered bulk write.
func applyStats(ctx context.Context, users *mongo.Collection, changes []statsChange) error {
	merged := mergeStats(changes)
	if len(merged) == 0 {
		return nil
	}
	writes := make([]mongo.WriteModel, 0, len(merged))
	for agent, inc := range merged {
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": agent}).
			SetUpdate(bson.M{"$inc": inc}))
	}
	if _, err := users.BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(false)); err != nil {
		return fmt.Errorf("failed to apply agent stats for %d agents: %w", len(merged), err)
	}
	return nil
}
