// Package relay propagates command batches between caretd processes over
// Redis pub/sub, so a document's sessions can be spread across more than
// one server. A session.Hub stays authoritative for its own in-process
// sessions; relay only forwards batches it receives from elsewhere into the
// local Hub, and publishes batches the local Hub integrated from its own
// sessions.
package relay

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/caretdoc/caret/internal/doc"
	"github.com/caretdoc/caret/session"
)

const channelPrefix = "caret:doc:"

func channelFor(docID string) string {
	return channelPrefix + docID
}

// wireEnvelope is the payload published to a document's channel: the
// originating server so it can ignore its own publications on replay, plus
// the encoded command batch.
type wireEnvelope struct {
	Origin   string          `json:"origin"`
	Commands json.RawMessage `json:"commands"`
}

// Relay subscribes to Redis channels for the documents it is told to watch
// and republishes locally-integrated batches to every other subscriber.
type Relay struct {
	client  *redis.Client
	hub     *session.Hub
	log     *zap.Logger
	origin  string
	breaker *gobreaker.CircuitBreaker
}

// Config configures a Relay's Redis connection.
type Config struct {
	Addr string
	DB   int

	// Origin identifies this process's own publications so a Relay never
	// re-delivers a batch to the Hub that produced it. Callers normally
	// pass a UUID or hostname.
	Origin string
}

// New connects to Redis and returns a Relay. It does not start subscribing;
// call Watch per document to pump incoming batches.
func New(cfg Config, hub *session.Hub, log *zap.Logger) *Relay {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("relay")

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DB:           cfg.DB,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MaxRetries:   3,
	})

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "relay-redis",
		MaxRequests: 1,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 5 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state change", zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
		},
	})

	return &Relay{client: client, hub: hub, log: log, origin: cfg.Origin, breaker: breaker}
}

// Close releases the underlying Redis client.
func (r *Relay) Close() error {
	return r.client.Close()
}

// Publish sends batch to every other process watching docID. Failures are
// retried with backoff under circuit-breaker protection; a persistent
// failure is logged and swallowed, since relay is best-effort — the
// document itself was already integrated locally and is not at risk.
func (r *Relay) Publish(ctx context.Context, docID string, batch doc.CommandSet) {
	encoded, err := doc.EncodeCommandSet(batch)
	if err != nil {
		r.log.Error("encode batch for relay", zap.String("doc", docID), zap.Error(err))
		return
	}
	payload, err := json.Marshal(wireEnvelope{Origin: r.origin, Commands: encoded})
	if err != nil {
		r.log.Error("marshal relay envelope", zap.String("doc", docID), zap.Error(err))
		return
	}

	bo := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), 3), ctx)
	err = backoff.Retry(func() error {
		_, cbErr := r.breaker.Execute(func() (interface{}, error) {
			return nil, r.client.Publish(ctx, channelFor(docID), payload).Err()
		})
		if errors.Is(cbErr, gobreaker.ErrOpenState) {
			return backoff.Permanent(cbErr)
		}
		return cbErr
	}, bo)
	if err != nil {
		r.log.Warn("publish failed, dropping relay batch", zap.String("doc", docID), zap.Error(err))
	}
}

// Watch subscribes to docID's channel and feeds every remotely-published
// batch into the local Hub's document, until ctx is canceled. Run it as its
// own goroutine per document.
func (r *Relay) Watch(ctx context.Context, docID string) error {
	sub := r.client.Subscribe(ctx, channelFor(docID))
	defer sub.Close()

	document := r.hub.GetOrCreate(docID)
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return fmt.Errorf("relay: subscription to %s closed", docID)
			}
			var env wireEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				r.log.Warn("malformed relay envelope", zap.String("doc", docID), zap.Error(err))
				continue
			}
			if env.Origin == r.origin {
				continue
			}
			batch, err := doc.DecodeCommandSet(env.Commands)
			if err != nil {
				r.log.Warn("malformed relayed batch", zap.String("doc", docID), zap.Error(err))
				continue
			}
			if err := document.Integrate(batch); err != nil {
				r.log.Warn("relayed batch failed to integrate", zap.String("doc", docID), zap.Error(err))
			}
		}
	}
}
