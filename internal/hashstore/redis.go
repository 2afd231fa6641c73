package hashstore

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/lsh"
	apperrors "github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/resilience"
)

// SetClient is the subset of pkg/redis.Client used by Redis.
type SetClient interface {
	SAddMany(ctx context.Context, sets []redis.SetMembers) error
	SMembers(ctx context.Context, key string) ([]string, error)
	DeleteByPattern(ctx context.Context, pattern string) (int64, error)
}

// Redis keeps one set per hash code at "<prefix>:bucket:<code>" plus the set
// of known codes at "<prefix>:codes". Save is additive, so several indexers
// may extend the same index.
type Redis struct {
	client    SetClient
	prefix    string
	chunkSize int
	backoff   resilience.Backoff
	logger    *slog.Logger
	reads     singleflight.Group
}

func NewRedis(client SetClient, prefix string) *Redis {
	return &Redis{
		client:    client,
		prefix:    prefix,
		chunkSize: 500,
		backoff:   resilience.Backoff{Attempts: 3},
		logger:    slog.Default().With("component", "hashstore-redis", "prefix", prefix),
	}
}

func (r *Redis) codesKey() string { return r.prefix + ":codes" }

func (r *Redis) bucketKey(code lsh.HashCode) string { return r.prefix + ":bucket:" + string(code) }

// Save adds every membership of idx. Codes are written in sorted chunks,
// each in one transaction retried with backoff.
func (r *Redis) Save(ctx context.Context, idx lsh.InvertedIndex) error {
	codes := make([]lsh.HashCode, 0, len(idx))
	for code := range idx {
		codes = append(codes, code)
	}
	slices.Sort(codes)

	for chunk := range slices.Chunk(codes, r.chunkSize) {
		sets := make([]redis.SetMembers, 0, len(chunk)+1)
		names := make([]string, len(chunk))
		for i, code := range chunk {
			names[i] = string(code)
			sets = append(sets, redis.SetMembers{Key: r.bucketKey(code), Members: idx.IDs(code)})
		}
		sets = append(sets, redis.SetMembers{Key: r.codesKey(), Members: names})
		err := resilience.Retry(ctx, "hashstore save", r.backoff, func(ctx context.Context) error {
			return r.client.SAddMany(ctx, sets)
		})
		if err != nil {
			return fmt.Errorf("saving %d buckets: %w", len(chunk), err)
		}
	}
	r.logger.Info("hash index saved", "buckets", len(idx), "memberships", idx.Memberships())
	return nil
}

func (r *Redis) Load(ctx context.Context) (lsh.InvertedIndex, error) {
	names, err := r.client.SMembers(ctx, r.codesKey())
	if err != nil {
		return nil, fmt.Errorf("reading hash codes: %w", err)
	}
	idx := make(lsh.InvertedIndex, len(names))
	for _, name := range names {
		code, err := lsh.ParseHashCode(name)
		if err != nil {
			return nil, err
		}
		ids, err := r.Bucket(ctx, code)
		if err != nil {
			return nil, err
		}
		for _, id := range ids {
			idx.Add(code, id)
		}
	}
	r.logger.Info("hash index loaded", "buckets", len(idx), "memberships", idx.Memberships())
	return idx, nil
}

// Bucket reads a single code's keys without loading the whole index.
// Concurrent reads of the same bucket share one round trip, which is not
// cancelled when the caller that started it gives up.
func (r *Redis) Bucket(ctx context.Context, code lsh.HashCode) ([]string, error) {
	flightCtx := context.WithoutCancel(ctx)
	ch := r.reads.DoChan(string(code), func() (any, error) {
		ids, err := r.client.SMembers(flightCtx, r.bucketKey(code))
		if err != nil {
			return nil, fmt.Errorf("reading bucket %s: %w", code, err)
		}
		slices.Sort(ids)
		return ids, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]string)), nil
	}
}

// Clear removes every key under the prefix.
func (r *Redis) Clear(ctx context.Context) error {
	if r.prefix == "" {
		return fmt.Errorf("%w: refusing to clear an unprefixed keyspace", apperrors.ErrInvalidInput)
	}
	n, err := r.client.DeleteByPattern(ctx, r.prefix+":*")
	if err != nil {
		return fmt.Errorf("clearing hash index: %w", err)
	}
	r.logger.Info("hash index cleared", "keys", n)
	return nil
}
