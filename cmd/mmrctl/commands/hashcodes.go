package commands

import (
	"fmt"
	"iter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/hashstore"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/lsh"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/platform"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/redis"
)

var (
	hashStore string
	hashFresh bool
)

var hashcodesCmd = &cobra.Command{
	Use:   "hashcodes",
	Short: "Hash stored descriptors into the inverted hash index",
	Long: `Hash every vector in the vector index and add its key to the bucket of its
hash code. The existing index is loaded first and extended, so running the
command twice yields the same index.

--store file writes a zstd-compressed JSON snapshot to storage.hashIndexPath;
--store redis adds members to Redis sets under redis.keyPrefix.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig
		ctx := cmd.Context()
		m := metrics.New(nil)

		var store hashstore.Store
		switch hashStore {
		case "file":
			store = platform.NewFileStore(cfg)
		case "redis":
			client, err := redis.NewClient(cfg.Redis)
			if err != nil {
				return err
			}
			defer client.Close()
			rs := hashstore.NewRedis(client, cfg.Redis.KeyPrefix)
			if hashFresh {
				if err := rs.Clear(ctx); err != nil {
					return err
				}
			}
			store = rs
		default:
			return fmt.Errorf("unknown store %q, want file or redis", hashStore)
		}

		index, err := platform.OpenVectorIndex(cfg)
		if err != nil {
			return fmt.Errorf("opening vector index: %w", err)
		}
		defer index.Close()
		functor, err := platform.NewFunctor(cfg)
		if err != nil {
			return err
		}

		hash2ids := lsh.InvertedIndex{}
		if !hashFresh {
			if hash2ids, err = store.Load(ctx); err != nil {
				return err
			}
		}

		var keysErr error
		keys := firstError(index.Keys(ctx), &keysErr)
		hash2ids, err = lsh.ComputeHashCodes(ctx, keys, index, functor, hash2ids, platform.HashOptions(cfg, index, m))
		if err != nil {
			return err
		}
		if keysErr != nil {
			return fmt.Errorf("listing vector keys: %w", keysErr)
		}
		if err := store.Save(ctx, hash2ids); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%d buckets, %d memberships\n", len(hash2ids), hash2ids.Memberships())
		return nil
	},
}

// firstError drops the error half of seq, stopping at and recording the
// first error.
func firstError[T any](seq iter.Seq2[T, error], errp *error) iter.Seq[T] {
	return func(yield func(T) bool) {
		for v, err := range seq {
			if err != nil {
				*errp = err
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

func init() {
	hashcodesCmd.Flags().StringVar(&hashStore, "store", "file", "where to persist the hash index: file or redis")
	hashcodesCmd.Flags().BoolVar(&hashFresh, "fresh", false, "start from an empty index instead of extending the stored one")
	rootCmd.AddCommand(hashcodesCmd)
}
