package commands

import (
	"fmt"
	"io/fs"
	"iter"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/descriptor"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/events"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/internal/platform"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/Multimedia-Retrieval-Platform/pkg/metrics"
)

var (
	computeBatchSize int
	computeOverwrite bool
	computePublish   bool
)

var computeCmd = &cobra.Command{
	Use:   "compute <path>...",
	Short: "Compute descriptors for files",
	Long: `Walk the given files and directories, compute a descriptor for every file
and store it in the vector index. Each processed file prints one
"<path>\t<vector key>" line, in walk order.

With --publish a DescriptorComputed event is sent to Kafka per file so a
running hashindexer can extend the hash index incrementally.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := globalConfig
		ctx := cmd.Context()
		if !cmd.Flags().Changed("batch-size") {
			computeBatchSize = cfg.Pipeline.BatchSize
		}
		if !cmd.Flags().Changed("overwrite") {
			computeOverwrite = cfg.Pipeline.Overwrite
		}

		m := metrics.New(nil)
		index, err := platform.OpenVectorIndex(cfg)
		if err != nil {
			return fmt.Errorf("opening vector index: %w", err)
		}
		defer index.Close()

		gen, closer, err := platform.NewGenerator(cfg, index, m)
		if err != nil {
			return err
		}
		defer closer.Close()

		var pub *events.Publisher
		if computePublish {
			producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DescriptorComputed)
			defer producer.Close()
			pub = events.NewPublisher(producer, events.Options{Metrics: m})
			pub.Start(ctx)
			defer pub.Close()
		}

		var walkErr error
		items := walkItems(args, &walkErr)
		pipeline := indexer.NewPipeline(gen, index, indexer.WithMetrics(m))
		out := cmd.OutOrStdout()
		for pair, err := range pipeline.ComputeMany(ctx, items, indexer.Options{
			BatchSize:   indexer.BatchSize(computeBatchSize),
			Overwrite:   computeOverwrite,
			Concurrency: cfg.Pipeline.Concurrency,
		}) {
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s\t%s\n", pair.ID, pair.Vector.Key)
			if pub != nil {
				pub.DescriptorComputed(pair.ID, pair.Vector, gen.Name())
			}
		}
		return walkErr
	},
}

// walkItems lazily yields one item per regular file under paths. The first
// walk error stops the sequence and is stored in errp.
func walkItems(paths []string, errp *error) iter.Seq[descriptor.Item] {
	return func(yield func(descriptor.Item) bool) {
		stopped := false
		for _, root := range paths {
			err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.Type().IsRegular() {
					return nil
				}
				content, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if !yield(descriptor.Item{ID: path, ContentType: contentType(path, content), Content: content}) {
					stopped = true
					return fs.SkipAll
				}
				return nil
			})
			if err != nil {
				*errp = fmt.Errorf("walking %s: %w", root, err)
				return
			}
			if stopped {
				return
			}
		}
	}
}

func contentType(path string, content []byte) string {
	if ct := mime.TypeByExtension(filepath.Ext(path)); ct != "" {
		return ct
	}
	return http.DetectContentType(content)
}

func init() {
	computeCmd.Flags().IntVar(&computeBatchSize, "batch-size", 0, "items per generator call, 0 for a single batch")
	computeCmd.Flags().BoolVar(&computeOverwrite, "overwrite", false, "recompute descriptors that already exist")
	computeCmd.Flags().BoolVar(&computePublish, "publish", false, "publish DescriptorComputed events to Kafka")
	rootCmd.AddCommand(computeCmd)
}
