package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/discochess/irwin"
	statslogger "github.com/discochess/irwin/internal/stats/logger"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest FILE...",
	Short: "Store analysed games produced by the analysis workers",
	Long: `Read analysed-game documents, one JSON object per line, and store
them in the database.

A batch holding any malformed document, including a line that is not
valid JSON, is rejected as a whole and logged; ingestion continues with
the next batch. Files ending in .zst are decompressed and "-" reads from
stdin.

Examples:
  irwin ingest analysed.jsonl
  irwin ingest --batch-size 100 analysed-*.jsonl.zst`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

var ingestBatchSize int

func init() {
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 500, "documents per batch")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	if ingestBatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", ingestBatchSize)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, cancel := signalContext()
	defer cancel()

	client, err := openClient(ctx, cfg, logger, statslogger.New(logger))
	if err != nil {
		return err
	}
	defer client.Close()

	var total int
	for _, path := range args {
		in, err := openInput(path)
		if err != nil {
			return err
		}
		n, err := ingest(ctx, in, ingestBatchSize, client, logger)
		in.Close()
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}
		logger.Info("ingested file", zap.String("path", path), zap.Int("documents", n))
		total += n
	}

	fmt.Printf("Read %d documents from %d files\n", total, len(args))
	return nil
}

// ingest stores the analysed-game documents read from r in batches. A
// batch with a line that is not valid JSON is dropped with a warning,
// the same way the client drops a batch with a malformed document.
func ingest(ctx context.Context, r io.Reader, size int, client *irwin.Client, logger *zap.Logger) (int, error) {
	return scanJSONL(ctx, r, size, true, func(b jsonlBatch[irwin.Document]) error {
		if len(b.Invalid) > 0 {
			logger.Warn("rejected analysed game batch",
				zap.Ints("invalidLines", b.Invalid),
				zap.Int("size", len(b.Records)+len(b.Invalid)),
			)
			return nil
		}
		return client.InsertAnalysedGames(ctx, b.Records)
	})
}
