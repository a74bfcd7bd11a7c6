package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/irwin/internal/db/boltdb"
	"github.com/discochess/irwin/internal/game"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load games, players and activations into the database",
	Long: `Load training records into the database. Each input holds one JSON
object per line.

  games        {"id", "white", "black", "pgn": [SAN...], "emts": [...], "analysis": [{"cp"}|{"mate"}...]}
  players      {"id", "engine"}
  activations  {"gameId", "userId", "engine", "prediction"}

Files ending in .zst are decompressed.

Examples:
  irwin import --games games.jsonl.zst --players players.jsonl
  irwin import --activations activations.jsonl`,
	RunE: runImport,
}

var (
	importGames       string
	importPlayers     string
	importActivations string
	importBatchSize   int
)

func init() {
	importCmd.Flags().StringVar(&importGames, "games", "", "games JSONL file")
	importCmd.Flags().StringVar(&importPlayers, "players", "", "players JSONL file")
	importCmd.Flags().StringVar(&importActivations, "activations", "", "activations JSONL file")
	importCmd.Flags().IntVar(&importBatchSize, "batch-size", 1000, "records per write transaction")
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	if importGames == "" && importPlayers == "" && importActivations == "" {
		return fmt.Errorf("nothing to import: set --games, --players or --activations")
	}
	if importBatchSize < 1 {
		return fmt.Errorf("batch size must be positive, got %d", importBatchSize)
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	bolt, err := boltdb.Open(cfg.DataDir)
	if err != nil {
		return err
	}
	defer bolt.Close()

	if importGames != "" {
		n, err := importFile(ctx, importGames, func(games []game.Game) error {
			return bolt.PutGames(ctx, games...)
		})
		if err != nil {
			return err
		}
		fmt.Printf("Games:       %d\n", n)
	}
	if importPlayers != "" {
		n, err := importFile(ctx, importPlayers, func(players []game.Player) error {
			return bolt.PutPlayers(ctx, players...)
		})
		if err != nil {
			return err
		}
		fmt.Printf("Players:     %d\n", n)
	}
	if importActivations != "" {
		n, err := importFile(ctx, importActivations, func(activations []game.Activation) error {
			return bolt.PutActivations(ctx, activations...)
		})
		if err != nil {
			return err
		}
		fmt.Printf("Activations: %d\n", n)
	}
	return nil
}

func importFile[T any](ctx context.Context, path string, put func([]T) error) (int, error) {
	in, err := openInput(path)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	n, err := readJSONL(ctx, in, importBatchSize, put)
	if err != nil {
		return n, fmt.Errorf("importing %s: %w", path, err)
	}
	return n, nil
}
