package main

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/discochess/irwin/internal/gamemodel"
	"github.com/discochess/irwin/internal/model"
	"github.com/discochess/irwin/internal/store"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Show the saved model",
	Long: `Read the saved model from the configured store and print its format
version, training step and parameter tensors.`,
	Args: cobra.NoArgs,
	RunE: runInspect,
}

var inspectTensors bool

func init() {
	inspectCmd.Flags().BoolVar(&inspectTensors, "tensors", false, "list every parameter tensor")
	rootCmd.AddCommand(inspectCmd)
}

func runInspect(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := cfg.OpenStore(ctx)
	if err != nil {
		return fmt.Errorf("opening model store: %w", err)
	}
	defer st.Close()

	data, err := st.Read(ctx, gamemodel.Name)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no saved model in the %s store; run 'irwin train' first", cfg.Model.Backend)
	}
	if err != nil {
		return fmt.Errorf("reading model: %w", err)
	}

	h, err := model.ReadHeader(bytes.NewReader(data))
	if err != nil {
		return err
	}

	var params int
	for _, t := range h.Tensors {
		params += t.Rows * t.Cols
	}

	fmt.Printf("Model:        %s\n", h.Architecture)
	fmt.Printf("Format:       %s\n", h.Version)
	fmt.Printf("Step:         %d\n", h.Step)
	fmt.Printf("Tensors:      %d\n", len(h.Tensors))
	fmt.Printf("Parameters:   %d\n", params)
	fmt.Printf("Encoded size: %s\n", formatBytes(int64(len(data))))

	if inspectTensors {
		fmt.Println()
		for _, t := range h.Tensors {
			fmt.Printf("  %-32s %5d x %-5d\n", t.Name, t.Rows, t.Cols)
		}
	}
	return nil
}

func formatBytes(size int64) string {
	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(size)/float64(div), "KMGTPE"[exp])
}
