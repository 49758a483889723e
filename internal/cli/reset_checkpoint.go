package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

var resetCheckpointCmd = &cobra.Command{
	Use:   "reset-checkpoint [contract_address] [ledger]",
	Short: "Overwrite the checkpoint for a contract, bypassing the no-regression rule",
	Args:  cobra.ExactArgs(2),
	Run:   runResetCheckpoint,
}

func init() {
	rootCmd.AddCommand(resetCheckpointCmd)
}

func runResetCheckpoint(cmd *cobra.Command, args []string) {
	contract := args[0]
	ledger, err := strconv.ParseUint(args[1], 10, 64)
	if err != nil {
		fmt.Printf("Invalid ledger sequence: %v\n", err)
		os.Exit(1)
	}

	cfg := loadConfig()
	ctx := context.Background()

	b := openBackend(ctx, cfg, false)
	defer b.Close()

	if err := b.Checkpoints.Reset(ctx, contract, ledger); err != nil {
		slog.Error("Failed to reset checkpoint", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Successfully reset checkpoint for %s to ledger %d\n", contract, ledger)
}
