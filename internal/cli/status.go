package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	redisclient "github.com/vietddude/ledgersync/internal/infra/redis"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show checkpoints and queue depths",
	Run:   runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) {
	cfg := loadConfig()
	ctx := context.Background()

	b := openBackend(ctx, cfg, false)
	defer b.Close()

	cps, err := b.Checkpoints.List(ctx)
	if err != nil {
		slog.Error("Failed to list checkpoints", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "CONTRACT\tLEDGER\tUPDATED")
	for _, cp := range cps {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", cp.ContractAddress, cp.LedgerSeq, cp.UpdatedAt.Format(time.RFC3339))
	}
	_ = w.Flush()

	if b.Redis == nil {
		return
	}
	q := redisclient.NewJobQueue(b.Redis)

	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "QUEUE\tPENDING\tDEAD")
	for _, name := range []string{cfg.Queue.TransferKey, cfg.Queue.ApprovalKey} {
		pending, dead, err := q.Len(ctx, name)
		if err != nil {
			slog.Warn("Failed to read queue length", "queue", name, "error", err)
			continue
		}
		_, _ = fmt.Fprintf(w, "%s\t%d\t%d\n", name, pending, dead)
	}
	_ = w.Flush()
}
