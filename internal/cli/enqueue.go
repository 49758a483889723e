package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/ledgersync/internal/core/domain"
	"github.com/vietddude/ledgersync/internal/indexing/queue"
	redisclient "github.com/vietddude/ledgersync/internal/infra/redis"
)

var enqueueCmd = &cobra.Command{
	Use:       "enqueue [transfer|approval] [json]",
	Short:     "Push a job onto the ingestion queue",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{string(domain.JobTypeTransfer), string(domain.JobTypeApproval)},
	Run:       runEnqueue,
}

func init() {
	rootCmd.AddCommand(enqueueCmd)
}

func runEnqueue(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	var (
		job  any
		name string
	)
	switch domain.JobType(args[0]) {
	case domain.JobTypeTransfer:
		job, name = &domain.TransferJob{}, cfg.Queue.TransferKey
	case domain.JobTypeApproval:
		job, name = &domain.ApprovalJob{}, cfg.Queue.ApprovalKey
	default:
		fmt.Printf("Unknown job type %q\n", args[0])
		os.Exit(1)
	}
	if err := json.Unmarshal([]byte(args[1]), job); err != nil {
		fmt.Printf("Invalid job JSON: %v\n", err)
		os.Exit(1)
	}

	if cfg.Redis.URL == "" {
		slog.Error("redis.url is required to enqueue jobs")
		os.Exit(1)
	}
	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	defer func() {
		_ = client.Close()
	}()

	env, err := queue.NewEnvelope(domain.JobType(args[0]), job)
	if err != nil {
		slog.Error("Failed to build job", "error", err)
		os.Exit(1)
	}
	if err := redisclient.NewJobQueue(client).Push(context.Background(), name, env); err != nil {
		slog.Error("Failed to enqueue job", "error", err)
		os.Exit(1)
	}

	fmt.Printf("Enqueued %s job on %s\n", args[0], name)
}
