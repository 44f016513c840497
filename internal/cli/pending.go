package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/availops/creditflow/internal/core/config"
	"github.com/availops/creditflow/internal/infra/journal"
)

var pendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "List paid-but-not-credited purchases",
	Long:  `Lists journal entries where the on-chain payment settled but the inclusion report never reached the backend. These need manual reconciliation.`,
	Run:   runPending,
}

func init() {
	rootCmd.AddCommand(pendingCmd)
}

func runPending(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("No database configured; the journal only persists with one")
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	jnl, err := journal.NewPostgresJournal(ctx, cfg.Database, migrationsDir)
	if err != nil {
		slog.Error("Failed to open purchase journal", "error", err)
		os.Exit(1)
	}
	defer jnl.Close()

	entries, err := jnl.Unreconciled(ctx)
	if err != nil {
		slog.Error("Failed to list unreconciled purchases", "error", err)
		os.Exit(1)
	}

	if len(entries) == 0 {
		fmt.Println("No purchases awaiting reconciliation.")
		return
	}

	fmt.Printf("%-38s %-8s %-8s %-68s %s\n", "PURCHASE", "ORDER", "CHAIN", "TX HASH", "SINCE")
	for _, e := range entries {
		fmt.Printf("%-38s %-8d %-8s %-68s %s\n",
			e.PurchaseID, e.OrderID, e.ChainID, e.TxHash,
			e.CreatedAt.Format(time.RFC3339))
	}
	fmt.Printf("\n%d purchase(s) paid but not credited.\n", len(entries))
}
