package cli

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	domitem "github.com/lostlink/matcher/internal/domain/item"
	"github.com/lostlink/matcher/internal/logger"
)

func init() {
	RootCmd.AddCommand(&cobra.Command{
		Use:   "match <item-id>",
		Short: "Run matching once for an item and print the result",
		Args:  cobra.ExactArgs(1),
		RunE:  runMatch,
	})
}

// matchOutput is the printed form of a run.
type matchOutput struct {
	ItemID       string       `json:"item_id"`
	Candidates   int          `json:"candidates"`
	Linked       int          `json:"linked"`
	LinkFailures int          `json:"link_failures"`
	Matches      []matchEntry `json:"matches"`
}

type matchEntry struct {
	ID      string   `json:"id"`
	Title   string   `json:"title"`
	Score   float64  `json:"score"`
	Reasons []string `json:"reasons"`
}

func runMatch(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx := logger.ContextWithLogger(cmd.Context(), log)
	a, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() { _ = a.close(context.Background()) }()

	runCtx, cancel := context.WithTimeout(ctx, cfg.Matching.RunTimeout())
	defer cancel()

	res, err := a.matcher.Run(runCtx, args[0])
	if err != nil {
		log.Error("Matching failed", zap.String("item_id", args[0]), zap.Error(err))
		return fmt.Errorf("match %s: %w", args[0], err)
	}

	out := matchOutput{
		ItemID:       res.ItemID,
		Candidates:   res.Candidates,
		Linked:       res.Linked,
		LinkFailures: res.LinkFailures,
		Matches:      toEntries(res.Matches),
	}
	b, _ := json.MarshalIndent(out, "", "  ")
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}

func toEntries(ms domitem.Matches) []matchEntry {
	out := make([]matchEntry, len(ms))
	for i, m := range ms {
		out[i] = matchEntry{ID: m.TargetID, Title: m.DisplayTitle, Score: m.Score, Reasons: m.Reasons}
	}
	return out
}
