package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"instinct/internal/policy"
	"instinct/internal/store"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	bestStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1)
)

// statsCmd shows the persisted policy.
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show the learned policy and engine counters",
	RunE:  runStats,
}

func runStats(cmd *cobra.Command, args []string) error {
	snapshots, err := store.NewSnapshotStore(cfg.Store.DatabasePath, cfg.Store.KeepVersions)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer snapshots.Close()

	engine, err := policy.New(cfg, policy.WithStore(snapshots))
	if err != nil {
		return err
	}

	ctx := context.Background()
	if err := engine.Initialize(ctx); err != nil {
		return fmt.Errorf("failed to initialize engine: %w", err)
	}
	defer engine.Shutdown(ctx)

	versions, err := snapshots.VersionCount(ctx, cfg.Store.SnapshotKey)
	if err != nil {
		return err
	}
	if versions == 0 {
		fmt.Println("No policy snapshot found. Run `instinct train` first.")
		return nil
	}

	fmt.Printf("Snapshot: key=%s versions=%d\n\n", cfg.Store.SnapshotKey, versions)
	renderStats(engine)
	return nil
}

// renderStats prints the engine counters and the learned Q-table.
func renderStats(e *policy.Engine) {
	stats := e.GetStats()

	var counters strings.Builder
	counters.WriteString(titleStyle.Render("Engine") + "\n")
	counters.WriteString(fmt.Sprintf("updates:      %d\n", stats.TotalUpdates))
	counters.WriteString(fmt.Sprintf("avg reward:   %.4f\n", stats.AverageReward))
	counters.WriteString(fmt.Sprintf("explore/exploit: %d/%d\n", stats.ExplorationActions, stats.ExploitationActions))
	counters.WriteString(fmt.Sprintf("epsilon:      %.4f\n", stats.ExplorationRate))
	counters.WriteString(fmt.Sprintf("episodes:     %d", stats.EpisodeCount))
	fmt.Println(boxStyle.Render(counters.String()))

	qvalues := e.GetAllQValues()
	states := make([]string, 0, len(qvalues))
	for s := range qvalues {
		states = append(states, s)
	}
	sort.Strings(states)

	var table strings.Builder
	table.WriteString(titleStyle.Render("Policy") + "\n")
	table.WriteString(headerStyle.Render(fmt.Sprintf("%-20s %-16s %10s %14s", "STATE", "ACTION", "Q", "POSTERIOR")) + "\n")
	for _, state := range states {
		actions := qvalues[state]
		names := make([]string, 0, len(actions))
		for a := range actions {
			names = append(names, a)
		}
		sort.Slice(names, func(i, j int) bool { return actions[names[i]] > actions[names[j]] })

		for i, a := range names {
			stat := e.GetActionStats(a)
			row := fmt.Sprintf("%-20s %-16s %10.4f %7d/%-6d", state, a, actions[a], stat.Successes, stat.Failures)
			if i == 0 {
				row = bestStyle.Render(row)
			}
			table.WriteString(row + "\n")
		}
	}
	fmt.Println(boxStyle.Render(strings.TrimRight(table.String(), "\n")))
}
