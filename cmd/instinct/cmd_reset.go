package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"instinct/internal/store"
)

var resetYes bool

// resetCmd discards the persisted policy.
var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Delete all persisted policy snapshots",
	Long: `Removes every stored snapshot version for the configured key.
The next training run starts from an empty Q-table.`,
	RunE: runReset,
}

func init() {
	resetCmd.Flags().BoolVarP(&resetYes, "yes", "y", false, "skip the confirmation prompt")
}

func runReset(cmd *cobra.Command, args []string) error {
	snapshots, err := store.NewSnapshotStore(cfg.Store.DatabasePath, cfg.Store.KeepVersions)
	if err != nil {
		return fmt.Errorf("failed to open snapshot store: %w", err)
	}
	defer snapshots.Close()

	ctx := context.Background()
	versions, err := snapshots.VersionCount(ctx, cfg.Store.SnapshotKey)
	if err != nil {
		return err
	}
	if versions == 0 {
		fmt.Println("Nothing to reset: no snapshots stored.")
		return nil
	}

	if !resetYes {
		fmt.Printf("Delete %d snapshot version(s) for key %q? [y/N] ", versions, cfg.Store.SnapshotKey)
		var answer string
		fmt.Scanln(&answer)
		if answer != "y" && answer != "Y" {
			fmt.Println("Aborted.")
			return nil
		}
	}

	if err := snapshots.DeleteSnapshots(ctx, cfg.Store.SnapshotKey); err != nil {
		return err
	}
	fmt.Printf("Deleted %d snapshot version(s).\n", versions)
	return nil
}
