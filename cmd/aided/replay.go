package main

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/cobra"

	"github.com/kittclouds/aide/internal/kernel"
	"github.com/kittclouds/aide/internal/reducer"
)

var replayCmd = &cobra.Command{
	Use:   "replay <aide-id>",
	Short: "Replay an aide's full event log from empty and diff against the stored snapshot",
	Long: `replay folds the reducer over the stored event log starting from the
empty snapshot, then compares the replayed snapshot's canonical JSON against
the persisted one. A clean replay with no diff is the expected outcome; any
diff means the stored snapshot and the event log have drifted and should be
investigated before trusting either.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		aideID := args[0]

		a, err := newApp()
		if err != nil {
			return err
		}
		defer a.Close()

		result, err := a.store.Hydrate(aideID)
		if err != nil {
			return fmt.Errorf("hydrate %s: %w", aideID, err)
		}

		replayed := kernel.Empty()
		for _, ev := range result.Events {
			res := reducer.Reduce(replayed, ev)
			if !res.Applied {
				return fmt.Errorf("replay %s: event %s (seq %d) rejected on replay: %s", aideID, ev.ID, ev.Sequence, res.Error)
			}
			replayed = res.Snapshot
		}

		storedJSON, err := result.Snapshot.CanonicalJSON()
		if err != nil {
			return fmt.Errorf("marshal stored snapshot: %w", err)
		}
		replayedJSON, err := replayed.CanonicalJSON()
		if err != nil {
			return fmt.Errorf("marshal replayed snapshot: %w", err)
		}

		if string(storedJSON) == string(replayedJSON) {
			fmt.Printf("replay clean: %s matches stored snapshot across %d events\n", aideID, len(result.Events))
			return nil
		}

		fmt.Printf("replay DIVERGED for %s across %d events:\n%s\n", aideID, len(result.Events), cmp.Diff(result.Snapshot, replayed))
		return fmt.Errorf("replay: snapshot mismatch for %s", aideID)
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
