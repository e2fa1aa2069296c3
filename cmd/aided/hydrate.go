package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var hydrateCmd = &cobra.Command{
	Use:   "hydrate <aide-id>",
	Short: "Cold-load an aide's materialized snapshot and print it as JSON",
	Long: `hydrate loads the stored snapshot, event log, blueprint, and full
conversation history for one aide and prints the result as a single JSON object,
exactly the payload a client's cold-load path receives. Clients must not
replay events to reconstruct state from this; the snapshot is authoritative.`,
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

		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	},
}

func init() {
	rootCmd.AddCommand(hydrateCmd)
}
