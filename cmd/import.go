package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/intelligrit/durian-map/internal/store"
)

var importFile string

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load an orchard fixture (YAML or JSON) into the local snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := os.Open(importFile)
		if err != nil {
			return fmt.Errorf("opening fixture: %w", err)
		}
		defer f.Close()

		orchards, err := store.ReadFixture(f)
		if err != nil {
			return fmt.Errorf("%s: %w", importFile, err)
		}

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		if err := s.WriteOrchards(context.Background(), orchards, time.Now()); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}

		fmt.Printf("Imported %d orchards from %s.\n", len(orchards), importFile)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "orchards.yaml", "Fixture file to import")
	rootCmd.AddCommand(importCmd)
}
