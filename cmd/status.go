package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/intelligrit/durian-map/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show local snapshot contents",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		fmt.Printf("Snapshot Status\n")
		fmt.Printf("===============\n")
		fmt.Printf("Database:  %s (%s)\n", s.DataDir, s.Driver)
		fmt.Printf("Orchards:  %d\n", s.OrchardCount())
		if t := s.SyncedAt(); !t.IsZero() {
			fmt.Printf("Synced at: %s\n", t.Local().Format("2006-01-02 15:04"))
		} else {
			fmt.Printf("Synced at: never\n")
		}

		byStatus := s.CountByStatus()
		fmt.Printf("\nBy Status\n")
		fmt.Printf("---------\n")
		for _, st := range model.DurianStatuses() {
			fmt.Printf("  %-10s %4d  %s\n", st, byStatus[st], st.Info().Label)
		}

		byType, err := s.CountByType(context.Background())
		if err != nil {
			return fmt.Errorf("counting by type: %w", err)
		}
		fmt.Printf("\nBy Type\n")
		fmt.Printf("-------\n")
		for _, t := range model.OrchardTypes() {
			fmt.Printf("  %-10s %4d  %s\n", t, byType[t], t.Info().Label)
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
