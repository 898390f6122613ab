package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/intelligrit/durian-map/internal/model"
)

var syncOwner string

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Download the orchard list from the backend into the local snapshot",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		client := newBackend()
		logVerbose("Fetching orchards from %s", client.BaseURL)

		var orchards []model.Orchard
		if syncOwner != "" {
			orchards, err = client.ListByOwner(ctx, syncOwner)
		} else {
			orchards, err = client.List(ctx)
		}
		if err != nil {
			return fmt.Errorf("fetching orchards: %w", err)
		}

		if err := s.WriteOrchards(ctx, orchards, time.Now()); err != nil {
			return fmt.Errorf("saving snapshot: %w", err)
		}

		fmt.Printf("Synced %d orchards into %s.\n", len(orchards), s.DataDir)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVar(&syncOwner, "owner", "", "Only sync orchards owned by this user id")
	rootCmd.AddCommand(syncCmd)
}
