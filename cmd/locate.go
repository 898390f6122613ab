package cmd

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/geolocate"
)

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "Take a one-shot location fix and show the nearest orchard",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := geolocate.ExplicitOptions
		if cfg.Geolocation.Timeout.Duration > 0 {
			opts.Timeout = cfg.Geolocation.Timeout.Duration
		}

		fix, err := newLocator().Locate(context.Background(), opts)
		if err != nil {
			color.Red("%s", geolocate.UserMessage)
			return err
		}
		fmt.Printf("Location: %.5f, %.5f\n", fix.Lat, fix.Lng)

		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		list, err := s.List(context.Background())
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		pts := make([]geo.LatLng, len(list))
		for i, o := range list {
			pts[i] = geo.Pt(o.Lat, o.Lng)
		}
		if i, ok := geo.Nearest(fix, pts); ok {
			fmt.Printf("Nearest orchard: %s (%.1f km)\n", list[i].Name, fix.DistanceTo(pts[i]))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(locateCmd)
}
