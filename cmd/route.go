package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/metrics"
	"github.com/intelligrit/durian-map/internal/routing"
)

var routeCmd = &cobra.Command{
	Use:   "route ID ID [ID...]",
	Short: "Plan a driving route through orchards in the given order",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openStore()
		if err != nil {
			return err
		}
		defer s.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
		defer cancel()

		var waypoints []geo.LatLng
		for i, arg := range args {
			id, err := strconv.ParseInt(arg, 10, 64)
			if err != nil {
				return fmt.Errorf("invalid orchard id %q", arg)
			}
			o, err := s.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("reading orchard %d: %w", id, err)
			}
			if o == nil {
				return fmt.Errorf("orchard %d is not in the local snapshot (run sync first)", id)
			}
			fmt.Printf("  %d. %s (%s)\n", i+1, o.Name, o.Address)
			waypoints = append(waypoints, geo.Pt(o.Lat, o.Lng))
		}

		router := newRouter(metrics.New())
		logVerbose("Requesting route for %d stops from %s", len(waypoints), cfg.Routing.BaseURL)
		route, err := router.Route(ctx, waypoints)
		if err != nil {
			color.Red("Route lookup failed: %v", err)
			return err
		}

		hours, mins := routing.FormatETA(route.Stats.ETAMinutes)
		fmt.Println()
		color.Green("Distance: %.1f km", route.Stats.DistanceKm)
		if hours > 0 {
			color.Green("Drive time: %d h %d min", hours, mins)
		} else {
			color.Green("Drive time: %d min", mins)
		}
		logVerbose("Path has %d points", len(route.Path))
		fmt.Printf("Navigate: %s\n", routing.GoogleMapsURL(waypoints))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(routeCmd)
}
