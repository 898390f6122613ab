package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/intelligrit/durian-map/internal/discovery"
	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/geolocate"
	"github.com/intelligrit/durian-map/internal/model"
)

var (
	discoverTypes   []string
	discoverQuery   string
	discoverNearest bool
	discoverNear    string
	discoverOnline  bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "List orchards matching type filters and a search query",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()

		f := discovery.FilterState{SearchQuery: discoverQuery}
		for _, name := range discoverTypes {
			t, err := model.ParseOrchardType(name)
			if err != nil {
				return err
			}
			f.SelectedTypes = append(f.SelectedTypes, t)
		}

		var ref *geo.LatLng
		if discoverNear != "" {
			p, err := geo.ParseLatLng(discoverNear)
			if err != nil {
				return fmt.Errorf("--near: %w", err)
			}
			ref = &p
		}
		if discoverNearest {
			f.SortMode = discovery.SortNearest
			if ref == nil {
				p, err := newLocator().Locate(ctx, geolocate.ExplicitOptions)
				if err != nil {
					color.Yellow("%s (%v); keeping default order", geolocate.UserMessage, err)
				} else {
					ref = &p
				}
			}
		}

		var (
			list []model.Orchard
			err  error
		)
		if discoverOnline {
			list, err = newBackend().List(ctx)
		} else {
			s, serr := openStore()
			if serr != nil {
				return serr
			}
			defer s.Close()
			list, err = s.List(ctx)
		}
		if err != nil {
			return fmt.Errorf("loading orchards: %w", err)
		}

		visible := discovery.Derive(list, f, ref)
		if len(visible) == 0 {
			fmt.Println("No orchards match.")
			return nil
		}

		for _, o := range visible {
			types := make([]string, len(o.Types))
			for i, t := range o.Types {
				types[i] = t.String()
			}
			line := fmt.Sprintf("%6d  %-30s %-10s %s", o.ID, o.Name, o.Status, strings.Join(types, ","))
			if ref != nil {
				line += fmt.Sprintf("  %.1f km", ref.DistanceTo(geo.Pt(o.Lat, o.Lng)))
			}
			fmt.Println(line)
		}
		fmt.Fprintf(os.Stderr, "%d of %d orchards\n", len(visible), len(list))
		return nil
	},
}

func init() {
	discoverCmd.Flags().StringArrayVar(&discoverTypes, "type", nil, "Only orchards offering this service (repeatable: sell, tour, cafe, stay)")
	discoverCmd.Flags().StringVar(&discoverQuery, "q", "", "Search name, description and address")
	discoverCmd.Flags().BoolVar(&discoverNearest, "nearest", false, "Sort by distance from --near or the current location")
	discoverCmd.Flags().StringVar(&discoverNear, "near", "", "Reference point as lat,lng")
	discoverCmd.Flags().BoolVar(&discoverOnline, "online", false, "Query the backend instead of the local snapshot")
	rootCmd.AddCommand(discoverCmd)
}
