package cmd

import (
	"fmt"
	"os"

	"github.com/go-kratos/kratos/v2/log"
	"github.com/spf13/cobra"

	"github.com/intelligrit/durian-map/internal/backend"
	"github.com/intelligrit/durian-map/internal/config"
	"github.com/intelligrit/durian-map/internal/geo"
	"github.com/intelligrit/durian-map/internal/geolocate"
	"github.com/intelligrit/durian-map/internal/logging"
	"github.com/intelligrit/durian-map/internal/metrics"
	"github.com/intelligrit/durian-map/internal/routing"
	"github.com/intelligrit/durian-map/internal/store"
)

var (
	dataDir    string
	dbDriver   string
	verbose    bool
	configPath string
	cfg        *config.Config
	logger     log.Logger
)

var rootCmd = &cobra.Command{
	Use:          "durian-map",
	Short:        "Discover durian orchards and plan multi-stop visits",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		if !cmd.Flags().Changed("data-dir") {
			dataDir = cfg.Data.Dir
		}
		if !cmd.Flags().Changed("driver") {
			dbDriver = cfg.Data.Driver
		}

		level := cfg.Log.Level
		if verbose {
			level = "debug"
		}
		logger = logging.New(os.Stderr, level)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "config.toml", "Path to configuration file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "data", "Directory for the local orchard snapshot")
	rootCmd.PersistentFlags().StringVar(&dbDriver, "driver", store.DriverDuckDB, "Snapshot database driver (duckdb or sqlite)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
}

func Execute() error {
	return rootCmd.Execute()
}

func logVerbose(format string, args ...any) {
	if verbose {
		fmt.Fprintf(os.Stderr, format+"\n", args...)
	}
}

func openStore() (*store.Store, error) {
	return store.Open(dataDir, dbDriver)
}

func newBackend() *backend.Client {
	return backend.NewClient(cfg.Backend.BaseURL, cfg.Backend.Token, cfg.Backend.Timeout.Duration, logger)
}

// newRouter builds the OSRM client behind the rate limiter and result cache.
func newRouter(m *metrics.Metrics) routing.Router {
	osrm := routing.NewOSRMClient(cfg.Routing.BaseURL, cfg.Routing.Profile,
		cfg.Routing.Timeout.Duration, routing.NewRateLimiter(cfg.Routing.RateLimit))
	return routing.NewCachedRouter(osrm, cfg.Routing.CacheTTL.Duration, m, logger)
}

// newLocator asks GeoClue first and falls back to the configured position.
func newLocator() geolocate.Locator {
	chain := geolocate.Chain{geolocate.GeoClue{DesktopID: cfg.Geolocation.DesktopID}}
	if cfg.Geolocation.HasFallback() {
		p := geo.Pt(cfg.Geolocation.FallbackLat, cfg.Geolocation.FallbackLng)
		chain = append(chain, geolocate.Static{Position: &p})
	}
	return chain
}
