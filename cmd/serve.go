package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/intelligrit/durian-map/internal/backend"
	"github.com/intelligrit/durian-map/internal/metrics"
	"github.com/intelligrit/durian-map/internal/web"
)

var (
	serveHost    string
	servePort    int
	serveOffline bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the orchard discovery web app",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cmd.Flags().Changed("host") {
			serveHost = cfg.Server.Host
		}
		if !cmd.Flags().Changed("port") {
			servePort = cfg.Server.Port
		}
		if !cmd.Flags().Changed("offline") {
			serveOffline = cfg.Server.Offline
		}

		var source backend.Source
		if serveOffline {
			s, err := openStore()
			if err != nil {
				return err
			}
			defer s.Close()
			if s.OrchardCount() == 0 {
				fmt.Println("Local snapshot is empty (run sync or import first).")
			}
			source = s
		} else {
			source = newBackend()
		}

		m := metrics.New()
		srv := &web.Server{
			Source:           source,
			Router:           newRouter(m),
			Locator:          newLocator(),
			Metrics:          m,
			Logger:           logger,
			Addr:             fmt.Sprintf("%s:%d", serveHost, servePort),
			Debounce:         cfg.Routing.Debounce.Duration,
			NarrowBreakpoint: cfg.View.NarrowBreakpoint,
			SessionTTL:       cfg.Server.SessionTTL.Duration,
		}
		defer srv.CloseAll()
		return srv.ListenAndServe()
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "localhost", "Host to listen on")
	serveCmd.Flags().IntVar(&servePort, "port", 8080, "Port to listen on")
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "Serve orchards from the local snapshot instead of the backend")
	rootCmd.AddCommand(serveCmd)
}
