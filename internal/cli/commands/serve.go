package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/ark7/a7router/internal/cli/config"
	"github.com/ark7/a7router/internal/cli/ui"
	"github.com/ark7/a7router/internal/log"
	"github.com/ark7/a7router/internal/web/server"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewServeCommand creates the serve command
func NewServeCommand(opts *globalOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the demo API",
		Long: `Compile the demo controllers and serve them over HTTP.

Configuration is read from a7router.yaml and A7ROUTER_* environment
variables. The server stops gracefully on SIGINT or SIGTERM.

Examples:
  a7router serve
  a7router serve --port 8080
  A7ROUTER_DEBUG=true a7router serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, cmd, cfg)
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Host to listen on (overrides server.host)")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "Port to listen on (overrides server.port)")

	return cmd
}

func runServe(ctx context.Context, cmd *cobra.Command, cfg *config.Config) error {
	logger, err := log.New(cfg.Log.Logger())
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}

	srv, err := server.New(&server.Config{
		Address:         cfg.Server.Address(),
		Handler:         a.handler,
		ReadTimeout:     cfg.Server.ReadTimeout,
		WriteTimeout:    cfg.Server.WriteTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		MaxHeaderBytes:  1 << 20,
		Logger:          logger,
	})
	if err != nil {
		a.close()
		return err
	}
	srv.RegisterHook(func(context.Context) error {
		return a.close()
	})

	if err := srv.Listen(); err != nil {
		a.close()
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, ui.FormatSuccess(fmt.Sprintf("Listening on http://%s", srv.Addr()), color.NoColor))
	if a.metrics != nil {
		color.New(color.FgHiBlack).Fprintf(out, "  metrics at %s\n", cfg.Metrics.Path)
	}

	logger.Info("serving", zap.String("address", srv.Addr()), zap.Bool("debug", cfg.Debug))
	return srv.Run(ctx)
}

// loadConfig loads the configuration named by --config, rendering
// validation failures as a configuration error block
func loadConfig(cmd *cobra.Command, opts *globalOptions) (*config.Config, error) {
	cfg, err := config.LoadFile(opts.configPath)
	if err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), ui.ConfigError(err.Error(), color.NoColor))
		return nil, err
	}
	return cfg, nil
}
