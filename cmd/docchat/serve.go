package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/hupe1980/docchat"
	"github.com/hupe1980/docchat/server"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := opts.cfg
			if addr != "" {
				cfg.Server.Addr = addr
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, level, err := docchat.NewLogger(cfg)
			if err != nil {
				return err
			}
			server.SetHertzLogger(os.Stderr, level)

			a, err := docchat.New(ctx, cfg, func(o *docchat.Options) { o.Logger = logger })
			if err != nil {
				return err
			}

			srv := server.New(a.Router(), a.Sessions(), a.Reader(), func(o *server.Options) {
				o.Addr = cfg.Server.Addr
				o.Logger = logger
				o.Metrics = a.Metrics()
				o.CORSOrigins = cfg.Server.CORSOrigins
				o.DefaultLimit = cfg.Tools.DefaultLimit
				o.DefaultSkip = cfg.Tools.DefaultSkip
			})

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Run() }()

			select {
			case err = <-errCh:
			case <-ctx.Done():
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if serr := srv.Shutdown(shutdownCtx); serr != nil && err == nil && !errors.Is(serr, context.Canceled) {
				err = serr
			}
			if cerr := a.Close(shutdownCtx); cerr != nil {
				logger.Warn("store.close_failed", "error", cerr.Error())
			}
			return err
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address, overrides server.addr")
	return cmd
}
