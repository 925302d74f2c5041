package main

import (
	"context"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/zhouzirui/chatbox/internal/handler"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:         "serve",
		Annotations: appAnnotations(),
		Short:       "Serve the browser chat widget",
		Args:        cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			srv := &http.Server{
				Addr:              a.cfg.Server.Addr,
				Handler:           handler.NewRouter(a.controller, a.uploader(), a.logger),
				ReadHeaderTimeout: 5 * time.Second,
				IdleTimeout:       120 * time.Second,
			}
			a.logger.Info().Str("addr", srv.Addr).Str("session_id", a.controller.Session().ID).Msg("chat widget listening")
			return runServer(cmd.Context(), srv)
		},
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
