package cmd

import (
	"context"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpAdapter "github.com/jcfangc/yahoo-crawler/internal/adapter/http"
	"github.com/jcfangc/yahoo-crawler/internal/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Accept links over HTTP and crawl them as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := rt.launch(ctx)
		if err != nil {
			return err
		}
		orch, err := rt.orchestrator(b)
		if err != nil {
			return err
		}
		srv := httpAdapter.NewServer(rt.links, rt.repo, rt.cfg.HTTP.Addr, rt.cfg.HTTP.Secret, rt.log)

		g, ctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			rt.log.Info("http server listening", logger.String("addr", rt.cfg.HTTP.Addr))
			return srv.ListenAndServe()
		})
		g.Go(func() error {
			orch.Watch(ctx, rt.cfg.Crawl.WatchInterval)
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
