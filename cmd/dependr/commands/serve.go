package commands

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/GESkunkworks/dependr"
	"github.com/GESkunkworks/dependr/server"
	"github.com/GESkunkworks/dependr/store"
)

func (a *App) newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve Sankey reports over HTTP",
		Long: `Serve POST /graph: the request body carries pce_host, port, org_id, api_key
and api_secret; the response is {"image_url": ...} pointing at a Sankey PNG
of the last 30 days of traffic, uploaded to S3.

Configuration is read from the environment:
  DEPENDR_LISTEN_ADDR     listen address (default :8080)
  DEPENDR_S3_BUCKET_NAME  bucket receiving the images (required)
  DEPENDR_S3_PREFIX       key prefix for the images
  DEPENDR_PRESIGN_TTL     lifetime of the image URLs (default 1h)
  DEPENDR_LOOKBACK_DAYS   days of traffic per report (default 30)
  DEPENDR_QUERY_LIMIT     maximum flows per report (default 1000)
  DEPENDR_PCE_INSECURE    skip PCE TLS verification
  DEPENDR_LOG_LEVEL       log level (default info)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := server.LoadConfig()
			if err != nil {
				return err
			}
			log, err := dependr.NewLogger(cfg.LogLevel, a.errOut)
			if err != nil {
				return err
			}
			sess, err := session.NewSessionWithOptions(session.Options{
				SharedConfigState: session.SharedConfigEnable,
			})
			if err != nil {
				return errors.Wrap(err, "creating AWS session")
			}
			sink, err := store.NewS3Sink(&store.S3SinkInput{
				Session:    sess,
				Bucket:     &cfg.S3BucketName,
				Prefix:     &cfg.S3Prefix,
				PresignTTL: &cfg.PresignTTL,
				Logger:     log,
			})
			if err != nil {
				return err
			}

			srv := server.New(cfg, sink,
				server.WithLogger(log),
				server.WithSourceFactory(server.SourceFactory(a.newSource)),
			)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() { errc <- srv.ListenAndServe() }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
			}
			log.Info("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}
