package commands

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/inconshreveable/log15"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/GESkunkworks/dependr"
	"github.com/GESkunkworks/dependr/pce"
	"github.com/GESkunkworks/dependr/render"
	"github.com/GESkunkworks/dependr/store"
)

// Setting keys. Flags carry the same names.
const (
	keyHost      = "pce-host"
	keyPort      = "port"
	keyOrgID     = "org-id"
	keyAPIKey    = "api-key"
	keyAPISecret = "api-secret"
	keyInsecure  = "insecure"
	keyStart     = "start"
	keyEnd       = "end"
	keyLimit     = "limit"
	keyLogLevel  = "log-level"
	keyBucket    = "bucket"
	keyPrefix    = "prefix"
	keyOutputDir = "output-dir"
	keyPlotlyJS  = "plotly-js"
)

// envBindings maps settings to the environment variables they can come from.
var envBindings = map[string]string{
	keyHost:      "ILLUMIO_PCE_HOST",
	keyPort:      "ILLUMIO_PCE_PORT",
	keyOrgID:     "ILLUMIO_PCE_ORG_ID",
	keyAPIKey:    "ILLUMIO_PCE_API_KEY",
	keyAPISecret: "ILLUMIO_PCE_API_SECRET",
	keyInsecure:  "ILLUMIO_PCE_INSECURE",
	keyBucket:    "DEPENDR_S3_BUCKET_NAME",
	keyPrefix:    "DEPENDR_S3_PREFIX",
	keyLogLevel:  "DEPENDR_LOG_LEVEL",
}

// SourceFactory builds the flow source for a PCE.
type SourceFactory func(cfg pce.Config, log log15.Logger) (dependr.FlowSource, error)

// App holds what the commands share: settings, output streams and the
// factories for the PCE client and output sink.
type App struct {
	v         *viper.Viper
	out       io.Writer
	errOut    io.Writer
	newSource SourceFactory
	now       func() time.Time
}

// Option customizes an App.
type Option func(*App)

// WithOutput redirects command output and logs.
func WithOutput(out, errOut io.Writer) Option {
	return func(a *App) {
		a.out = out
		a.errOut = errOut
	}
}

// WithSourceFactory replaces how PCE clients are built.
func WithSourceFactory(f SourceFactory) Option {
	return func(a *App) { a.newSource = f }
}

// WithClock sets the clock relative dates are resolved against.
func WithClock(now func() time.Time) Option {
	return func(a *App) { a.now = now }
}

func newApp(opts ...Option) *App {
	a := &App{
		v:         viper.New(),
		out:       os.Stdout,
		errOut:    os.Stderr,
		newSource: newPCESource,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

func newPCESource(cfg pce.Config, log log15.Logger) (dependr.FlowSource, error) {
	c, err := pce.NewClient(cfg, pce.WithLogger(log))
	if err != nil {
		return nil, err
	}
	return c, nil
}

// bindFlags registers the global flags on cmd and binds them, and their
// environment variables, into the app settings.
func (a *App) bindFlags(cmd *cobra.Command) error {
	flags := cmd.PersistentFlags()
	addGlobalFlags(flags)
	if err := a.v.BindPFlags(flags); err != nil {
		return errors.Wrap(err, "binding flags")
	}
	for key, env := range envBindings {
		if err := a.v.BindEnv(key, env); err != nil {
			return errors.Wrapf(err, "binding %s", env)
		}
	}
	return nil
}

func addGlobalFlags(flags *pflag.FlagSet) {
	flags.String(keyHost, "", "PCE host (env ILLUMIO_PCE_HOST)")
	flags.Int(keyPort, 0, "PCE port (env ILLUMIO_PCE_PORT)")
	flags.String(keyOrgID, "", "Organization ID (env ILLUMIO_PCE_ORG_ID)")
	flags.String(keyAPIKey, "", "API key (env ILLUMIO_PCE_API_KEY)")
	flags.String(keyAPISecret, "", "API secret (env ILLUMIO_PCE_API_SECRET)")
	flags.Bool(keyInsecure, false, "Skip TLS certificate verification of the PCE")
	flags.String(keyStart, "30 days ago", `Start date (YYYY-MM-DD or "X days ago")`)
	flags.String(keyEnd, "today", `End date (YYYY-MM-DD or "X days ago")`)
	flags.Int(keyLimit, 2000, "Maximum number of traffic flows to fetch")
	flags.String(keyLogLevel, "info", "Log level (debug, info, warn, error)")
	flags.String(keyBucket, "", "Upload output to this S3 bucket instead of the local disk")
	flags.String(keyPrefix, "", "Key prefix for S3 uploads")
	flags.String(keyOutputDir, "", "Directory local output is written to")
	flags.String(keyPlotlyJS, "", "Embed this plotly.js file in HTML output instead of loading it from the CDN")
}

// loadPlotlyJS embeds the configured plotly.js file in HTML output.
func (a *App) loadPlotlyJS() error {
	render.PlotlyJS = nil
	path := a.v.GetString(keyPlotlyJS)
	if path == "" {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading plotly.js")
	}
	render.PlotlyJS = b
	return nil
}

func (a *App) logger() (log15.Logger, error) {
	return dependr.NewLogger(a.v.GetString(keyLogLevel), a.errOut)
}

// pceConfig collects the PCE settings, failing on any that are missing.
func (a *App) pceConfig() (pce.Config, error) {
	cfg := pce.Config{
		Host:      a.v.GetString(keyHost),
		Port:      a.v.GetInt(keyPort),
		OrgID:     a.v.GetString(keyOrgID),
		APIKey:    a.v.GetString(keyAPIKey),
		APISecret: a.v.GetString(keyAPISecret),
		Insecure:  a.v.GetBool(keyInsecure),
	}
	var missing []string
	for key, set := range map[string]bool{
		keyHost:      cfg.Host != "",
		keyPort:      cfg.Port != 0,
		keyOrgID:     cfg.OrgID != "",
		keyAPIKey:    cfg.APIKey != "",
		keyAPISecret: cfg.APISecret != "",
	} {
		if !set {
			missing = append(missing, fmt.Sprintf("--%s (%s)", key, envBindings[key]))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return cfg, errors.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	return cfg, nil
}

// survey pulls and aggregates the traffic for the configured window.
func (a *App) survey(ctx context.Context, log log15.Logger) (*dependr.Survey, error) {
	cfg, err := a.pceConfig()
	if err != nil {
		return nil, err
	}
	src, err := a.newSource(cfg, log)
	if err != nil {
		return nil, err
	}
	start := a.v.GetString(keyStart)
	end := a.v.GetString(keyEnd)
	limit := a.v.GetInt(keyLimit)
	sv, err := dependr.New(&dependr.SurveyInput{
		Client: src,
		Start:  &start,
		End:    &end,
		Limit:  &limit,
		Logger: log,
		Now:    a.now,
	})
	if err != nil {
		return nil, err
	}
	if err = sv.Start(ctx); err != nil {
		return nil, err
	}
	return sv, nil
}

// sink returns the S3 sink when a bucket is configured, the local
// directory otherwise.
func (a *App) sink(log log15.Logger) (store.Sink, error) {
	bucket := a.v.GetString(keyBucket)
	if bucket == "" {
		return store.NewFileSink(a.v.GetString(keyOutputDir)), nil
	}
	sess, err := session.NewSessionWithOptions(session.Options{
		SharedConfigState: session.SharedConfigEnable,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating AWS session")
	}
	prefix := a.v.GetString(keyPrefix)
	return store.NewS3Sink(&store.S3SinkInput{
		Session: sess,
		Bucket:  &bucket,
		Prefix:  &prefix,
		Logger:  log,
	})
}

// save encodes fig and stores it as name.<format>.
func (a *App) save(ctx context.Context, sink store.Sink, name string, format render.Format, fig render.Figure) (string, error) {
	body, err := fig.Encode(ctx, format)
	if err != nil {
		return "", err
	}
	return sink.Put(ctx, name+"."+format.Ext(), format.ContentType(), body)
}

// saveSurvey stores the rows, connections and summary of sv next to the
// figure named output.
func (a *App) saveSurvey(ctx context.Context, sink store.Sink, output string, sv *dependr.Survey) error {
	for _, part := range []struct {
		suffix, contentType string
		write               func(io.Writer) error
	}{
		{"_rows.csv", "text/csv", sv.WriteRows},
		{"_connections.csv", "text/csv", sv.WriteConnections},
		{"_summary.txt", "text/plain; charset=utf-8", sv.WriteSummary},
	} {
		var buf bytes.Buffer
		if err := part.write(&buf); err != nil {
			return err
		}
		loc, err := sink.Put(ctx, output+part.suffix, part.contentType, buf.Bytes())
		if err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Saved %s\n", loc)
	}
	return nil
}
