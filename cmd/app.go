package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/jmurray2011/logweave/internal/cloudwatch"
	apperrors "github.com/jmurray2011/logweave/internal/errors"
	"github.com/jmurray2011/logweave/internal/logclient"
	"github.com/jmurray2011/logweave/internal/logging"
	"github.com/jmurray2011/logweave/internal/output"
	"github.com/jmurray2011/logweave/internal/source"
	"github.com/jmurray2011/logweave/internal/ui"
	"github.com/jmurray2011/logweave/pkg/timeutil"
)

// appContextKey is the context key for the App instance.
type appContextKey struct{}

// Config holds the values of the global flags.
type Config struct {
	Profile      string
	Region       string
	RoleARN      string
	OutputFormat string
	Start        string
	End          string
	PublishStats string // metric namespace; empty disables publishing
	Verbose      bool
	NoColor      bool
	Quiet        bool
}

// BackendFactory connects to the log backend.
type BackendFactory func(ctx context.Context, app *App) (source.Backend, error)

// App holds the application dependencies that can be injected for testing.
type App struct {
	Config   Config
	Settings *source.Config
	Render   *ui.Renderer
	Log      logging.Logger

	// NewBackend defaults to CloudWatchBackend.
	NewBackend BackendFactory
	// NewMetrics defaults to a CloudWatch metrics client.
	NewMetrics func(ctx context.Context, app *App) (cloudwatch.MetricsAPI, error)

	backend source.Backend
	// identity caches WhoAmI results by profile
	identity map[string]cloudwatch.Identity
}

// NewApp creates an App from the parsed flags, viper and the config file.
func NewApp() (*App, error) {
	cfg := Config{
		Profile:      viper.GetString("profile"),
		Region:       viper.GetString("region"),
		RoleARN:      viper.GetString("role-arn"),
		OutputFormat: viper.GetString("output"),
		Start:        startFlag,
		End:          endFlag,
		PublishStats: viper.GetString("publish-stats"),
		Verbose:      IsVerbose(),
		NoColor:      noColor || os.Getenv("NO_COLOR") != "",
		Quiet:        quiet,
	}

	settings, err := source.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}

	render := ui.NewRenderer(ui.WithNoColor(cfg.NoColor), ui.WithQuiet(cfg.Quiet))
	return NewAppWithConfig(cfg, settings, render), nil
}

// NewAppWithConfig creates an App with the given configuration.
// Nil settings or renderer are replaced with defaults.
func NewAppWithConfig(cfg Config, settings *source.Config, render *ui.Renderer) *App {
	if settings == nil {
		settings = source.DefaultConfig()
	}
	if render == nil {
		render = ui.NewRenderer(ui.WithNoColor(cfg.NoColor), ui.WithQuiet(cfg.Quiet))
	}

	log := logging.New()
	if cfg.Verbose {
		log.SetLevel(logging.LevelDebug)
	} else {
		log.SetLevel(logging.LevelWarn)
	}

	return &App{
		Config:     cfg,
		Settings:   settings,
		Render:     render,
		Log:        log,
		NewBackend: CloudWatchBackend,
		NewMetrics: cloudWatchMetrics,
		identity:   make(map[string]cloudwatch.Identity),
	}
}

// GetApp retrieves the App from the command context, creating one from
// the global flags if none is set.
func GetApp(cmd *cobra.Command) (*App, error) {
	if cmd.Context() != nil {
		if app, ok := cmd.Context().Value(appContextKey{}).(*App); ok {
			return app, nil
		}
	}
	return NewApp()
}

// SetApp stores the App in the context for a command.
func SetApp(ctx context.Context, app *App) context.Context {
	return context.WithValue(ctx, appContextKey{}, app)
}

// Debugf prints a debug message if verbose mode is enabled.
func (a *App) Debugf(format string, args ...interface{}) {
	if a.Config.Verbose {
		a.Log.Debug(format, args...)
	}
}

// AWSConfig returns the credential settings for AWS clients.
func (a *App) AWSConfig() cloudwatch.Config {
	return cloudwatch.Config{
		Profile: a.Config.Profile,
		Region:  a.Config.Region,
		RoleARN: a.Config.RoleARN,
	}
}

// CloudWatchBackend connects to CloudWatch Logs with the app's credentials
// and request pacing.
func CloudWatchBackend(ctx context.Context, a *App) (source.Backend, error) {
	client, err := cloudwatch.NewLogsClient(ctx, a.AWSConfig())
	if err != nil {
		return nil, err
	}
	return cloudwatch.NewBackend(client,
		cloudwatch.WithRequestsPerSecond(a.Settings.RequestsPerSecond),
		cloudwatch.WithBackendLogger(a.Log.WithField("component", "backend")),
	), nil
}

func cloudWatchMetrics(ctx context.Context, a *App) (cloudwatch.MetricsAPI, error) {
	return cloudwatch.NewMetricsClient(ctx, a.AWSConfig())
}

// Backend connects to the log backend once and reuses the connection.
func (a *App) Backend(ctx context.Context) (source.Backend, error) {
	if a.backend != nil {
		return a.backend, nil
	}
	b, err := a.NewBackend(ctx, a)
	if err != nil {
		return nil, err
	}
	a.backend = b
	return b, nil
}

// LogClient creates a client using the drivers configured in Settings.
func (a *App) LogClient(ctx context.Context) (*logclient.Client, error) {
	backend, err := a.Backend(ctx)
	if err != nil {
		return nil, err
	}
	return logclient.New(backend, a.Settings, logclient.WithLogger(a.Log))
}

// Identity returns the AWS caller identity for the current profile.
// Results are cached for the life of the App.
func (a *App) Identity(ctx context.Context) (cloudwatch.Identity, error) {
	if id, ok := a.identity[a.Config.Profile]; ok {
		return id, nil
	}
	id, err := cloudwatch.WhoAmI(ctx, a.AWSConfig())
	if err != nil {
		return cloudwatch.Identity{}, err
	}
	a.identity[a.Config.Profile] = id
	return id, nil
}

// TimeRange parses the --start and --end flags and warns about likely
// mistakes.
func (a *App) TimeRange() (from, to time.Time, err error) {
	from, err = timeutil.Parse(a.Config.Start)
	if err != nil {
		return from, to, apperrors.InvalidTimeError(a.Config.Start)
	}
	to, err = timeutil.Parse(a.Config.End)
	if err != nil {
		return from, to, apperrors.InvalidTimeError(a.Config.End)
	}
	if !from.Before(to) {
		return from, to, fmt.Errorf("start time %s is not before end time %s",
			from.Format(time.RFC3339), to.Format(time.RFC3339))
	}
	for _, w := range timeutil.ValidateTimeRange(from, to) {
		if w.Level == "warning" {
			a.Render.Warning("%s", w.Message)
		} else {
			a.Render.Status("%s", w.Message)
		}
	}
	return from, to, nil
}

// Formatter creates an output formatter writing to w. The format comes
// from --output, then from the config file.
func (a *App) Formatter(w io.Writer) (*output.Formatter, error) {
	name := a.Config.OutputFormat
	if name == "" {
		name = a.Settings.Output.Format
	}
	format, err := output.ParseFormat(name)
	if err != nil {
		return nil, err
	}

	loc := time.Local
	if a.Settings.Output.Timestamps == "utc" {
		loc = time.UTC
	}
	render := ui.NewRenderer(ui.WithOutput(w), ui.WithNoColor(a.Render.NoColor()), ui.WithHighlight(highlight))
	return output.NewFormatter(format, w, output.WithRenderer(render), output.WithLocation(loc)), nil
}

// WriteRecords writes every record of seq to w and then reports on the
// run. An interrupted read is not an error.
func (a *App) WriteRecords(ctx context.Context, client *logclient.Client, seq iter.Seq2[source.Record, error], w io.Writer) error {
	f, err := a.Formatter(w)
	if err != nil {
		return err
	}

	var readErr error
	for rec, err := range seq {
		if err != nil {
			readErr = err
			break
		}
		if err := f.WriteRecord(rec); err != nil {
			return err
		}
	}
	if err := f.Flush(); err != nil {
		return err
	}

	interrupted := errors.Is(readErr, context.Canceled) && ctx.Err() != nil
	if readErr != nil && !interrupted {
		var be *cloudwatch.BackendError
		if errors.As(readErr, &be) && be.Throttled() {
			a.Render.Warning("CloudWatch Logs throttled %s; lower requests_per_second (now %g) in %s",
				be.Op, a.Settings.RequestsPerSecond, source.ConfigPath())
		}
		return readErr
	}

	run := client.LastRun()
	a.Render.Status("%d records from %s in %s", f.Count(), run.Group, timeutil.FormatDuration(run.Duration))
	a.Debugf("run: driver=%s queries=%d calls=%d peak_buffered=%d stalls=%d decode_errors=%d",
		run.Driver, run.Queries, run.BackendCalls, run.PeakBuffered, run.Stalls, run.DecodeErrors)

	if a.Config.PublishStats != "" {
		// the command context may already be canceled
		pubCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := a.PublishRun(pubCtx, run); err != nil {
			a.Render.Warning("%v", err)
		}
	}
	return nil
}

// PublishRun writes run statistics to the --publish-stats namespace.
func (a *App) PublishRun(ctx context.Context, run logclient.RunStats) error {
	api, err := a.NewMetrics(ctx, a)
	if err != nil {
		return err
	}
	p := cloudwatch.NewStatsPublisher(api, a.Config.PublishStats)
	err = p.Publish(ctx, cloudwatch.RunMetrics{
		Driver:           run.Driver,
		Group:            run.Group,
		Queries:          run.Queries,
		MeanQueryLatency: run.MeanQueryLatency,
		BackendCalls:     run.BackendCalls,
		Records:          run.Records,
		PeakBuffered:     run.PeakBuffered,
		Stalls:           run.Stalls,
		DecodeErrors:     run.DecodeErrors,
		Duration:         run.Duration,
		Finished:         run.Started.Add(run.Duration),
	})
	if err != nil {
		return err
	}
	a.Debugf("published run statistics to %s", p.Namespace())
	return nil
}
