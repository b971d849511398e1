package cli

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/synthdata/internal/api"
	"github.com/JonMunkholm/synthdata/internal/archive"
	"github.com/JonMunkholm/synthdata/internal/datagen"
	"github.com/JonMunkholm/synthdata/internal/fraud"
	"github.com/JonMunkholm/synthdata/internal/pipeline"
	"github.com/JonMunkholm/synthdata/internal/scheduler"
	"github.com/JonMunkholm/synthdata/internal/session"
	"github.com/JonMunkholm/synthdata/internal/store"
	"github.com/JonMunkholm/synthdata/internal/synth"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web UI and HTTP API",
		PreRun: func(cmd *cobra.Command, _ []string) {
			a.logger = a.cfg.NewLogger(cmd.ErrOrStderr(), true)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&a.cfgOverrides.port, "port", "p", "", "Listen port (default PORT)")
	return cmd
}

// schedulerFor returns the scheduler runs are started on and the pipeline id
// the generator is known by there. Without an external scheduler the
// pipelines run in-process.
func (a *app) schedulerFor(ctx context.Context) (scheduler.Scheduler, string, func(), error) {
	if a.cfg.UseAirflow() {
		a.logger.Info("using external scheduler", "url", a.cfg.AirflowURL, "dag", a.cfg.GeneratorDAG)
		return scheduler.NewAirflow(a.cfg.AirflowURL, a.cfg.AirflowUser, a.cfg.AirflowPass), a.cfg.GeneratorDAG, func() {}, nil
	}

	local := scheduler.NewLocal(ctx, a.logger)
	sink, release, err := a.sink(ctx, a.cfg.DataDir, a.cfg.LoadPostgres)
	if err != nil {
		return nil, "", nil, err
	}
	gen := &pipeline.Generator{
		Sink:       sink,
		SchemaPath: a.cfg.SchemaPath,
		Options: datagen.Options{
			BatchSize:      a.cfg.BatchSize,
			BatchThreshold: a.cfg.BatchThreshold,
			Seed:           a.cfg.Seed,
		},
		Logger: a.logger,
	}

	var fp *pipeline.Fraud
	closeDB := func() {}
	if a.cfg.DatabaseURL != "" {
		f, closeFn, err := a.fraudPipeline(ctx)
		if err != nil {
			release()
			return nil, "", nil, err
		}
		fp, closeDB = f, closeFn
	}
	pipeline.Register(local, gen, fp)

	cleanup := func() {
		local.Wait()
		closeDB()
		release()
	}
	return local, pipeline.GeneratorID, cleanup, nil
}

func (a *app) serve(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	port := a.cfg.Port
	if a.cfgOverrides.port != "" {
		port = a.cfgOverrides.port
	}

	sched, pipelineID, cleanup, err := a.schedulerFor(ctx)
	if err != nil {
		return err
	}
	defer cleanup()

	sessions := session.NewStore(a.cfg.SessionTTL)
	defer sessions.Stop()

	tables := store.NewParquetDir(a.cfg.DataDir, a.logger)
	var synthClient *synth.Client
	if a.cfg.GeminiAPIKey != "" {
		synthClient = synth.New(a.cfg.GeminiAPIKey, a.cfg.GeminiModel)
	}

	handler, err := api.NewHandler(api.Deps{
		Sessions:  sessions,
		Scheduler: sched,
		Tables:    tables,
		Archive:   archive.NewBuilder(tables, a.cfg.DataDir, a.logger),
		Synth:     synthClient,
		Models:    fraud.NewModelStore(a.cfg.ModelDir),
		WebFS:     a.webFS,
		Logger:    a.logger,
	}, api.Options{
		SchemaPath: a.cfg.SchemaPath,
		Pipeline:   pipelineID,
		Watch:      scheduler.WatchOptions{Interval: a.cfg.PollInterval, Timeout: a.cfg.RunTimeout},
		CORSOrigin: a.cfg.CORSOrigin,
		RateLimit:  a.cfg.RateLimit,
	})
	if err != nil {
		return err
	}
	defer handler.Stop()

	server := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.Router(),
		ReadTimeout:       a.cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      a.cfg.WriteTimeout,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server listening", "addr", server.Addr, "pipeline", pipelineID)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
