package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"

	"newsroom/internal/config"
	"newsroom/internal/infrastructure/enrichment"
	"newsroom/internal/infrastructure/llm"
	"newsroom/internal/infrastructure/realtime"
	"newsroom/internal/infrastructure/scheduler"
	"newsroom/internal/infrastructure/storage"
	"newsroom/internal/infrastructure/telephony"
	"newsroom/internal/logging"
	"newsroom/internal/phone"
	"newsroom/internal/ports"
	"newsroom/internal/usecase"
)

// Application wires configuration to the editorial machine, the phone server
// and lifecycle orchestration.
type Application struct {
	cfg    config.Config
	log    *slog.Logger
	pool   *pgxpool.Pool
	batch  *usecase.Batch
	ticker ports.Scheduler
	server *phone.Server
}

// modelDialer adapts the realtime client to the phone server's dialer
// interface.
type modelDialer struct {
	client *realtime.Client
}

func (d modelDialer) DialModel(ctx context.Context) (phone.ModelLeg, error) {
	return d.client.Dial(ctx)
}

// New builds a runnable application instance: it connects the database, runs
// migrations and wires every component.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := storage.Migrate(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	articles := storage.NewArticleStore(pool)
	reviews := storage.NewReviewStore(pool)
	interviews := storage.NewInterviewStore(pool)

	editor := llm.NewEditorClient(cfg.Editorial)

	registry := phone.NewRegistry()
	calls := telephony.NewClient(cfg.Twilio, cfg.Server.PublicURL+"/incoming-call")
	dialer := phone.NewDialer(phone.DialerDeps{
		Log:        baseLogger,
		Calls:      calls,
		Interviews: interviews,
		Registry:   registry,
	})

	machine := usecase.NewMachine(usecase.MachineDeps{
		Evaluator:         editor,
		FixValidator:      editor,
		Reviser:           editor,
		InterviewPlanner:  editor,
		PhoneExecutor:     phone.NewExecutor(dialer),
		Articles:          articles,
		Reviews:           reviews,
		Logger:            baseLogger.With("component", "editorial"),
		MaxRevisionCycles: cfg.Editorial.MaxRevisionCycles,
	})
	batch := usecase.NewBatch(articles, machine,
		baseLogger.With("component", "batch"), cfg.Editorial.BatchLimit)

	transcripts := phone.NewTranscripts(phone.TranscriptsDeps{
		Log:           baseLogger,
		Dir:           cfg.Server.LogDir,
		Registry:      registry,
		Interviews:    interviews,
		Enricher:      enrichment.NewClient(cfg.Enrichment.URL),
		EnrichTimeout: cfg.Enrichment.Timeout,
	})

	server := phone.NewServer(phone.ServerDeps{
		Log:       baseLogger,
		Addr:      cfg.Server.Addr,
		PublicURL: cfg.Server.PublicURL,
		Dialer:    dialer,
		Model:     modelDialer{client: realtime.NewClient(cfg.Realtime)},
		Session: phone.SessionDeps{
			Log:          baseLogger,
			Registry:     registry,
			Calls:        calls,
			DefaultVoice: cfg.Realtime.DefaultVoice,
		},
		Finalizer:         transcripts,
		FromNumber:        cfg.Twilio.FromNumber,
		DefaultCallNumber: cfg.Twilio.DefaultCall,
	})

	return &Application{
		cfg:    cfg,
		log:    baseLogger.With("component", "app"),
		pool:   pool,
		batch:  batch,
		ticker: scheduler.NewTickerScheduler(cfg.Editorial.BatchInterval),
		server: server,
	}, nil
}

// Run starts the editorial batch scheduler and serves the phone endpoints
// until the context is canceled.
func (a *Application) Run(ctx context.Context) error {
	err := a.ticker.Start(ctx, func(jobCtx context.Context) {
		if err := a.batch.Run(jobCtx); err != nil {
			a.log.Error("editorial batch failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer func() { _ = a.ticker.Stop(context.Background()) }()

	return a.server.Run(ctx)
}

// Close releases shared resources.
func (a *Application) Close() {
	a.pool.Close()
}
