package cli

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/config"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/dispatch"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/repository"
	"github.com/vasapolrittideah/reminder-app/services/reminder-service/internal/usecase"
	"github.com/vasapolrittideah/reminder-app/shared/logger"
	"github.com/vasapolrittideah/reminder-app/shared/mailer"
)

// app holds the wired collaborators shared by the commands.
type app struct {
	cfg       *config.Config
	logger    *zerolog.Logger
	store     *store
	transport mailer.Transport
	engine    *dispatch.Engine
	reminders usecase.ReminderUsecase
}

type store struct {
	reminders repository.ReminderRepository
	users     repository.UserDirectory
	close     func(ctx context.Context) error
}

// newApp loads the configuration and connects to the store. Callers must
// close the returned app.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	log, err := logger.New(cfg.ServiceName, cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	st, err := openStore(ctx, cfg, log)
	if err != nil {
		return nil, err
	}

	transport, err := mailer.NewTransport(log, cfg.Mail)
	if err != nil {
		_ = st.close(ctx)
		return nil, err
	}

	engine := dispatch.NewEngine(st.reminders, st.users, transport, log, dispatch.Options{
		Concurrency:      cfg.Concurrency,
		SendTimeout:      cfg.SendTimeout,
		ReconcileTimeout: cfg.ReconcileTimeout,
		Location:         loc,
	})

	return &app{
		cfg:       cfg,
		logger:    log,
		store:     st,
		transport: transport,
		engine:    engine,
		reminders: usecase.NewReminderUsecase(st.reminders, st.users, transport, loc),
	}, nil
}

func (a *app) close(ctx context.Context) {
	if err := a.store.close(ctx); err != nil {
		a.logger.Error().Err(err).Msg("failed to close store")
	}
}

func openStore(ctx context.Context, cfg *config.Config, log *zerolog.Logger) (*store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongo.Connect(options.Client().ApplyURI(cfg.MongoURI))
		if err != nil {
			return nil, fmt.Errorf("failed to connect to mongo: %w", err)
		}

		if err := client.Ping(ctx, nil); err != nil {
			_ = client.Disconnect(ctx)
			return nil, fmt.Errorf("failed to ping mongo: %w", err)
		}

		db := client.Database(cfg.MongoDatabase)

		return &store{
			reminders: repository.NewReminderMongoRepository(ctx, log, db),
			users:     repository.NewUserMongoDirectory(ctx, log, db),
			close:     client.Disconnect,
		}, nil

	case config.StorePostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}

		if err := repository.EnsureSchema(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}

		return &store{
			reminders: repository.NewReminderPostgresRepository(db),
			users:     repository.NewUserPostgresDirectory(db),
			close:     func(context.Context) error { return db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("%w: %q", repository.ErrUnsupportedStoreKind, cfg.StoreDriver)
	}
}
