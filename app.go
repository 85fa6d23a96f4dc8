package main

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/giygas/cureid-api/blobsource"
	"github.com/giygas/cureid-api/caseparser"
	"github.com/giygas/cureid-api/config"
	"github.com/giygas/cureid-api/data"
	"github.com/giygas/cureid-api/data/postgres"
	"github.com/giygas/cureid-api/handlers"
	"github.com/giygas/cureid-api/health"
	"github.com/giygas/cureid-api/interfaces"
	"github.com/giygas/cureid-api/logging"
	"github.com/giygas/cureid-api/messaging"
	"github.com/giygas/cureid-api/repository"
	"github.com/giygas/cureid-api/scheduler"
	"github.com/giygas/cureid-api/server"
	"github.com/giygas/cureid-api/validation"
	"github.com/giygas/cureid-api/worker"
)

// application owns every long-lived component and the order they stop in.
type application struct {
	store     interfaces.DocumentStore
	drugs     *repository.DrugRepository
	regimens  *repository.RegimenRepository
	scheduler *scheduler.Scheduler
	consumer  *messaging.Consumer
	server    *server.Server

	stopConsumer context.CancelFunc
	consumerDone chan struct{}
	closers      []func() error
}

func newApplication(ctx context.Context, cfg *config.Config) (*application, error) {
	app := &application{}

	store, err := app.openStore(ctx, cfg)
	if err != nil {
		app.close()
		return nil, err
	}
	app.store = store

	cache := data.NewContainerCache()
	if app.drugs, err = repository.NewDrugRepository(store, cache); err != nil {
		app.close()
		return nil, err
	}
	if app.regimens, err = repository.NewRegimenRepository(store, cache); err != nil {
		app.close()
		return nil, err
	}

	persister := worker.NewPersister(app.drugs, app.regimens)
	sink := app.openSink(cfg, persister)

	source, err := openBlobSource(ctx, cfg)
	if err != nil {
		app.close()
		return nil, err
	}

	pipeline := caseparser.NewPipeline(sink, sink, caseparser.NewNormalizer(uuid.NewString))
	app.scheduler = scheduler.NewScheduler(source, pipeline, cfg.IngestIntervalMinutes, cfg.IngestWorkers)

	interval := time.Duration(cfg.IngestIntervalMinutes) * time.Minute
	checker := health.NewHealthChecker(store, app.scheduler, interval)
	handler := handlers.NewHTTPHandler(app.drugs, app.regimens, validation.NewRequestValidator(), checker)
	app.server = server.NewServer(cfg, handler)

	return app, nil
}

func (a *application) openStore(ctx context.Context, cfg *config.Config) (interfaces.DocumentStore, error) {
	if cfg.StoreBackend != config.StorePostgres {
		logging.Info("Using in-memory document store")
		return data.NewMemoryStore(), nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL, 10, 2)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, func() error { pool.Close(); return nil })

	store, err := postgres.NewStore(pool, cfg.DatabaseName)
	if err != nil {
		return nil, err
	}
	if err := store.InitializeDatabase(ctx); err != nil {
		return nil, fmt.Errorf("initialize database: %w", err)
	}
	logging.Info("Using Postgres document store", "schema", cfg.DatabaseName)
	return store, nil
}

// openSink returns the sink the pipeline emits into. With Kafka configured,
// entries are published and a consumer persists them.
func (a *application) openSink(cfg *config.Config, persister *worker.Persister) interfaces.EntrySink {
	if !cfg.UsesKafka() {
		return worker.NewDirectSink(persister)
	}

	kafkaSink := messaging.NewKafkaSink(messaging.NewKafkaWriter(cfg.KafkaBrokers), cfg.KafkaDrugTopic, cfg.KafkaRegimenTopic)
	a.closers = append(a.closers, kafkaSink.Close)

	reader := messaging.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaGroupID, cfg.KafkaDrugTopic, cfg.KafkaRegimenTopic)
	a.consumer = messaging.NewConsumer(reader, persister, cfg.KafkaDrugTopic, cfg.KafkaRegimenTopic)
	a.closers = append(a.closers, a.consumer.Close)

	logging.Info("Publishing entries through Kafka", "brokers", cfg.KafkaBrokers)
	return kafkaSink
}

func openBlobSource(ctx context.Context, cfg *config.Config) (interfaces.BlobSource, error) {
	if cfg.BlobSource == config.BlobSourceS3 {
		client, err := blobsource.NewS3Client(ctx)
		if err != nil {
			return nil, err
		}
		return blobsource.NewS3Source(client, cfg.S3Bucket, cfg.S3Prefix), nil
	}
	return blobsource.NewDirSource(cfg.RawFilesDir)
}

// start prepares containers, starts the consumer and runs the first ingestion.
func (a *application) start(ctx context.Context) error {
	if err := a.drugs.InitializeContainers(ctx); err != nil {
		return err
	}
	if err := a.regimens.InitializeContainers(ctx); err != nil {
		return err
	}

	if a.consumer != nil {
		consumerCtx, cancel := context.WithCancel(ctx)
		a.stopConsumer = cancel
		a.consumerDone = make(chan struct{})
		go func() {
			defer close(a.consumerDone)
			if err := a.consumer.Run(consumerCtx); err != nil {
				logging.Error("Consumer stopped", "error", err)
			}
		}()
	}

	return a.scheduler.Start()
}

// close stops ingestion first, then the consumer, then releases connections.
func (a *application) close() {
	if a.scheduler != nil {
		a.scheduler.Stop()
	}
	if a.stopConsumer != nil {
		a.stopConsumer()
		<-a.consumerDone
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			logging.Warn("Close failed", "error", err)
		}
	}
	a.closers = nil
}
