package main

import (
	"context"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	apiserver "github.com/verifyhub/case-engine/internal/api_server"
	"github.com/verifyhub/case-engine/internal/config"
	"github.com/verifyhub/case-engine/internal/events"
	"github.com/verifyhub/case-engine/internal/service"
	"github.com/verifyhub/case-engine/internal/store"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the case api",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, teardown, err := setup()
		if err != nil {
			return err
		}
		defer teardown()

		zap.S().Info("Starting API service")
		defer zap.S().Info("API service stopped")

		zap.S().Info("Initializing data store")
		db, err := store.InitDB(cfg)
		if err != nil {
			zap.S().Fatalw("initializing data store", "error", err)
		}

		s := store.NewStore(db)
		defer s.Close()

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGHUP, syscall.SIGTERM, syscall.SIGQUIT)
		defer cancel()

		// postgres is migrated out of band by the migrate command
		if cfg.Database.Type != "pgsql" {
			if err := migrate(ctx, db, s, cfg.Service.MigrationFolder); err != nil {
				zap.S().Fatalw("running initial migration", "error", err)
			}
		}

		producer, err := newEventProducer(cfg)
		if err != nil {
			zap.S().Fatalw("creating event producer", "error", err)
		}
		defer func() {
			if err := producer.Close(); err != nil {
				zap.S().Errorw("closing event producer", "error", err)
			}
		}()

		opts := []service.CaseServiceOption{service.WithEventWriter(producer)}
		if cache, err := newCaseCache(ctx, cfg); err != nil {
			zap.S().Warnw("case cache disabled", "error", err)
		} else if cache != nil {
			opts = append(opts, service.WithCaseCache(cache))
		}
		caseSrv := service.NewCaseService(s, opts...)

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			defer cancel()
			listener, err := newListener(cfg.Service.Address)
			if err != nil {
				return err
			}
			return apiserver.New(cfg, s, caseSrv, listener).Run(gctx)
		})

		g.Go(func() error {
			defer cancel()
			listener, err := newListener(cfg.Service.MetricsAddress)
			if err != nil {
				return err
			}
			return apiserver.NewMetricServer(cfg.Service.MetricsAddress, listener, s).Run(gctx)
		})

		if err := g.Wait(); err != nil {
			zap.S().Errorw("server stopped", "error", err)
			return err
		}
		return nil
	},
}

func newEventProducer(cfg *config.Config) (*events.EventProducer, error) {
	kafka := cfg.Service.Kafka
	if len(kafka.Brokers) == 0 {
		zap.S().Info("no kafka brokers configured, events are written to the log")
		return events.NewEventProducer(&events.StdoutWriter{}, events.WithOutputTopic(kafka.Topic)), nil
	}

	writer, err := events.NewKafkaWriter(kafka.Brokers, kafka.ClientID)
	if err != nil {
		return nil, err
	}
	zap.S().Infow("writing events to kafka", "brokers", kafka.Brokers, "topic", kafka.Topic)
	return events.NewEventProducer(writer, events.WithOutputTopic(kafka.Topic)), nil
}

// newCaseCache returns nil when no redis url is configured.
func newCaseCache(ctx context.Context, cfg *config.Config) (service.CaseCache, error) {
	if cfg.Service.Redis.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.Service.Redis.URL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, err
	}

	zap.S().Infow("case cache enabled", "addr", opts.Addr, "ttl", cfg.Service.Redis.CaseCacheTTL)
	return service.NewRedisCaseCache(client, cfg.Service.Redis.CaseCacheTTL), nil
}

func newListener(address string) (net.Listener, error) {
	if address == "" {
		address = "localhost:0"
	}
	return net.Listen("tcp", address)
}
