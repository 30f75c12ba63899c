package main

import (
	"context"
	"errors"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/rabbitmq"
	"github.com/wb-go/wbf/redis"
	"github.com/wb-go/wbf/zlog"

	notifapi "github.com/akarpovich/notification-service/internal/api/handlers/notification"
	"github.com/akarpovich/notification-service/internal/api/router"
	"github.com/akarpovich/notification-service/internal/api/server"
	"github.com/akarpovich/notification-service/internal/config"
	"github.com/akarpovich/notification-service/internal/metrics"
	"github.com/akarpovich/notification-service/internal/model"
	"github.com/akarpovich/notification-service/internal/rabbitmq/handlers/delivery"
	"github.com/akarpovich/notification-service/internal/rabbitmq/queue"
	notifrepo "github.com/akarpovich/notification-service/internal/repository/notification"
	notifsvc "github.com/akarpovich/notification-service/internal/service/notification"
	"github.com/akarpovich/notification-service/internal/worker"
	"github.com/akarpovich/notification-service/pkg/email"
	"github.com/akarpovich/notification-service/pkg/push"
	"github.com/akarpovich/notification-service/pkg/sms"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	zlog.Init()
	cfg := config.Must()
	val := validator.New()

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL(), cfg.RabbitMQ.Retries, cfg.RabbitMQ.Pause)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to rabbitmq")
	}

	ch, err := conn.Channel()
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to open channel")
	}

	q, err := queue.New(ch)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create notification queues")
	}

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}

	slaveDSNs := make([]string, 0, len(cfg.Database.Slaves))
	for _, s := range cfg.Database.Slaves {
		slaveDSNs = append(slaveDSNs, s.DSN())
	}

	db, err := dbpg.New(cfg.Database.Master.DSN(), slaveDSNs, opts)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to database")
	}

	repo := notifrepo.NewRepository(db)

	dbNum, err := strconv.Atoi(cfg.Redis.Database)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse redis database")
	}

	rdb := redis.New(cfg.Redis.Address, cfg.Redis.Password, dbNum)

	if err = rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	smtpPort, err := strconv.Atoi(cfg.Email.SMTPPort)
	if err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to parse email smtp port")
	}

	emailClient := email.NewClient(
		cfg.Email.SMTPHost,
		smtpPort,
		cfg.Email.Username,
		cfg.Email.Password,
		cfg.Email.From,
	)
	smsClient := sms.NewClient(cfg.SMS.APIURL, cfg.SMS.APIKey, cfg.SMS.From)
	pushClient := push.NewClient(cfg.Push.APIURL, cfg.Push.APIKey)

	notifiers := map[model.Channel]notifsvc.Notifier{
		model.ChannelEmail: emailClient,
		model.ChannelSMS:   smsClient,
		model.ChannelPush:  pushClient,
	}

	m := metrics.New()
	service := notifsvc.NewService(repo, q, notifiers, rdb, m)
	apiHandler := notifapi.NewHandler(service, val, cfg)
	messageHandler := delivery.NewHandler(service, m)

	// One independent consumer per delivery channel.
	for _, channel := range model.Channels() {
		w := worker.NewDelivery(channel, q, messageHandler, service)
		go w.Run(ctx, cfg.Retry, cfg.Workers.Count)
	}

	archiver := worker.NewArchiver(repo, cfg.Archiver.RetentionDays, cfg.Archiver.Interval)
	go archiver.Run(ctx)

	r := router.New(apiHandler, m)
	s := server.New(cfg.Server.HTTPPort, r)

	go func() {
		if err := s.ListenAndServe(); err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	<-ctx.Done()
	zlog.Logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}

	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	if err := db.Master.Close(); err != nil {
		zlog.Logger.Printf("failed to close master DB: %v", err)
	}

	for i, slave := range db.Slaves {
		if err := slave.Close(); err != nil {
			zlog.Logger.Printf("failed to close slave DB %d: %v", i, err)
		}
	}

	if err := ch.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ channel")
	}

	if err := conn.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close RabbitMQ connection")
	}
}
