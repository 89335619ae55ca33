package main

import (
	"context"
	"fmt"
	"log"
	"net/smtp"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/subscripper/subscripper/broker"
	"github.com/subscripper/subscripper/db"
	"github.com/subscripper/subscripper/profile"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

var subjects = map[broker.NotificationKind]string{
	broker.KindPaymentFailed:         "Action needed: a subscription payment failed",
	broker.KindSubscriptionCancelled: "Your subscription has been cancelled",
	broker.KindStaffInvited:          "You have been invited to join a business",
}

func main() {
	var logger *zap.Logger
	var dotFile string
	var err error

	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))
	defer logger.Sync()

	if err := godotenv.Load(dotFile); err != nil {
		logger.Fatal("Cannot load configurations from .env",
			zap.Error(err),
		)
	}

	if err := sentry.Init(sentry.ClientOptions{
		Environment: env,
		Debug:       env != "production",
	}); err != nil {
		logger.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "notifier",
		},
	}
	core, err := zapsentry.NewCore(cfg, zapsentry.NewSentryClientFromClient(sentry.CurrentHub().Client()))
	if err != nil {
		logger.Fatal("Cannot initialize zapsentry",
			zap.Error(err),
		)
	}
	logger = zapsentry.AttachCoreToLogger(core, logger)

	db, err := db.New(logger, os.Getenv("POSTGRES_URI"))
	if err != nil {
		logger.Fatal("Cannot connect to Postgres",
			zap.Error(err),
		)
	}

	profileManager, err := profile.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize ProfileManager",
			zap.Error(err),
		)
	}

	amqpBroker, err := broker.NewAMQPBroker(os.Getenv("AMQP_URI"))
	if err != nil {
		logger.Fatal("Cannot connect to Broker",
			zap.Error(err),
		)
	}
	defer amqpBroker.Close()

	smtpHost := os.Getenv("SMTP_HOST")
	smtpAddr := smtpHost + ":" + os.Getenv("SMTP_PORT")
	smtpFrom := os.Getenv("SMTP_FROM")
	smtpAuth := smtp.PlainAuth("", os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), smtpHost)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	nChan, err := amqpBroker.ReceiveNotifications(ctx)
	if err != nil {
		logger.Fatal("Cannot get notification channel",
			zap.Error(err),
		)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("Notifier started")

	for {
		select {
		case <-c:
			logger.Info("Notifier shutting down")
			return
		case n := <-nChan:
			email := n.Email
			if email == "" && n.UserID != "" {
				p, err := profileManager.GetByID(ctx, n.UserID)
				if err != nil || p == nil {
					logger.Warn("Cannot resolve notification recipient",
						zap.String("UserID", n.UserID),
						zap.Error(err),
					)
					continue
				}
				email = p.Email
			}
			if email == "" {
				logger.Warn("Dropping notification with no recipient",
					zap.String("Kind", string(n.Kind)),
				)
				continue
			}

			subject, ok := subjects[n.Kind]
			if !ok {
				subject = "An update about your account"
			}
			body := fmt.Sprintf("To: %s\r\nFrom: %s\r\nSubject: %s\r\n\r\n%s\r\n",
				email, smtpFrom, subject, n.Message)
			if err := smtp.SendMail(smtpAddr, smtpAuth, smtpFrom, []string{email}, []byte(body)); err != nil {
				logger.Error("Cannot send notification email",
					zap.String("Kind", string(n.Kind)),
					zap.Error(err),
				)
				continue
			}
			logger.Info("Notification delivered",
				zap.String("Kind", string(n.Kind)),
				zap.String("UserID", n.UserID),
			)
		}
	}
}
