package main

import (
	"fmt"
	"log"
	"net/http"
	"net/smtp"
	"os"
	"strconv"
	"time"

	"github.com/subscripper/subscripper/auth"
	"github.com/subscripper/subscripper/broker"
	"github.com/subscripper/subscripper/business"
	"github.com/subscripper/subscripper/db"
	"github.com/subscripper/subscripper/external"
	"github.com/subscripper/subscripper/payment"
	"github.com/subscripper/subscripper/product"
	"github.com/subscripper/subscripper/profile"
	"github.com/subscripper/subscripper/redemption"
	"github.com/subscripper/subscripper/staff"
	"github.com/subscripper/subscripper/subscription"
	"github.com/subscripper/subscripper/webhook"

	"github.com/TheZeroSlave/zapsentry"
	"github.com/getsentry/sentry-go"
	"github.com/go-chi/chi"
	"github.com/go-chi/cors"
	"github.com/go-redis/redis/v7"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Build-time injected variables
var (
	Version = ""
)

func main() {
	var logger *zap.Logger
	var authEnvironment auth.Environment
	var dotFile string
	var err error

	// Determine running environment and initialize structural logger
	env := os.Getenv("API_ENV")
	if "production" == env {
		dotFile = ".env.production"
		authEnvironment = auth.EnvProduction
		logger, err = zap.NewProduction()
	} else {
		dotFile = ".env.development"
		authEnvironment = auth.EnvDevelopment
		logger, err = zap.NewDevelopment()
	}

	if err != nil {
		log.Fatalf("Cannot initialize logger: %v\n", err)
	}
	logger = logger.With(zap.String("Version", Version))
	defer logger.Sync()

	// Load configurations from dotFile
	if err := godotenv.Load(dotFile); err != nil {
		logger.Fatal("Cannot load configurations from .env",
			zap.Error(err),
		)
	}

	// Initialize sentry for error reporting
	if err := sentry.Init(sentry.ClientOptions{
		Environment: string(authEnvironment),
		Debug:       authEnvironment == auth.EnvDevelopment,
	}); err != nil {
		logger.Fatal("Cannot initialize sentry",
			zap.Error(err),
		)
	}
	defer sentry.Flush(time.Second * 2)

	// Attach sentry to zap so we can do automatic error capturing
	cfg := zapsentry.Configuration{
		Level: zapcore.ErrorLevel,
		Tags: map[string]string{
			"component": "api",
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

	rdb := redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    []string{os.Getenv("REDIS_URI")},
		Password: os.Getenv("REDIS_PW"),
		DB:       0,
	})
	if _, err := rdb.Ping().Result(); err != nil {
		logger.Fatal("Cannot connect to Redis",
			zap.Error(err),
		)
	}
	defer rdb.Close()

	smtpAuth := smtp.PlainAuth("", os.Getenv("SMTP_USERNAME"), os.Getenv("SMTP_PASSWORD"), os.Getenv("SMTP_HOST"))

	auther, err := auth.New(auth.Options{
		Redis:  rdb,
		Logger: logger,

		JWTSigningKey: os.Getenv("JWT_SIGNING_KEY"),

		Environment: authEnvironment,
		SMTPAuth:    smtpAuth,
		From:        os.Getenv("SMTP_FROM"),
		Hostname:    os.Getenv("SMTP_HOST") + ":" + os.Getenv("SMTP_PORT"),
		EmailOption: auth.EmailOption{
			Name: os.Getenv("SITE_NAME"),
			LinkGenerator: func(uid, token string) string {
				return fmt.Sprintf("%s/login/%s/%s", os.Getenv("SITE_URL"), uid, token)
			},
		},
	})
	if err != nil {
		logger.Fatal("Cannot initialize Auth",
			zap.Error(err),
		)
	}

	// Missing gateway credentials are fatal at startup, not per request
	var processor payment.Processor
	var connectGateway payment.ConnectGateway
	if os.Getenv("PAYMENT_DRIVER") == "fake" {
		fake := payment.NewFakeGateway()
		fake.AutoVerify = true
		processor = fake
		connectGateway = fake
		logger.Warn("Using the in-memory payment gateway, no money will move")
	} else {
		stripeKey := os.Getenv("STRIPE_KEY")
		if stripeKey == "" {
			logger.Fatal("STRIPE_KEY is required unless PAYMENT_DRIVER=fake")
		}
		gateway, err := payment.NewStripeGateway(payment.StripeOptions{
			Client:               external.NewStripeClient(stripeKey),
			Logger:               logger,
			OnboardingReturnURL:  os.Getenv("CONNECT_RETURN_URL"),
			OnboardingRefreshURL: os.Getenv("CONNECT_REFRESH_URL"),
		})
		if err != nil {
			logger.Fatal("Cannot initialize Stripe gateway",
				zap.Error(err),
			)
		}
		processor = gateway
		connectGateway = gateway
	}

	commissionPercent := 10.0
	if raw := os.Getenv("PLATFORM_COMMISSION_PERCENT"); raw != "" {
		commissionPercent, err = strconv.ParseFloat(raw, 64)
		if err != nil {
			logger.Fatal("PLATFORM_COMMISSION_PERCENT is not a number",
				zap.Error(err),
			)
		}
	}

	profileManager, err := profile.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize ProfileManager",
			zap.Error(err),
		)
	}

	businessManager, err := business.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize BusinessManager",
			zap.Error(err),
		)
	}

	accountStore, err := business.NewAccountStore(businessManager)
	if err != nil {
		logger.Fatal("Cannot initialize AccountStore",
			zap.Error(err),
		)
	}

	provisioner, err := payment.NewProvisioner(payment.ProvisionerOptions{
		Store:   accountStore,
		Gateway: connectGateway,
		Logger:  logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Provisioner",
			zap.Error(err),
		)
	}

	staffManager, err := staff.NewManager(logger, db)
	if err != nil {
		logger.Fatal("Cannot initialize StaffManager",
			zap.Error(err),
		)
	}

	productManager, err := product.NewManager(product.ManagerOptions{
		DB:        db,
		Processor: processor,
		Logger:    logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize ProductManager",
			zap.Error(err),
		)
	}

	subscriptionManager, err := subscription.NewManager(subscription.ManagerOptions{
		DB:                db,
		Processor:         processor,
		ProfileManager:    profileManager,
		ProductManager:    productManager,
		BusinessManager:   businessManager,
		CommissionPercent: commissionPercent,
		Logger:            logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize SubscriptionManager",
			zap.Error(err),
		)
	}

	redemptionManager, err := redemption.NewManager(redemption.ManagerOptions{
		DB:     db,
		Logger: logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize RedemptionManager",
			zap.Error(err),
		)
	}

	var producer broker.Producer
	if amqpURI := os.Getenv("AMQP_URI"); amqpURI != "" {
		amqpBroker, err := broker.NewAMQPBroker(amqpURI)
		if err != nil {
			logger.Fatal("Cannot connect to Broker",
				zap.Error(err),
			)
		}
		defer amqpBroker.Close()
		producer = amqpBroker
	} else {
		logger.Warn("AMQP_URI not set, user notifications are disabled")
	}

	profileRouter, err := profile.NewService(profile.Options{
		Auth:           auther,
		ProfileManager: profileManager,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Profile Service Router",
			zap.Error(err),
		)
	}

	businessRouter, err := business.NewService(business.ServiceOptions{
		Auth:            auther,
		BusinessManager: businessManager,
		ProfileManager:  profileManager,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Business Service Router",
			zap.Error(err),
		)
	}

	productRouter, err := product.NewService(product.ServiceOptions{
		Auth:            auther,
		ProductManager:  productManager,
		BusinessManager: businessManager,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Product Service Router",
			zap.Error(err),
		)
	}

	subscriptionRouter, err := subscription.NewService(subscription.ServiceOptions{
		Auth:                auther,
		SubscriptionManager: subscriptionManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Subscription Service Router",
			zap.Error(err),
		)
	}

	redemptionRouter, err := redemption.NewService(redemption.ServiceOptions{
		Auth:                auther,
		RedemptionManager:   redemptionManager,
		SubscriptionManager: subscriptionManager,
		BusinessManager:     businessManager,
		StaffManager:        staffManager,
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Redemption Service Router",
			zap.Error(err),
		)
	}

	staffRouter, err := staff.NewService(staff.ServiceOptions{
		Auth:            auther,
		StaffManager:    staffManager,
		BusinessManager: businessManager,
		Producer:        producer,
		Logger:          logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Staff Service Router",
			zap.Error(err),
		)
	}

	paymentRouter, err := payment.NewService(payment.ServiceOptions{
		Auth:        auther,
		Store:       accountStore,
		Provisioner: provisioner,
		Logger:      logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Payment Service Router",
			zap.Error(err),
		)
	}

	deduper, err := webhook.NewRedisDeduper(rdb)
	if err != nil {
		logger.Fatal("Cannot initialize webhook Deduper",
			zap.Error(err),
		)
	}

	webhookService, err := webhook.NewService(webhook.ServiceOptions{
		SubscriptionManager: subscriptionManager,
		Deduper:             deduper,
		Producer:            producer,
		SigningSecret:       os.Getenv("STRIPE_WEBHOOK_SECRET"),
		Logger:              logger,
	})
	if err != nil {
		logger.Fatal("Cannot initialize Webhook Service",
			zap.Error(err),
		)
	}

	rootRouter := chi.NewRouter()

	rootRouter.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{os.Getenv("SITE_URL")},
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", auth.EffectiveRoleHeader},
		AllowCredentials: true,
	}))

	rootRouter.Mount("/profiles", profileRouter.Router())
	rootRouter.Mount("/businesses", businessRouter.Router())
	rootRouter.Mount("/products", productRouter.Router())
	rootRouter.Mount("/subscriptions", subscriptionRouter.Router())
	rootRouter.Mount("/redemptions", redemptionRouter.Router())
	rootRouter.Mount("/staff", staffRouter.Router())
	rootRouter.Mount("/payments", paymentRouter.Router())
	rootRouter.Post("/webhooks/stripe", webhookService.Handler())

	srv := &http.Server{
		Handler:      rootRouter,
		Addr:         ":42069",
		ReadTimeout:  time.Second * 15,
		WriteTimeout: time.Second * 15,
	}

	logger.Info("API started",
		zap.String("Addr", srv.Addr),
	)
	log.Fatalln(srv.ListenAndServe())
}
