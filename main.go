package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"career-engagement-system/events"
	"career-engagement-system/handlers"
	"career-engagement-system/metrics"
	"career-engagement-system/middleware"
	"career-engagement-system/models"
	"career-engagement-system/services"
	"career-engagement-system/utils"
	"career-engagement-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("⚠️  No .env file found, reading environment variables directly")
	}

	app := fiber.New(fiber.Config{
		BodyLimit: 10 * 1024 * 1024, // badge icons only — 10MB is plenty
	})

	// 🔐❗ GLOBAL: Only Gateway requests allowed — no exceptions
	app.Use(middleware.GatewayAuthMiddleware())

	// Load allowed origins from environment variable
	allowedOriginsEnv := os.Getenv("ALLOWED_ORIGINS")
	if allowedOriginsEnv == "" {
		log.Println("⚠️  ALLOWED_ORIGINS environment variable not set, using default: http://localhost:3000")
		allowedOriginsEnv = "http://localhost:3000"
	}
	allowedOriginsList := strings.Split(allowedOriginsEnv, ",")
	for i, origin := range allowedOriginsList {
		allowedOriginsList[i] = strings.TrimSpace(origin)
	}
	allowedOriginsString := strings.Join(allowedOriginsList, ",")

	app.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOriginsString,
		AllowMethods:     "GET,POST,PUT,DELETE,OPTIONS,PATCH,HEAD",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, User-Agent, Cache-Control, X-User-ID, X-Tenant-ID, X-User-Roles, X-Service-Token",
		ExposeHeaders:    "Content-Length, Content-Type, Authorization, X-Request-ID",
		AllowCredentials: true,
		MaxAge:           86400, // 24 hours
	}))

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL environment variable not set")
	}

	if err := utils.InitR2(); err != nil {
		log.Fatal("failed to initialize R2 client:", err)
	}

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatal("failed to connect to database:", err)
	}

	if err := db.AutoMigrate(
		&models.Account{},
		&models.ActivityCounter{},
		&models.LoginRecord{},
		&models.LedgerTransaction{},
		&models.BadgeDefinition{},
		&models.AccountBadge{},
		&models.PromoCode{},
		&models.PromoRedemption{},
		&models.Affiliate{},
		&models.AffiliateClick{},
		&models.AffiliateSignup{},
		&models.CommissionTier{},
		&models.Challenge{},
		&models.ChallengeTask{},
		&models.ChallengeTaskProgress{},
		&models.ChallengeCompletion{},
	); err != nil {
		log.Fatal("failed to migrate database:", err)
	}

	// Events go to Kafka when brokers are configured; otherwise to the log.
	var publisher events.Publisher = events.LogPublisher{}
	if brokersEnv := os.Getenv("KAFKA_BROKERS"); brokersEnv != "" {
		brokers := strings.Split(brokersEnv, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}
		kafkaPub := events.NewKafkaPublisher(brokers)
		defer kafkaPub.Close()
		publisher = kafkaPub
		log.Printf("📡 Kafka publisher configured: %s", brokersEnv)
	}

	engagementMetrics := metrics.NewEngagementMetrics()

	// --- CONFIGURE Entitlement Service Client for premium-day promo rewards ---
	entitlementURL := os.Getenv("ENTITLEMENT_SERVICE_URL")
	entitlementToken := os.Getenv("ENTITLEMENT_SERVICE_TOKEN")
	if entitlementURL == "" {
		log.Println("⚠️  ENTITLEMENT_SERVICE_URL not set — premium_days promo codes will fail to redeem")
	}
	entitlements := services.NewEntitlementServiceClient(entitlementURL, entitlementToken)
	// --- END CONFIG ---

	ledgerService := services.NewLedgerService(db, publisher)
	badgeService := services.NewBadgeService(db, publisher)
	progressionService := services.NewProgressionService(db, publisher, badgeService)
	streakService := services.NewStreakService(db, publisher)
	promoService := services.NewPromoService(db, publisher, ledgerService, progressionService, entitlements)
	affiliateService := services.NewAffiliateService(db, publisher, ledgerService)
	challengeService := services.NewChallengeService(db, publisher, progressionService)

	// --- CONFIGURE Sync Service Details for platform accounts ---
	profileServiceURL := os.Getenv("PROFILE_SERVICE_URL")
	if profileServiceURL == "" {
		log.Fatal("PROFILE_SERVICE_URL environment variable not set")
	}
	engagementServiceToken := os.Getenv("ENGAGEMENT_SERVICE_TOKEN")
	if engagementServiceToken == "" {
		log.Fatal("ENGAGEMENT_SERVICE_TOKEN environment variable not set")
	}
	// --- END CONFIG ---

	syncWorker := workers.NewAccountSyncWorker(db, profileServiceURL, "/api/v1/public/profiles", engagementServiceToken)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	syncWorker.Start(ctx)
	promoService.StartExpirySweep()

	// ✅ Setup routes — enforced Gateway auth + consistent /s/ prefix
	handlers.SetupEngagementRoutes(app, streakService, progressionService, badgeService, ledgerService, promoService, affiliateService, challengeService, engagementMetrics)
	handlers.SetupAdminRoutes(app, progressionService, ledgerService, promoService, affiliateService, engagementMetrics)

	// Prometheus scrapes on its own port, outside the gateway-only Fiber app.
	metricsPort := os.Getenv("METRICS_PORT")
	if metricsPort == "" {
		metricsPort = "9104"
	}
	go func() {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		if err := http.ListenAndServe(":"+metricsPort, mux); err != nil {
			log.Printf("Metrics server error: %v", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = "5300"
	}

	go func() {
		if err := app.Listen(":" + port); err != nil {
			log.Printf("Server error: %v", err)
		}
	}()

	log.Printf("✅ Server running on http://localhost:%s", port)
	log.Println("✅ Account Sync Worker running")
	log.Println("✅ Promo expiry sweep running (every 1m)")
	log.Println("✅ GatewayAuthMiddleware enforced globally — all requests must come from Gateway")
	log.Printf("✅ Metrics exposed on :%s/metrics", metricsPort)
	log.Printf("✅ CORS configured for origins: %s", allowedOriginsString)

	<-ctx.Done()
	log.Println("Shutting down server...")
}
