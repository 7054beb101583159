package main

import (
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/villebiz/marketplace-server/business"
	"github.com/villebiz/marketplace-server/handlers/notifications"
	"github.com/villebiz/marketplace-server/handlers/orders"
	"github.com/villebiz/marketplace-server/handlers/payments"
	"github.com/villebiz/marketplace-server/migrations"
	"github.com/villebiz/marketplace-server/notify"
	"github.com/villebiz/marketplace-server/payhero"
	"github.com/villebiz/marketplace-server/store"
	"github.com/villebiz/marketplace-server/utils"
)

func init() {
	if err := godotenv.Load(); err != nil {
		log.Info("No .env file found, relying on environment variables")
	}
	log.SetFormatter(&log.JSONFormatter{})
	if os.Getenv("LOG_LEVEL") == "debug" {
		log.SetLevel(log.DebugLevel)
	}
}

func allowedOrigins() []string {
	if raw := os.Getenv("ALLOWED_ORIGINS"); raw != "" {
		return strings.Split(raw, ",")
	}
	return []string{"https://villebiz.com", "https://www.villebiz.com"}
}

func main() {
	r := gin.Default()

	r.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins(),
		AllowMethods:     []string{"GET", "POST", "PATCH", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Callback-Signature"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	db, err := store.Connect()
	if err != nil {
		log.WithError(err).Fatal("could not connect to database")
	}
	subsDB, err := store.ConnectSubscriptions()
	if err != nil {
		log.WithError(err).Fatal("could not connect to subscriptions database")
	}

	if err := migrations.Migrate(db); err != nil {
		log.WithError(err).Fatal("migration failed")
	}
	if err := migrations.MigrateSubscriptions(subsDB); err != nil {
		log.WithError(err).Fatal("subscriptions migration failed")
	}

	orderStore := store.NewOrderStore(db)
	ledger := store.NewTransactionLedger(db)
	notificationLog := store.NewNotificationLog(db)
	subscriptions := store.NewSubscriptionStore(subsDB)

	broadcaster := notify.NewBroadcasterFromEnv(subscriptions)
	dispatcher := notify.NewDispatcher(
		notify.NewWhatsAppChannelFromEnv(),
		notify.NewEmailChannelFromEnv(),
		notify.NewWebPushChannel(broadcaster, notificationLog),
	)

	reconciler := business.NewReconciler(orderStore, ledger, dispatcher, os.Getenv("APP_URL"))
	gateway := payhero.NewClientFromEnv()

	paymentHandler := payments.NewHandler(gateway, orderStore, ledger, reconciler)
	orderHandler := orders.NewHandler(orderStore, dispatcher)
	notificationHandler := notifications.NewHandler(subscriptions, broadcaster, notificationLog)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	paid := r.Group("/")
	paid.Use(utils.RateLimit(5, 10))
	{
		paid.POST("/pay", paymentHandler.InitiateSTK)
		paid.GET("/pay_now", paymentHandler.InitiateSTK)
		paid.POST("/callback", paymentHandler.Callback)
	}

	r.GET("/transactions", paymentHandler.GetTransactions)
	r.GET("/transactions/:external_reference", paymentHandler.GetTransaction)

	r.POST("/orders/add", orderHandler.CreateOrder)
	r.GET("/orders/:reference", orderHandler.GetOrder)
	r.POST("/orders/:reference/notify", orderHandler.SendNotice)

	protected := r.Group("/")
	protected.Use(utils.AuthRequired())
	{
		protected.PATCH("/orders/:reference", orderHandler.UpdateOrder)
		protected.DELETE("/orders/:reference", orderHandler.DeleteOrder)
	}

	notifications.RegisterNotificationRoutes(r.Group("/"), notificationHandler)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	if err := r.Run(":" + port); err != nil {
		log.WithError(err).Fatal("server exited")
	}
}
