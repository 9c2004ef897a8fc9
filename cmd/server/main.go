package main

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/stayloop/backend/docs"
	"github.com/stayloop/backend/internal/database"
	"github.com/stayloop/backend/internal/handlers"
	mW "github.com/stayloop/backend/internal/middleware"
	"github.com/stayloop/backend/internal/services"
)

// @title Stayloop Booking API
// @version 1.0
// @description Hotel booking backend with wallet and card payment settlement
// @host localhost:8080
// @BasePath /api/v1
// @schemes http https
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization

func main() {
	viper.SetConfigFile(".env")
	viper.AutomaticEnv()

	viper.BindEnv("database.host", "DATABASE_HOST")
	viper.BindEnv("database.port", "DATABASE_PORT")
	viper.BindEnv("database.user", "DATABASE_USER")
	viper.BindEnv("database.password", "DATABASE_PASSWORD")
	viper.BindEnv("database.name", "DATABASE_NAME")
	viper.BindEnv("database.ssl_mode", "DATABASE_SSL_MODE")

	viper.BindEnv("redis.host", "REDIS_HOST")
	viper.BindEnv("redis.port", "REDIS_PORT")
	viper.BindEnv("redis.password", "REDIS_PASSWORD")
	viper.BindEnv("redis.db", "REDIS_DB")

	viper.BindEnv("jwt.secret_key", "JWT_SECRET_KEY")
	viper.BindEnv("jwt.expiry_hours", "JWT_EXPIRY_HOURS")

	viper.BindEnv("stripe.secret_key", "STRIPE_SECRET_KEY")
	viper.BindEnv("stripe.webhook_secret", "STRIPE_WEBHOOK_SECRET")
	viper.BindEnv("stripe.platform_fee_bps", "STRIPE_PLATFORM_FEE_BPS")
	viper.BindEnv("stripe.success_url", "STRIPE_SUCCESS_URL")
	viper.BindEnv("stripe.cancel_url", "STRIPE_CANCEL_URL")
	viper.BindEnv("stripe.refresh_url", "STRIPE_REFRESH_URL")
	viper.BindEnv("stripe.return_url", "STRIPE_RETURN_URL")

	viper.BindEnv("payments.currency", "PAYMENTS_CURRENCY")
	viper.BindEnv("payments.min_deposit", "PAYMENTS_MIN_DEPOSIT")

	if err := viper.ReadInConfig(); err != nil {
		log.Printf("Config file not found, using defaults: %v", err)
	}

	docs.SwaggerInfo.Title = "Stayloop Booking API"
	docs.SwaggerInfo.Description = "Hotel booking backend with wallet and card payment settlement"
	docs.SwaggerInfo.Version = "1.0"
	docs.SwaggerInfo.Host = "localhost:8080"
	docs.SwaggerInfo.BasePath = "/api/v1"
	docs.SwaggerInfo.Schemes = []string{"http", "https"}

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	userService := services.NewUserService(db)
	ticketService := services.NewTicketService(db)
	ledgerService := services.NewLedgerService(db)
	gateway := services.NewStripeGateway()
	settlementService := services.NewSettlementService(db, ticketService, userService, userService, ledgerService, gateway, redisClient)
	reconciliationService := services.NewReconciliationService(db, ledgerService, ticketService, userService, gateway, redisClient)
	authService := services.NewAuthService(db)

	paymentHandler := handlers.NewPaymentHandler(settlementService)
	webhookHandler := handlers.NewWebhookHandler(reconciliationService)
	walletHandler := handlers.NewWalletHandler(userService, ledgerService)
	bookingHandler := handlers.NewBookingHandler(ticketService)
	connectHandler := handlers.NewConnectHandler(userService, gateway)

	r := chi.NewRouter()

	r.Use(mW.SecurityHeaders)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"https://*", "http://*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Stripe-Signature"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	})

	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("http://localhost:8080/swagger/doc.json"),
	))

	r.Handle("/static/hotel-photos/*", http.StripPrefix("/static/hotel-photos/",
		mW.StaticFileServer("./static/hotel-photos")))

	// Processor callbacks authenticate by signature, not bearer token.
	r.Post("/stripe/webhook", webhookHandler.HandleStripeWebhook)

	r.Route("/api/v1", func(r chi.Router) {
		// Public endpoints
		r.Post("/auth/register", authService.Register)
		r.Post("/auth/login", authService.Login)

		// Protected endpoints
		r.Group(func(r chi.Router) {
			r.Use(mW.AuthMiddleware)

			r.Post("/tickets", bookingHandler.CreateTicket)
			r.Get("/tickets/{ticketId}", bookingHandler.GetTicket)
			r.Post("/tickets/{ticketId}/pay", paymentHandler.PayTicket)

			r.Post("/stripe/create-payment-intent", paymentHandler.CreatePaymentIntent)
			r.Post("/stripe/create-checkout-session", paymentHandler.CreateCheckoutSession)

			r.Get("/wallet", walletHandler.GetWallet)
			r.Get("/wallet/transactions", walletHandler.ListTransactions)

			r.Post("/partner/stripe/account", connectHandler.CreateAccount)
			r.Get("/partner/stripe/account", connectHandler.GetAccount)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("Server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server stopped")
}
