package main

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/bluefin-labs/enterprise-api/internal/app"
	"github.com/bluefin-labs/enterprise-api/internal/config"
	"github.com/bluefin-labs/enterprise-api/internal/controllers"
	"github.com/bluefin-labs/enterprise-api/internal/middleware"
	"github.com/bluefin-labs/enterprise-api/internal/repositories"
	"github.com/bluefin-labs/enterprise-api/internal/routes"
	"github.com/bluefin-labs/enterprise-api/internal/services"
	"github.com/bluefin-labs/enterprise-api/internal/utils"
)

func main() {
	utils.InitLogger("enterprise-api")
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize application:", err)
	}
	defer application.Close()

	//----------------------------------------------------------------------
	// Repositories
	//----------------------------------------------------------------------
	userRepo := repositories.NewUserRepository(application.DB)
	credRepo := repositories.NewPasskeyCredentialRepository(application.DB)
	itemRepo := repositories.NewItemRepository(application.DB)

	//----------------------------------------------------------------------
	// Services
	//----------------------------------------------------------------------
	challengeStore := services.NewChallengeStore(cfg.ChallengeTTL)
	webauthnService := services.NewWebAuthnService(cfg, challengeStore, credRepo)
	jwtService := services.NewJWTService(cfg)
	itemService := services.NewItemService(itemRepo, application.Cache, cfg.ItemCacheTTL)
	rateLimiter := services.NewRateLimiterService(application.Cache, cfg.RateLimitRequests, cfg.RateLimitWindow)

	//----------------------------------------------------------------------
	// Controllers
	//----------------------------------------------------------------------
	authController := controllers.NewAuthController(userRepo)
	passkeyController := controllers.NewPasskeyController(webauthnService, jwtService, userRepo, credRepo)
	itemController := controllers.NewItemController(itemService)
	healthController := controllers.NewHealthController(application)

	//----------------------------------------------------------------------
	// Router & Endpoints
	//----------------------------------------------------------------------
	router := mux.NewRouter()
	router.Use(middleware.RequestLogger)

	// Health and metrics
	router.HandleFunc(routes.Root, healthController.RootHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.HealthDetailed, healthController.DetailedHealthHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.HealthLive, healthController.LivenessHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.HealthReady, healthController.ReadinessHandler).Methods(http.MethodGet)
	router.Handle(routes.Metrics, promhttp.Handler()).Methods(http.MethodGet)

	// Public endpoints, rate limited
	public := router.NewRoute().Subrouter()
	public.Use(middleware.RateLimitMiddleware(rateLimiter))
	public.HandleFunc(routes.AuthRegister, authController.Register).Methods(http.MethodPost)
	public.HandleFunc(routes.PasskeyRegisterBegin, passkeyController.RegisterBegin).Methods(http.MethodPost)
	public.HandleFunc(routes.PasskeyAuthenticateBegin, passkeyController.AuthenticateBegin).Methods(http.MethodPost)
	public.HandleFunc(routes.PasskeyAuthenticateComplete, passkeyController.AuthenticateComplete).Methods(http.MethodPost)

	// Protected endpoints require a valid token
	protected := router.NewRoute().Subrouter()
	protected.Use(middleware.RateLimitMiddleware(rateLimiter))
	protected.Use(middleware.AuthMiddleware(cfg.RSAPublicKey))
	protected.HandleFunc(routes.AuthMe, authController.Me).Methods(http.MethodGet)
	protected.HandleFunc(routes.PasskeyRegisterComplete, passkeyController.RegisterComplete).Methods(http.MethodPost)
	protected.HandleFunc(routes.PasskeyCredentials, passkeyController.ListCredentials).Methods(http.MethodGet)
	protected.HandleFunc(routes.PasskeyCredentialByID, passkeyController.RemoveCredential).Methods(http.MethodDelete)
	protected.HandleFunc(routes.Items, itemController.Create).Methods(http.MethodPost)
	protected.HandleFunc(routes.Items, itemController.List).Methods(http.MethodGet)
	protected.HandleFunc(routes.ItemSearch, itemController.Search).Methods(http.MethodGet)
	protected.HandleFunc(routes.ItemByID, itemController.Get).Methods(http.MethodGet)
	protected.HandleFunc(routes.ItemByID, itemController.Update).Methods(http.MethodPut)
	protected.HandleFunc(routes.ItemByID, itemController.Delete).Methods(http.MethodDelete)

	//----------------------------------------------------------------------
	// Periodic challenge sweep via cron
	//----------------------------------------------------------------------
	c := cron.New()
	_, schErr := c.AddFunc("@every 5m", func() {
		if removed := challengeStore.ClearExpired(); removed > 0 {
			utils.Logger.Debugf("Swept %d expired challenges", removed)
		}
	})
	if schErr != nil {
		utils.Logger.WithError(schErr).Fatal("Failed to schedule challenge sweep job")
	}
	c.Start()

	co := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("Failed to start server:", err)
	}
}
