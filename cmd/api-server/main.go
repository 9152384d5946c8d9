package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"songrate/internal/app"
	"songrate/internal/auth"
	"songrate/internal/metrics"
	"songrate/internal/ratelimit"
	"songrate/internal/rounds"
	synchub "songrate/internal/sync"
	"songrate/pkg/database"
	"songrate/pkg/utils"
)

func main() {
	utils.LoadEnv()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := database.DefaultConfig()
	db := database.MustOpen(cfg)
	defer db.Close()

	srvCfg := utils.LoadServerConfig()
	m := metrics.New()

	router := gin.Default()
	_ = router.SetTrustedProxies([]string{"127.0.0.1"})
	router.Use(m.Middleware())

	hub := synchub.NewHub()
	router.GET("/ws", synchub.WSHandler(hub))
	tcpSrv := synchub.NewServer(srvCfg.SyncAddr, hub)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "db": cfg.Driver})
	})

	router.GET("/ready", func(c *gin.Context) {
		stats := hub.Stats()
		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":      "not_ready",
				"db_error":    err.Error(),
				"tcp_clients": stats.TCPClients,
				"ws_clients":  stats.WSClients,
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":      "ready",
			"db":          "ok",
			"tcp_clients": stats.TCPClients,
			"ws_clients":  stats.WSClients,
		})
	})
	router.GET("/metrics", m.Handler())

	// Auth
	authCfg := utils.LoadAuthConfig()
	tokenSvc := app.TokenService(authCfg)
	authRepo := auth.NewRepo(db)
	authHandler := auth.NewHandler(authRepo, tokenSvc)
	authGroup := router.Group("/auth")
	authHandler.RegisterRoutes(authGroup)

	discordCfg := utils.LoadDiscordConfig()
	if discordCfg.Enabled() {
		auth.NewDiscordHandler(authRepo, tokenSvc,
			discordCfg.ClientID, discordCfg.ClientSecret, discordCfg.RedirectURL, discordCfg.FrontendURL,
		).RegisterRoutes(authGroup)
	} else {
		log.Println("[auth] discord login disabled (RATE_DISCORD_CLIENT_ID/SECRET unset)")
	}

	requireAuth := auth.AuthMiddleware(tokenSvc, authRepo)
	authHandler.RegisterUserRoutes(router.Group("/users", requireAuth))

	// Rounds
	limiter := ratelimit.New(srvCfg.WriteRPS, srvCfg.WriteBurst)
	svc := app.NewRoundService(ctx, db, hub, m)
	roundsHandler := rounds.NewHandler(svc, limiter.Middleware(auth.CallerName))
	roundsHandler.RegisterRoutes(router.Group("/rates", requireAuth))

	httpSrv := &http.Server{
		Addr:              srvCfg.HTTPAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return tcpSrv.Run(gctx)
	})
	g.Go(func() error {
		log.Printf("HTTP API server listening on %s", srvCfg.HTTPAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down servers")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		log.Printf("server error: %v", err)
	}
	log.Println("servers stopped")
}
