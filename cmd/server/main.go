package main

import (
	"context"
	"time"

	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/api"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/bot"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/config"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/conversations"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/database"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/followup"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/history"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/leads"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/linker"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/webhook"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/whatsapp"
	"github.com/centralplastcontato-cell/castelodadiversao-sub000/internal/ws"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	cfg := config.LoadConfig()

	logger, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	// Init opens the connection and runs the schema migration.
	db, err := database.Init(cfg)
	if err != nil {
		logger.Fatal("database init failed", zap.Error(err))
	}

	hub := ws.NewHub(logger)
	go hub.Run()

	histRepo := history.NewGormRepo(db)
	hist := history.NewService(histRepo)

	convRepo := conversations.NewGormRepo(db)
	convs := conversations.NewService(convRepo, hub, logger)

	leadRepo := leads.NewGormRepo(db)
	leadSvc := leads.NewService(leadRepo, hist, hub, logger)

	link := linker.NewService(convRepo, leadRepo, convs, hist, hub, logger)

	sender := whatsapp.NewClient()

	botRepo := bot.NewGormRepo(db)
	followRepo := followup.NewGormRepo(db)
	followSvc := followup.NewService(followRepo, leadRepo, convs, convRepo, botRepo, sender, hist, cfg, logger)

	engine := bot.NewEngine(botRepo, convs, leadSvc, link, followSvc, hist, sender, cfg, logger)

	webhookHandler := webhook.NewHandler(cfg, convs, link, engine, logger)
	conversationHandler := api.NewConversationHandler(convs, link)
	leadHandler := api.NewLeadHandler(leadSvc, db)
	settingsHandler := api.NewSettingsHandler(db)
	followUpHandler := api.NewFollowUpHandler(followSvc)

	r := gin.Default()

	// CORS Middleware
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	r.POST("/webhook", webhookHandler.HandleEvent)
	r.GET("/ws", func(c *gin.Context) {
		hub.ServeWs(c.Writer, c.Request)
	})

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/conversations", conversationHandler.List)
		apiGroup.GET("/conversations/:id/messages", conversationHandler.Messages)
		apiGroup.POST("/conversations/:id/read", conversationHandler.MarkRead)
		apiGroup.POST("/conversations/:id/favorite", conversationHandler.ToggleFavorite)
		apiGroup.PUT("/conversations/:id/bot", conversationHandler.SetBotFlag)
		apiGroup.POST("/conversations/:id/link", conversationHandler.Link)
		apiGroup.POST("/conversations/:id/unlink", conversationHandler.Unlink)
		apiGroup.GET("/conversations/duplicates", conversationHandler.Duplicates)
		apiGroup.POST("/conversations/merge", conversationHandler.Merge)

		apiGroup.GET("/leads", leadHandler.List)
		apiGroup.POST("/leads", leadHandler.Create)
		apiGroup.GET("/leads/:id", leadHandler.Get)
		apiGroup.PUT("/leads/:id", leadHandler.Update)
		apiGroup.DELETE("/leads/:id", leadHandler.Delete)
		apiGroup.POST("/leads/:id/advance", leadHandler.MoveForward)
		apiGroup.POST("/leads/:id/regress", leadHandler.MoveBackward)
		apiGroup.POST("/leads/:id/status", leadHandler.MoveTo)
		apiGroup.GET("/leads/:id/history", leadHandler.History)

		apiGroup.GET("/bot/settings", settingsHandler.GetBotSettings)
		apiGroup.PUT("/bot/settings", settingsHandler.UpdateBotSettings)
		apiGroup.GET("/bot/questions", settingsHandler.ListQuestions)
		apiGroup.POST("/bot/questions", settingsHandler.SaveQuestion)
		apiGroup.GET("/bot/vips", settingsHandler.ListVIPs)
		apiGroup.POST("/bot/vips", settingsHandler.AddVIP)
		apiGroup.DELETE("/bot/vips/:id", settingsHandler.RemoveVIP)
		apiGroup.GET("/materials", settingsHandler.ListMaterials)

		apiGroup.POST("/followups/run", followUpHandler.Run)
	}

	go runScheduler(cfg, followSvc, logger)

	logger.Info("server starting", zap.String("port", cfg.Port))
	if err := r.Run(":" + cfg.Port); err != nil {
		logger.Fatal("server stopped", zap.Error(err))
	}
}

func runScheduler(cfg *config.Config, svc *followup.Service, logger *zap.Logger) {
	ticker := time.NewTicker(cfg.SchedulerInterval)
	defer ticker.Stop()
	for now := range ticker.C {
		ctx, cancel := context.WithTimeout(context.Background(), cfg.SchedulerInterval)
		if err := svc.RunDue(ctx, now); err != nil {
			logger.Error("follow-up pass failed", zap.Error(err))
		}
		cancel()
	}
}
