package container

import (
	"context"
	"log/slog"

	"github.com/Nexoracode/khadamat/config"
	"github.com/Nexoracode/khadamat/internal/api/auth"
	"github.com/Nexoracode/khadamat/internal/api/cart"
	"github.com/Nexoracode/khadamat/internal/api/catalog"
	generativeAI "github.com/Nexoracode/khadamat/internal/api/generative_ai"
	llmChat "github.com/Nexoracode/khadamat/internal/api/llm_chat"
	"github.com/Nexoracode/khadamat/internal/api/recommendation"
	"github.com/Nexoracode/khadamat/internal/api/speech"
)

// Container holds all application dependencies
type Container struct {
	Config *config.Config
	Logger *slog.Logger

	Catalog *catalog.MemoryRepository
	Chat    *llmChat.ServiceImpl

	AuthHandler    *auth.HandlerImpl
	CatalogHandler *catalog.HandlerImpl
	CartHandler    *cart.HandlerImpl
	ChatHandler    *llmChat.HandlerImpl
}

// NewContainer wires the application against Gemini. Without an API key the
// app still starts and every chat turn gets the fallback reply.
func NewContainer(ctx context.Context, cfg *config.Config, logger *slog.Logger) *Container {
	var generator generativeAI.ContentGenerator
	client, err := generativeAI.NewAIClient(ctx, cfg.AI, logger)
	if err != nil {
		logger.WarnContext(ctx, "Generative AI disabled", slog.Any("error", err))
		generator = generativeAI.Unavailable{Reason: err}
	} else {
		generator = client
	}
	return NewContainerWithGenerator(cfg, generator, logger)
}

// NewContainerWithGenerator wires the application around an existing
// generator. Tests use it to script model replies.
func NewContainerWithGenerator(cfg *config.Config, generator generativeAI.ContentGenerator, logger *slog.Logger) *Container {
	catalogRepo := catalog.NewSeededRepository(logger)
	catalogService := catalog.NewServiceImpl(catalogRepo, logger)
	catalogHandler := catalog.NewHandlerImpl(catalogService, logger)

	cartService := cart.NewServiceImpl(catalogService, logger)
	cartHandler := cart.NewHandlerImpl(cartService, logger)

	authService := auth.NewServiceImpl(auth.NewLogSender(logger), cfg.OTP, cfg.JWT, logger)
	authHandler := auth.NewHandlerImpl(authService, logger)

	gateway := generativeAI.NewGateway(generator, catalogRepo, cfg.AI, logger)
	resolver := recommendation.NewResolver(catalogRepo, logger)
	synthesizer := speech.NewSynthesizer(generator, cfg.AI, logger)
	audioStore := llmChat.NewAudioStore(cfg.Chat.AudioTTL)

	chatService := llmChat.NewServiceImpl(gateway, resolver, synthesizer, audioStore, cfg.Chat, logger)
	chatHandler := llmChat.NewHandlerImpl(chatService, cfg.CORS.AllowedOrigins, logger)

	return &Container{
		Config:         cfg,
		Logger:         logger,
		Catalog:        catalogRepo,
		Chat:           chatService,
		AuthHandler:    authHandler,
		CatalogHandler: catalogHandler,
		CartHandler:    cartHandler,
		ChatHandler:    chatHandler,
	}
}
