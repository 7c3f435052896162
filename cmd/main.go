package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/aws/aws-lambda-go/lambda"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"frc-chat-gateway/handler"
	appconfig "frc-chat-gateway/internal/config"
	"frc-chat-gateway/internal/enrichment"
	"frc-chat-gateway/internal/integrations/knowledge"
	"frc-chat-gateway/internal/integrations/paramstore"
	"frc-chat-gateway/internal/integrations/tba"
	"frc-chat-gateway/internal/provider"
	"frc-chat-gateway/internal/provider/gemini"
	"frc-chat-gateway/internal/provider/openai"
	"frc-chat-gateway/internal/repository"
	"frc-chat-gateway/internal/usecase"
)

func main() {
	ctx := context.Background()

	// ---- Configuration (read only here) ----
	cfg, err := appconfig.Load()
	if err != nil {
		slog.Error("failed to load configuration", "err", err)
		os.Exit(1)
	}

	// ---- AWS SDK config ----
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	store, err := repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.ConversationsTable)
	if err != nil {
		slog.Error("failed to create conversation store", "err", err)
		os.Exit(1)
	}

	// ---- Enrichment ----
	tbaClient, err := tba.NewClient(ssmClient, cfg.ParamPrefix+"/tba-api-key")
	if err != nil {
		slog.Error("failed to create TBA client", "err", err)
		os.Exit(1)
	}
	knowledgeClient, err := knowledge.NewClient(ssmClient, cfg.ParamPrefix+"/knowledge-api-key", cfg.KnowledgeBase)
	if err != nil {
		slog.Error("failed to create knowledge client", "err", err)
		os.Exit(1)
	}
	engine, err := enrichment.NewEngine(tbaClient, knowledgeClient, cfg.MaxTeamLookups, cfg.KnowledgeTopK)
	if err != nil {
		slog.Error("failed to create enrichment engine", "err", err)
		os.Exit(1)
	}

	// ---- Providers ----
	geminiClient, err := gemini.NewClient(ssmClient, cfg.ParamPrefix+"/gemini-api-key", cfg.GeminiModel)
	if err != nil {
		slog.Error("failed to create gemini provider", "err", err)
		os.Exit(1)
	}
	openaiClient, err := openai.NewClient(ssmClient, cfg.ParamPrefix+"/openai-api-key", cfg.OpenAIModel,
		openai.WithBaseURL(cfg.OpenAIBase))
	if err != nil {
		slog.Error("failed to create openai provider", "err", err)
		os.Exit(1)
	}
	activeProvider, err := provider.NewRegistry(geminiClient, openaiClient).Get(cfg.Provider)
	if err != nil {
		slog.Error("unknown provider selected", "provider", cfg.Provider, "err", err)
		os.Exit(1)
	}

	// ---- Services ----
	recorder, err := usecase.NewTurnRecorder(store)
	if err != nil {
		slog.Error("failed to create turn recorder", "err", err)
		os.Exit(1)
	}
	chatService, err := usecase.NewChatService(engine, activeProvider, recorder,
		usecase.WithHistoryWindow(cfg.HistoryWindow))
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	h, err := handler.NewHandler(chatService)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}
