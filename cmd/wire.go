package main

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	"go.uber.org/zap"

	"rag-agent/internal/config"
	"rag-agent/internal/integrations/openai"
	"rag-agent/internal/integrations/paramstore"
	"rag-agent/internal/integrations/pinecone"
	"rag-agent/internal/repository"
	"rag-agent/internal/tokens"
	"rag-agent/internal/usecase"
)

// app holds the wired dependencies shared by the commands.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	answers  *usecase.AnswerService
	sessions repository.SessionStore
	tokens   *tokens.Counter
	index    *pinecone.Client

	awsCfg *aws.Config
}

func loadApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger}
	if err := a.wire(ctx); err != nil {
		_ = logger.Sync()
		return nil, err
	}
	return a, nil
}

func (a *app) aws(ctx context.Context) (aws.Config, error) {
	if a.awsCfg != nil {
		return *a.awsCfg, nil
	}
	cfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return aws.Config{}, fmt.Errorf("load AWS config: %w", err)
	}
	a.awsCfg = &cfg
	return cfg, nil
}

// tokenSource reads keys from SSM when a parameter prefix is configured and
// from the environment otherwise.
func (a *app) tokenSource(ctx context.Context) (paramstore.TokenGetter, error) {
	if a.cfg.ParamPrefix == "" {
		return paramstore.Static{
			a.cfg.OpenAITokenName():   a.cfg.OpenAIAPIKey,
			a.cfg.PineconeTokenName(): a.cfg.PineconeAPIKey,
		}, nil
	}
	awsCfg, err := a.aws(ctx)
	if err != nil {
		return nil, err
	}
	client, err := paramstore.New(awsssm.NewFromConfig(awsCfg))
	if err != nil {
		return nil, err
	}
	return client, nil
}

func (a *app) wire(ctx context.Context) error {
	cfg := a.cfg

	keys, err := a.tokenSource(ctx)
	if err != nil {
		return fmt.Errorf("create parameter store client: %w", err)
	}

	pineconeKey, err := keys.GetToken(ctx, cfg.PineconeTokenName())
	if err != nil {
		return fmt.Errorf("resolve Pinecone key: %w", err)
	}
	a.index, err = pinecone.New(ctx, pineconeKey, cfg.IndexName, a.logger.Named("pinecone"))
	if err != nil {
		return err
	}

	llm, err := openai.NewClient(keys, cfg.OpenAITokenName(),
		openai.WithBaseURL(cfg.OpenAIBaseURL),
		openai.WithChatModel(cfg.LLMModel),
		openai.WithEmbeddingModel(cfg.EmbeddingModel),
		openai.WithEmbeddingDimensions(cfg.EmbeddingDimensions),
		openai.WithTemperature(float32(cfg.LLMTemperature)),
	)
	if err != nil {
		return err
	}

	a.tokens, err = tokens.New(cfg.LLMModel)
	if err != nil {
		return err
	}

	sourceNames, err := config.LoadSourceNames(cfg.SourceNamesFile)
	if err != nil {
		return err
	}

	a.answers, err = usecase.NewAnswerService(llm, a.index, llm,
		usecase.WithTopK(cfg.TopK),
		usecase.WithNamespace(cfg.Namespace),
		usecase.WithSourceNames(sourceNames),
		usecase.WithLogger(a.logger.Named("answer")),
		usecase.WithTokenCounter(a.tokens),
	)
	if err != nil {
		return err
	}

	if cfg.StateTable == "" {
		a.logger.Info("STATE_TABLE not set, keeping sessions in memory")
		a.sessions = repository.NewMemoryStore()
		return nil
	}
	awsCfg, err := a.aws(ctx)
	if err != nil {
		return err
	}
	a.sessions, err = repository.New(awsdynamodb.NewFromConfig(awsCfg), cfg.StateTable)
	return err
}

func (a *app) close() {
	if a.index != nil {
		if err := a.index.Close(); err != nil {
			a.logger.Warn("failed to close index connections", zap.Error(err))
		}
	}
	_ = a.logger.Sync()
}
