package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-lambda-go/lambdaurl"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"rag-agent/handler"
	"rag-agent/internal/feedback"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat API over HTTP, or as a Lambda function URL when running in Lambda",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := loadApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			feedbackStore, err := feedback.NewFileStore(a.cfg.FeedbackFile)
			if err != nil {
				return err
			}

			inLambda := os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
			h, err := handler.NewHandler(a.answers, a.sessions, feedbackStore,
				handler.WithLogger(a.logger.Named("http")),
				handler.WithQuestionLimit(a.cfg.QuestionLimit),
				handler.WithAllowedOrigins(a.cfg.AllowedOrigins),
				handler.WithRequestTimeout(a.cfg.RequestTimeout),
				handler.WithTokenCounter(a.tokens),
				handler.WithSecureCookies(inLambda),
			)
			if err != nil {
				return err
			}

			if inLambda {
				a.logger.Info("starting Lambda function URL handler")
				lambdaurl.Start(h.Router())
				return nil
			}
			return serveHTTP(ctx, a.logger, a.cfg.HTTPAddr, h.Router())
		},
	}
}

func serveHTTP(ctx context.Context, logger *zap.Logger, addr string, routes http.Handler) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           routes,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
