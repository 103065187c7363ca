package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kailas-cloud/schemachat/internal/config"
	"github.com/kailas-cloud/schemachat/internal/domain"
	logpkg "github.com/kailas-cloud/schemachat/internal/logger"
	chatuc "github.com/kailas-cloud/schemachat/internal/usecase/chat"
)

type askOptions struct {
	model       string
	temperature float32
	key         string
	system      string
}

func newAskCmd() *cobra.Command {
	var opts askOptions
	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a single question and stream the answer to stdout",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAsk(cmd, strings.Join(args, " "), opts)
		},
	}
	cmd.Flags().StringVar(&opts.model, "model", "", "completion model id (defaults to model.id from config)")
	cmd.Flags().Float32Var(&opts.temperature, "temperature", 0, "sampling temperature override")
	cmd.Flags().StringVar(&opts.key, "key", "", "provider API key override")
	cmd.Flags().StringVar(&opts.system, "system", "", "extra system message sent before the question")
	return cmd
}

func runAsk(cmd *cobra.Command, question string, opts askOptions) error {
	env := config.GetEnv()

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logpkg.NewLogger(env, cfg.Logging.Level)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	p, err := buildPipeline(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer p.close()

	var messages []domain.Message
	if opts.system != "" {
		messages = append(messages, domain.Message{Role: domain.RoleSystem, Content: opts.system})
	}
	messages = append(messages, domain.Message{Role: domain.RoleUser, Content: question})

	req := chatuc.Request{Messages: messages, APIKey: opts.key}
	if opts.model != "" {
		req.Model = &domain.ModelSelector{ID: opts.model, Name: opts.model}
	}
	if cmd.Flags().Changed("temperature") {
		req.Temperature = &opts.temperature
	}

	answer, err := p.chat.Stream(ctx, req)
	if err != nil {
		return err
	}
	defer func() { _ = answer.Close() }()

	out := cmd.OutOrStdout()
	if _, err := io.Copy(out, answer); err != nil {
		return fmt.Errorf("stream answer: %w", err)
	}
	_, _ = fmt.Fprintln(out)
	return nil
}
