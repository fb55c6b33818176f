package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"preventcoach/internal/agents"
	"preventcoach/internal/config"
	"preventcoach/internal/gateway"
	"preventcoach/internal/logger"
	"preventcoach/internal/orchestrator"
	"preventcoach/internal/profiles"
	"preventcoach/internal/storage"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "preventcoach: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "config.yaml", "path to config file")
	userID := flag.String("user", "", "user id for the chat session")
	flag.Parse()

	// .env is optional; real deployments set the environment directly.
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using process environment")
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		return err
	}

	if err := logger.InitLogger(cfg.Log); err != nil {
		return err
	}

	ctx := context.Background()

	providers := gateway.BuildProviders(cfg.Gateway.Providers)
	if len(providers) == 0 {
		logger.Warn().Msg("No model providers configured, every invocation will fail")
	}

	auditSink, err := buildAuditSink(ctx, cfg)
	if err != nil {
		return err
	}
	auditWriter := storage.NewAsyncAuditWriter(auditSink, cfg.Audit.QueueSize)
	defer auditWriter.Close()

	gw := gateway.New(providers, cfg.Gateway.HistoryWindow, auditWriter)
	registry := agents.NewRegistry(gw)

	store, err := buildSessionStore(ctx, cfg, registry.Names())
	if err != nil {
		return err
	}

	directory, err := profiles.LoadYAMLDirectory(cfg.Profiles.Path)
	if err != nil {
		return err
	}

	orch := orchestrator.New(registry, store, directory)

	uid := *userID
	if uid == "" {
		uid = os.Getenv("PREVENTCOACH_USER")
	}
	if uid == "" {
		uid = "local-dev"
	}

	return chatLoop(ctx, orch, uid)
}

func buildSessionStore(ctx context.Context, cfg *config.Config, agentNames []string) (storage.SessionStore, error) {
	if cfg.Session.RedisURL == "" {
		logger.Warn().Msg("REDIS_URL not set, sessions held in memory only")
		return storage.NewMemorySessionStore(agentNames), nil
	}
	return storage.NewRedisSessionStore(ctx, cfg.Session.RedisURL, agentNames)
}

func buildAuditSink(ctx context.Context, cfg *config.Config) (storage.AuditSink, error) {
	switch cfg.Audit.Sink {
	case "redis":
		if cfg.Session.RedisURL == "" {
			return nil, fmt.Errorf("audit sink 'redis' requires REDIS_URL")
		}
		return storage.NewRedisAuditSink(ctx, cfg.Session.RedisURL)
	case "file":
		return storage.NewFileAuditSink(cfg.Audit.Dir), nil
	default:
		return nil, fmt.Errorf("unknown audit sink: %s", cfg.Audit.Sink)
	}
}

// chatLoop is a minimal stdin/stdout front end. The conversational core is
// the orchestrator; any transport (HTTP, messaging) can sit in front of it.
func chatLoop(ctx context.Context, orch *orchestrator.Orchestrator, userID string) error {
	fmt.Printf("preventcoach chat (user: %s). Type 'quit' to exit.\n", userID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}
		if input == "quit" || input == "exit" {
			break
		}

		result, err := orch.ProcessTurn(ctx, userID, input)
		if err != nil {
			logger.Error().Err(err).Str("user_id", userID).Msg("Turn failed")
			fmt.Println(orchestrator.UserMessage(err))
			continue
		}

		fmt.Printf("[%s] %s\n", result.ActiveAgent, result.Response)
	}
	return scanner.Err()
}
