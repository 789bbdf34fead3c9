package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	appservices "virtual-tryon/internal/application/services"
	"virtual-tryon/internal/application/usecases"
	"virtual-tryon/internal/config"
	"virtual-tryon/internal/domain/repositories"
	domainservices "virtual-tryon/internal/domain/services"
	"virtual-tryon/internal/infrastructure/cli"
	"virtual-tryon/internal/infrastructure/external"
	infrarepos "virtual-tryon/internal/infrastructure/repositories"
	infraservices "virtual-tryon/internal/infrastructure/services"
	"virtual-tryon/internal/observability"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file")
	personPath := flag.String("person", "", "person image (with -clothing: generate once and exit)")
	clothingPath := flag.String("clothing", "", "clothing item image")
	outPath := flag.String("out", "", "where to write the result (default: <output_dir>/tryon-<id>.<ext>)")
	backend := flag.String("backend", "", "generation backend: gemini or vertex")
	verbose := flag.Bool("verbose", false, "log debug events")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := config.Load(*configPath, func(c *config.Config) {
		if *backend != "" {
			c.Backend = *backend
		}
	})
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	slog.Info("[boot] config", "backend", cfg.Backend, "project", cfg.ProjectID, "location", cfg.Location, "useSDK", cfg.UseSDK)

	if (*personPath == "") != (*clothingPath == "") {
		log.Fatal("-person and -clothing must be given together")
	}

	if err := run(cfg, logger, *personPath, *clothingPath, *outPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// run owns every resource that needs closing, so main can exit with a
// status only after the deferred Close calls have run.
func run(cfg *config.Config, logger *slog.Logger, personPath, clothingPath, outPath string) error {
	// インフラ層を初期化
	pools := infraservices.NewClientPoolService(repositories.AIClientConfig{
		ProjectID:    cfg.ProjectID,
		Location:     cfg.Location,
		GeminiAPIKey: cfg.GeminiAPIKey,
	})
	defer pools.Close()

	aiService := newAIService(cfg, pools)
	defer aiService.Close()

	tryOnRepository := infrarepos.NewMemoryTryOnRepository()

	// ドメイン層を初期化
	tryOnDomainService := domainservices.NewTryOnDomainService(aiService)

	// アプリケーション層を初期化
	parameterService := appservices.NewParameterService(cfg.Parameters)
	if _, err := parameterService.Build(); err != nil {
		return fmt.Errorf("invalid generation parameters: %w", err)
	}
	tryOnUseCase := usecases.NewTryOnUseCase(tryOnRepository, tryOnDomainService, parameterService)

	observer := observability.NewSlogObserver(logger)
	workflow := usecases.NewWorkflowUseCase(
		&timeoutGenerator{next: tryOnUseCase, cfg: cfg},
		usecases.WithObserver(observer),
	)

	// 表示層を初期化
	session := cli.NewSession(workflow, cli.NewSurveyDriver(), cli.NewPresenter(os.Stdout),
		cli.WithOutputDir(cfg.OutputDir),
		cli.WithIntakeOptions(
			appservices.WithMaxBytes(cfg.MaxUploadBytes),
			appservices.WithObserver(observer),
		),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if personPath != "" {
		_, err := session.RunOnce(ctx, personPath, clothingPath, outPath)
		return err
	}

	if err := session.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("session ended with error: %w", err)
	}
	return nil
}

func newAIService(cfg *config.Config, pools repositories.ClientPoolService) repositories.TryOnAIService {
	if cfg.Backend == config.BackendVertex {
		opts := []external.VertexOption{external.WithBaseURL(cfg.VertexEndpoint)}
		if cfg.UseSDK {
			opts = append(opts, external.WithSDK(pools.VertexAIPool()))
		}
		slog.Info("[boot] generation service", "backend", "vertex", "model", cfg.VTOModel)
		return external.NewVertexTryOnService(cfg.ProjectID, cfg.Location, cfg.VTOModel, opts...)
	}

	slog.Info("[boot] generation service", "backend", "gemini", "model", cfg.GeminiModel)
	return external.NewGeminiTryOnService(pools.GenAIPool(), cfg.GeminiModel)
}

// timeoutGenerator bounds each generation call by the configured request
// timeout.
type timeoutGenerator struct {
	next usecases.Generator
	cfg  *config.Config
}

func (g *timeoutGenerator) Execute(ctx context.Context, input usecases.TryOnInput) (*usecases.TryOnOutput, error) {
	ctx, cancel := context.WithTimeout(ctx, g.cfg.RequestTimeout)
	defer cancel()
	return g.next.Execute(ctx, input)
}
