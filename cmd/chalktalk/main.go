// ABOUTME: CLI entrypoint: wires providers, retrieval, sandbox, and muxer into a pipeline run.
// ABOUTME: Also hosts the optional status server and the offline index-build mode.

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/2389-research/chalktalk/config"
	"github.com/2389-research/chalktalk/llm"
	"github.com/2389-research/chalktalk/media"
	"github.com/2389-research/chalktalk/pipeline"
	"github.com/2389-research/chalktalk/retrieval"
	"github.com/2389-research/chalktalk/sandbox"
	"github.com/2389-research/chalktalk/speech"
	"github.com/2389-research/chalktalk/web"
)

var version = "dev"

type cliFlags struct {
	configPath  string
	topic       string
	serve       bool
	buildIndex  string
	showVersion bool
}

func main() {
	_ = godotenv.Load()

	var f cliFlags
	flag.StringVar(&f.configPath, "config", "config.yaml", "Path to the YAML config file")
	flag.StringVar(&f.topic, "topic", "", "Video topic to generate")
	flag.BoolVar(&f.serve, "serve", false, "Expose run status over HTTP while the pipeline runs")
	flag.StringVar(&f.buildIndex, "build-index", "", "Build the retrieval index from a directory of example files, then exit")
	flag.BoolVar(&f.showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if f.showVersion {
		fmt.Printf("chalktalk %s\n", version)
		return
	}
	if f.topic == "" && flag.NArg() > 0 {
		f.topic = flag.Arg(0)
	}

	os.Exit(run(f))
}

func run(f cliFlags) int {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	openaiKey := os.Getenv("OPENAI_API_KEY")
	anthropicKey := os.Getenv("ANTHROPIC_API_KEY")

	if f.buildIndex != "" {
		return buildIndex(ctx, cfg, openaiKey, f.buildIndex)
	}

	if f.topic == "" {
		fmt.Fprintln(os.Stderr, "error: no topic given (use -topic or a positional argument)")
		return 2
	}
	if openaiKey == "" || anthropicKey == "" {
		fmt.Fprintln(os.Stderr, "error: OPENAI_API_KEY and ANTHROPIC_API_KEY must both be set")
		return 1
	}

	runID := config.NewRunID()
	outDir := filepath.Join(cfg.Paths.OutputRoot, runID)
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "error: create run dir: %v\n", err)
		return 1
	}
	log.Printf("[chalktalk] run %s writing to %s", runID, outDir)

	tracker := web.NewTracker(runID, f.topic)
	if f.serve {
		srv := &http.Server{Addr: cfg.Server.Addr, Handler: web.NewServer(tracker)}
		go func() {
			log.Printf("[chalktalk] status server on %s", cfg.Server.Addr)
			if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
				log.Printf("[chalktalk] status server: %v", serveErr)
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	runner := newSandbox(cfg)
	services := &pipeline.Services{
		ScriptLLM:   newOpenAI(openaiKey, cfg.Models.Script, cfg.Models.OpenAIBaseURL),
		PlannerLLM:  newOpenAI(openaiKey, cfg.Models.Planner, cfg.Models.OpenAIBaseURL),
		CodegenLLM:  llm.NewAnthropicClient(anthropicKey, cfg.Models.Codegen),
		RepairLLM:   llm.NewAnthropicClient(anthropicKey, cfg.Models.Repair),
		Retry:       llm.DefaultRetryPolicy(),
		Temperature: cfg.Models.Temperature,
		Synth:       speech.NewOpenAISynthesizer(openaiKey, cfg.Speech.Model, cfg.Speech.Voice),
		Sandbox:     runner,
		Renderer:    runner,
		Muxer:       &media.Muxer{},
		OutDir:      outDir,
		MaxParallel:     cfg.Pipeline.MaxParallel,
		MaxReviewCycles: cfg.Pipeline.MaxReviewCycles,
		MaxRegenCycles:  cfg.Pipeline.MaxRegenCycles,
		RetrievalK:      cfg.Retrieval.K,
		Observe:         tracker.Observe,
		ObserveState:    tracker.SetState,
	}

	if ix := openIndex(cfg, openaiKey); ix != nil {
		defer ix.Close()
		services.Index = ix
	}

	st, err := pipeline.Run(ctx, services, f.topic)
	tracker.Finish(st, err)

	if err != nil {
		fmt.Fprintf(os.Stderr, "pipeline failed: %v\n", err)
		return 1
	}
	if st.Error != "" {
		log.Printf("[chalktalk] completed with degraded segments: %s", st.Error)
	}
	fmt.Printf("final video: %s\n", st.FinalVideoPath)
	return 0
}

func newOpenAI(key, model, baseURL string) *llm.OpenAIClient {
	if baseURL != "" {
		return llm.NewOpenAIClient(key, model, llm.WithOpenAIBaseURL(baseURL))
	}
	return llm.NewOpenAIClient(key, model)
}

func newSandbox(cfg config.Config) *sandbox.Runner {
	return &sandbox.Runner{
		PythonBin:       cfg.Sandbox.PythonBin,
		ManimBin:        cfg.Sandbox.ManimBin,
		ValidateTimeout: time.Duration(cfg.Sandbox.ValidateTimeoutSec) * time.Second,
		RenderTimeout:   time.Duration(cfg.Sandbox.RenderTimeoutSec) * time.Second,
	}
}

// openIndex opens the retrieval index when both the key and the index file are
// available. Retrieval is best-effort; any failure just disables it.
func openIndex(cfg config.Config, openaiKey string) *retrieval.Index {
	if openaiKey == "" {
		return nil
	}
	if _, err := os.Stat(cfg.Retrieval.IndexPath); err != nil {
		log.Printf("[chalktalk] no retrieval index at %s, continuing without", cfg.Retrieval.IndexPath)
		return nil
	}
	ix, err := retrieval.Open(cfg.Retrieval.IndexPath, retrieval.NewOpenAIEmbedder(openaiKey, cfg.Retrieval.EmbeddingModel))
	if err != nil {
		log.Printf("[chalktalk] open retrieval index: %v, continuing without", err)
		return nil
	}
	return ix
}

// buildIndex ingests a corpus directory into the retrieval index.
func buildIndex(ctx context.Context, cfg config.Config, openaiKey, dir string) int {
	if openaiKey == "" {
		fmt.Fprintln(os.Stderr, "error: OPENAI_API_KEY must be set to build the index")
		return 1
	}
	ix, err := retrieval.Open(cfg.Retrieval.IndexPath, retrieval.NewOpenAIEmbedder(openaiKey, cfg.Retrieval.EmbeddingModel))
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		return 1
	}
	defer ix.Close()

	added, err := retrieval.BuildFromDir(ctx, ix, dir, retrieval.BuildOptions{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: index build: %v\n", err)
		return 1
	}
	fmt.Printf("indexed %d chunks into %s\n", added, cfg.Retrieval.IndexPath)
	return 0
}
