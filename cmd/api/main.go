package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"archmap/internal/artifact"
	"archmap/internal/config"
	"archmap/internal/llmclient"
	"archmap/internal/server"
	"archmap/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	if err := os.MkdirAll(cfg.StoreDir, 0o755); err != nil {
		log.Fatal(err)
	}

	runs := store.NewFromEnv(filepath.Join(cfg.StoreDir, "runs.json"))
	runs.EnsureLoaded()
	defer runs.Close()

	artifacts, err := buildArtifactStore(cfg)
	if err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	var llm llmclient.Client
	if cfg.LLM.Enabled {
		gem, err := llmclient.NewGeminiClient(ctx, os.Getenv("GEMINI_API_KEY"), cfg.LLM.Model, 0)
		if err != nil {
			log.Fatal(err)
		}
		defer gem.Close()
		llm = gem
	} else {
		log.Println("SERVER: GEMINI_API_KEY is not set; cluster summaries fall back to heuristics")
	}

	repoBase := os.Getenv("ARCHMAP_REPO_BASE")
	if repoBase == "" {
		repoBase = "."
	}

	svc := server.NewService(runs, artifacts, llm, repoBase)
	srv := server.New(cfg.Port, server.BuildMux(svc))

	go func() {
		if err := srv.Start(); err != nil {
			log.Fatal(err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("SERVER: shutdown: %v", err)
	}
	runs.Save()
}

func buildArtifactStore(cfg *config.Config) (artifact.Store, error) {
	if cfg.Artifact.Enabled {
		return artifact.NewS3Store(artifact.S3Config{
			Endpoint:  cfg.Artifact.Endpoint,
			Region:    cfg.Artifact.Region,
			AccessKey: cfg.Artifact.AccessKey,
			SecretKey: cfg.Artifact.SecretKey,
			Bucket:    cfg.Artifact.Bucket,
			UseSSL:    cfg.Artifact.UseSSL,
		})
	}
	return artifact.NewDiskStore(filepath.Join(cfg.StoreDir, "artifacts"))
}
