package main

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"travis/internal/chat"
	"travis/internal/config"
	"travis/internal/embedding"
	"travis/internal/evolution"
	"travis/internal/llm"
	"travis/internal/logging"
	"travis/internal/memory"
	"travis/internal/soulcycle"
	"travis/internal/store"
)

// app wires the configuration, stores, and engines for one CLI session.
type app struct {
	cfg      *config.Config
	owner    string
	db       *store.Store
	engine   embedding.Engine
	mem      *memory.Store
	synth    *memory.Synthesizer
	facts    *memory.FactExtractor
	llm      llm.Client
	evo      *evolution.Engine
	cycle    *soulcycle.Orchestrator
	pipeline *chat.Pipeline
}

// newApp loads config, initializes logging, opens the store, and builds
// the whole pipeline. progress receives soulcycle step messages; nil
// discards them.
func newApp(progress func(string)) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if err := logging.Initialize(cfg.DataDir); err != nil {
		logger.Warn("File logging unavailable", zap.Error(err))
	}
	logging.Boot("travis %s starting, data dir %s", cfg.Version, cfg.DataDir)

	engine, err := embedding.NewEngine(cfg.Embedding)
	if err != nil {
		logger.Warn("Embedding engine unavailable, semantic memory disabled", zap.Error(err))
		engine = nil
	}

	dims := 768
	if engine != nil {
		dims = engine.Dimensions()
	}
	db, err := store.Open(cfg.DatabasePath(), dims)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	client, err := llm.NewGeminiClient(cfg.LLM)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	sessionOwner := cfg.Owner
	if owner != "" {
		sessionOwner = owner
	}

	mem := memory.NewStore(db, engine, cfg.Memory)
	synth := memory.NewSynthesizer(db, mem, cfg.Memory)
	facts := memory.NewFactExtractor(sessionOwner)
	evo := evolution.NewEngine(db, client, cfg.Evolution)
	cycle := soulcycle.New(db, client, evo, cfg.Soulcycle, progress)
	pipeline := chat.New(db, mem, synth, facts, evo, client)

	return &app{
		cfg:      cfg,
		owner:    sessionOwner,
		db:       db,
		engine:   engine,
		mem:      mem,
		synth:    synth,
		facts:    facts,
		llm:      client,
		evo:      evo,
		cycle:    cycle,
		pipeline: pipeline,
	}, nil
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		base := dataDir
		if base == "" {
			base = config.Default().DataDir
		}
		path = filepath.Join(base, "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	return cfg, nil
}

// Close releases the store and flushes logs.
func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		logger.Warn("Store close failed", zap.Error(err))
	}
	logging.CloseAll()
}
