// Package main provides the travis CLI entry point.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"travis/internal/soulcycle"
)

var (
	// Global flags
	configPath string
	dataDir    string
	owner      string
	verbose    bool

	// Logger
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "travis",
	Short: "Travis - a companion who remembers",
	Long: `Travis is a persona-driven chat companion with a lived memory:
permanent facts, embedding-based semantic recall, reflections, a slowly
evolving soulstate, and a periodic soulcycle ritual.

Run without arguments to start the interactive chat.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start the interactive chat",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runChat()
	},
}

var (
	cycleType      string
	cycleNoJournal bool
)

var soulcycleCmd = &cobra.Command{
	Use:   "soulcycle",
	Short: "Run the five-step soulcycle once",
	Long: `Runs the soulcycle: reflection, journal entry, soulstate evolution,
intentions update, and a narrative summary. Progress is printed per step.`,
	RunE: runSoulcycle,
}

var evolutionCmd = &cobra.Command{
	Use:   "evolution",
	Short: "Evolution cycle operations",
}

var evolutionCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Check whether an evolution cycle is due and present a proposal",
	RunE:  runEvolutionCheck,
}

var memoryCmd = &cobra.Command{
	Use:   "memory",
	Short: "Semantic memory operations",
}

var memorySearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search memories by semantic similarity",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runMemorySearch,
}

var memoryStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show memory store statistics",
	RunE:  runStats,
}

var memoryBatchCmd = &cobra.Command{
	Use:   "batch [file]",
	Short: "Embed and store one memory per line of a file",
	Args:  cobra.ExactArgs(1),
	RunE:  runMemoryBatch,
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store statistics",
	RunE:  runStats,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file path (default: <data-dir>/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "Data directory (default: ~/.travis)")
	rootCmd.PersistentFlags().StringVar(&owner, "owner", "", "Owner id for this session")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")

	soulcycleCmd.Flags().StringVar(&cycleType, "type", "weekly", "Reflection type: weekly or soulstate")
	soulcycleCmd.Flags().BoolVar(&cycleNoJournal, "no-journal", false, "Skip the journal step")

	evolutionCmd.AddCommand(evolutionCheckCmd)
	memoryCmd.AddCommand(memorySearchCmd)
	memoryCmd.AddCommand(memoryStatsCmd)
	memoryCmd.AddCommand(memoryBatchCmd)

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(soulcycleCmd)
	rootCmd.AddCommand(evolutionCmd)
	rootCmd.AddCommand(memoryCmd)
	rootCmd.AddCommand(statsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// signalContext returns a context cancelled on SIGINT/SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Info("Received shutdown signal")
			cancel()
		case <-ctx.Done():
		}
		signal.Stop(sigCh)
	}()
	return ctx, cancel
}

func runSoulcycle(cmd *cobra.Command, args []string) error {
	app, err := newApp(func(line string) { fmt.Println(line) })
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext()
	defer cancel()

	opts := soulcycle.Options{
		ReflectionType: cycleType,
		EvolutionMode:  "gentle",
		IncludeJournal: !cycleNoJournal,
	}
	results, err := app.cycle.Run(ctx, app.owner, opts)
	if err != nil {
		return fmt.Errorf("soulcycle failed: %w", err)
	}

	fmt.Println()
	fmt.Println(results.Summary)
	return nil
}

func runEvolutionCheck(cmd *cobra.Command, args []string) error {
	app, err := newApp(nil)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if !app.evo.IsDue(app.owner) {
		fmt.Println("Evolution is not due yet.")
		return nil
	}
	presented, err := app.evo.Present(ctx, app.owner)
	if err != nil {
		return fmt.Errorf("presentation failed: %w", err)
	}
	if !presented {
		fmt.Println("No proposal to present.")
		return nil
	}
	fmt.Println(app.evo.Pending().Narrative)
	fmt.Println("\nAnswer in chat to accept or decline.")
	return nil
}

func runMemorySearch(cmd *cobra.Command, args []string) error {
	app, err := newApp(nil)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext()
	defer cancel()

	query := strings.Join(args, " ")
	recalls := app.mem.RetrieveRelevant(ctx, app.owner, query,
		app.cfg.Memory.RecallLimit, app.cfg.Memory.SimilarityThreshold)
	if len(recalls) == 0 {
		fmt.Println("No memories above the similarity threshold.")
		return nil
	}
	for i, r := range recalls {
		fmt.Printf("%d. [%.3f] %s\n", i+1, r.Similarity, r.Content)
	}
	return nil
}

func runMemoryBatch(cmd *cobra.Command, args []string) error {
	app, err := newApp(nil)
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := signalContext()
	defer cancel()

	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read input file: %w", err)
	}
	var lines []string
	for _, line := range strings.Split(string(data), "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			lines = append(lines, trimmed)
		}
	}

	stored := app.mem.ProcessBatch(ctx, app.owner, lines)
	fmt.Printf("Stored %d of %d lines as memories.\n", stored, len(lines))
	return nil
}

func runStats(cmd *cobra.Command, args []string) error {
	app, err := newApp(nil)
	if err != nil {
		return err
	}
	defer app.Close()

	stats, err := app.db.Stats()
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	fmt.Printf("Memories:         %d\n", stats["memories"])
	fmt.Printf("Messages:         %d\n", stats["messages"])
	fmt.Printf("Journal entries:  %d\n", stats["journal_entries"])
	fmt.Printf("Key-value pairs:  %d\n", stats["keyvalue"])
	fmt.Printf("Vector extension: %v\n", stats["vector_extension"] == 1)
	return nil
}
