package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/meysamhadeli/codelve/code_analyzer/models"
	"github.com/meysamhadeli/codelve/config"
	"github.com/meysamhadeli/codelve/constants/lipgloss"
	"github.com/meysamhadeli/codelve/engine"
	"github.com/meysamhadeli/codelve/utils"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// RootDependencies holds everything a subcommand needs.
type RootDependencies struct {
	Config *config.Config
	Cwd    string
	Logger *slog.Logger
	Engine *engine.Engine
}

var rootCmd = &cobra.Command{
	Use:   "codelve",
	Short: "CodeLve is a local assistant that answers questions about your codebase.",
	Long: `CodeLve scans a source tree, extracts its symbols and builds prompts that combine
the relevant files with your question and the recent conversation. Answers come from a
local language model backend such as Ollama.`,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	config.InitFlags(rootCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		os.Exit(1)
	}
}

// handleRootCommand loads the configuration and wires the engine. Logs go to
// stderr so they never interleave with answers.
func handleRootCommand(cmd *cobra.Command) *RootDependencies {
	cwd, err := os.Getwd()
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Failed to get working directory: %v", err)))
		os.Exit(1)
	}

	cfg, err := config.LoadConfigs(rootCmd, cwd)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		os.Exit(1)
	}

	logger := utils.NewLogger(os.Stderr, utils.LevelFromString(cfg.GetString(config.KeyLogLevel, "info")))
	if cfg.File != "" {
		logger.Debug("Loaded configuration", "file", cfg.File)
	}

	eng, err := engine.NewFromConfig(cfg, logger)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		os.Exit(1)
	}

	return &RootDependencies{
		Config: cfg,
		Cwd:    cwd,
		Logger: logger,
		Engine: eng,
	}
}

// targetDir resolves the optional directory argument against the working directory.
func targetDir(rootDependencies *RootDependencies, args []string) string {
	if len(args) == 0 || args[0] == "" {
		return rootDependencies.Cwd
	}
	if filepath.IsAbs(args[0]) {
		return args[0]
	}
	return filepath.Join(rootDependencies.Cwd, args[0])
}

// scanWithProgress scans dir and renders the progress events as a pterm bar.
func scanWithProgress(ctx context.Context, eng *engine.Engine, dir string) (*models.IndexedCode, error) {
	task, err := eng.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}

	bar, _ := pterm.DefaultProgressbar.
		WithTotal(100).
		WithTitle("Scanning codebase").
		WithRemoveWhenDone(true).
		Start()

	current := 0
	for event := range task.Events() {
		bar.UpdateTitle(event.Message)
		if next := int(event.Progress * 100); next > current {
			bar.Add(next - current)
			current = next
		}
	}
	_, _ = bar.Stop()

	if err := task.Wait(ctx); err != nil {
		return nil, err
	}
	return task.Result(), nil
}

// scanQuietly scans dir without rendering progress.
func scanQuietly(ctx context.Context, eng *engine.Engine, dir string) (*models.IndexedCode, error) {
	task, err := eng.Scan(ctx, dir)
	if err != nil {
		return nil, err
	}
	for range task.Events() {
	}
	if err := task.Wait(ctx); err != nil {
		return nil, err
	}
	return task.Result(), nil
}

func printScanSummary(index *models.IndexedCode) {
	fmt.Println(lipgloss.Green.Render(fmt.Sprintf("Codebase loaded: %d files", index.FileCount)))
	if index.Truncated {
		fmt.Println(lipgloss.Yellow.Render("Scan limits were reached, only part of the codebase is indexed."))
	}
}
