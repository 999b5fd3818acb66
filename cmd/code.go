package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/meysamhadeli/codelve/config"
	"github.com/meysamhadeli/codelve/constants/lipgloss"
	"github.com/meysamhadeli/codelve/engine"
	"github.com/meysamhadeli/codelve/engine/models"
	"github.com/meysamhadeli/codelve/utils"
	"github.com/meysamhadeli/codelve/watcher"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// codeCmd: codelve code [dir]
var codeCmd = &cobra.Command{
	Use:   "code [dir]",
	Short: "Start an interactive session about the codebase in dir (default: current directory).",
	Long: `The 'code' subcommand scans the codebase and opens a session in which you can ask
questions about it. Each question is answered with the most relevant files and the recent
conversation as context. Type /help inside the session for the available commands.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rootDependencies := handleRootCommand(cmd)
		watch, _ := cmd.Flags().GetBool("watch")
		handleCodeCommand(rootDependencies, targetDir(rootDependencies, args), watch)
	},
}

func init() {
	codeCmd.Flags().BoolP("watch", "w", false, "Rescan the codebase when source files change")
	rootCmd.AddCommand(codeCmd)
}

func newSpinner() *pterm.SpinnerPrinter {
	return pterm.DefaultSpinner.WithStyle(pterm.NewStyle(pterm.FgLightBlue)).
		WithSequence("⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏").
		WithDelay(100).
		WithRemoveWhenDone(true)
}

func handleCodeCommand(rootDependencies *RootDependencies, dir string, watch bool) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng := rootDependencies.Engine
	defer func() {
		if err := eng.Close(); err != nil {
			rootDependencies.Logger.Warn("Failed to shut down cleanly", "error", err)
		}
	}()

	if rootDependencies.Config.GetBool(config.KeyPreloadModel, false) {
		spinnerModel, _ := newSpinner().Start("Loading language model...")
		err := eng.Preload(ctx)
		spinnerModel.Stop()
		fmt.Print("\r")
		if err != nil {
			fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Language model not loaded yet: %v", err)))
		}
	}

	index, err := scanWithProgress(ctx, eng, dir)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		return
	}
	printScanSummary(index)

	if watch {
		w, err := startWatch(ctx, rootDependencies, dir)
		if err != nil {
			fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Watch mode disabled: %v", err)))
		} else {
			defer w.Close()
		}
	}

	reader := bufio.NewReader(os.Stdin)
	theme := rootDependencies.Config.GetString(config.KeyTheme, "dracula")

	codeOptionsBox := lipgloss.BoxStyle.Render("/help  Help for code subcommand")
	fmt.Println(codeOptionsBox)

	for {
		userInput, err := utils.InputPromptWithContext(ctx, os.Stdout, reader)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, utils.ErrInputClosed) {
				fmt.Println(lipgloss.Yellow.Render("Exiting..."))
				return
			}
			fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
			continue
		}

		if userInput == "" {
			continue
		}

		if exit := runInteractiveQuery(ctx, rootDependencies, userInput, theme); exit {
			return
		}
	}
}

// runInteractiveQuery renders the responses to one query and reports whether
// the session should end.
func runInteractiveQuery(ctx context.Context, rootDependencies *RootDependencies, query string, theme string) bool {
	eng := rootDependencies.Engine
	task := eng.SubmitQuery(ctx, query)
	renderer := utils.NewMarkdownRenderer(os.Stdout, theme)

	var spinner *pterm.SpinnerPrinter
	stopSpinner := func() {
		if spinner != nil {
			_ = spinner.Stop()
			fmt.Print("\r")
			spinner = nil
		}
	}

	exit := false
	answered := false
	for response := range task.Events() {
		switch response.Kind {
		case models.ResponseTypingIndicator:
			spinner, _ = newSpinner().Start("CodeLve is thinking...")
		case models.ResponseChunk:
			stopSpinner()
			if err := renderer.WriteChunk(response.Text); err != nil {
				rootDependencies.Logger.Warn("Failed to render answer", "error", err)
			}
		case models.ResponseDone:
			stopSpinner()
			_ = renderer.Flush()
			answered = true
		case models.ResponseText:
			stopSpinner()
			if err := renderer.Render(ctx, response.Text); err != nil {
				fmt.Println(response.Text)
			}
			answered = true
		case models.ResponseClearHistory:
			fmt.Print("\033[2J\033[H")
		case models.ResponseError:
			stopSpinner()
			fmt.Println(lipgloss.Red.Render(response.Text))
		case models.ResponseExit:
			exit = true
		}
	}
	stopSpinner()

	if err := task.Wait(ctx); err != nil && !errors.Is(err, context.Canceled) {
		rootDependencies.Logger.Debug("Query finished with error", "task", task.ID(), "error", err)
	}

	if answered {
		if total, _, _ := eng.Tokens().GetCurrentTokenUsage(); total > 0 {
			eng.Tokens().DisplayTokens(rootDependencies.Config.GetString(config.KeyProvider, ""), eng.ModelInfo())
		}
	}
	return exit
}

// startWatch rescans dir whenever a burst of source changes settles.
func startWatch(ctx context.Context, rootDependencies *RootDependencies, dir string) (*watcher.Watcher, error) {
	eng := rootDependencies.Engine
	logger := rootDependencies.Logger

	w, err := watcher.New(dir, watcher.OptionsFromConfig(rootDependencies.Config), func(paths []string) {
		logger.Info("Changes detected, rescanning", "files", len(paths))
		index, err := scanQuietly(ctx, eng, dir)
		switch {
		case errors.Is(err, engine.ErrScanInProgress):
			logger.Debug("Rescan skipped, a scan is already running")
		case err != nil:
			logger.Warn("Rescan failed", "error", err)
		default:
			logger.Info(fmt.Sprintf("Codebase reloaded: %d files", index.FileCount))
		}
	}, logger)
	if err != nil {
		return nil, err
	}

	w.Start(ctx)
	return w, nil
}
