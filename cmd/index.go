package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/meysamhadeli/codelve/code_analyzer/models"
	"github.com/meysamhadeli/codelve/constants/lipgloss"
	"github.com/spf13/cobra"
)

// indexCmd: codelve index [dir]
var indexCmd = &cobra.Command{
	Use:   "index [dir]",
	Short: "Scan the codebase in dir and print what was indexed.",
	Long: `The 'index' subcommand runs the scanner without starting a session and prints the
number of files, symbols and directories found. Use --symbols to list every extracted symbol.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		rootDependencies := handleRootCommand(cmd)
		showSymbols, _ := cmd.Flags().GetBool("symbols")
		handleIndexCommand(rootDependencies, targetDir(rootDependencies, args), showSymbols)
	},
}

func init() {
	indexCmd.Flags().BoolP("symbols", "s", false, "List every extracted symbol")
	rootCmd.AddCommand(indexCmd)
}

func handleIndexCommand(rootDependencies *RootDependencies, dir string, showSymbols bool) {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng := rootDependencies.Engine
	defer eng.Close()

	index, err := scanWithProgress(ctx, eng, dir)
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("%v", err)))
		return
	}
	printScanSummary(index)

	summary := fmt.Sprintf("Root: %s\nFiles: %d\nSymbols: %d (%d names)\nKinds: %s\nDirectories: %d\nLanguages: %s",
		index.RootDir,
		index.FileCount,
		len(index.SymbolDetails),
		len(index.Symbols),
		symbolBreakdown(index),
		len(index.Directories),
		strings.Join(index.Extensions(), ", "))
	fmt.Println(lipgloss.BoxStyle.Render(summary))
	fmt.Println(lipgloss.Gray.Render(eng.Info()))

	if showSymbols {
		printSymbols(index)
	}
}

// symbolBreakdown counts the symbols of every type present, e.g. "function 3, class 1".
func symbolBreakdown(index *models.IndexedCode) string {
	var parts []string
	for _, t := range models.SymbolTypes {
		if n := len(index.SymbolsOfType(t)); n > 0 {
			parts = append(parts, fmt.Sprintf("%s %d", t, n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, ", ")
}

func printSymbols(index *models.IndexedCode) {
	symbols := append([]models.SymbolInfo(nil), index.SymbolDetails...)
	sort.SliceStable(symbols, func(i, j int) bool {
		if symbols[i].FilePath != symbols[j].FilePath {
			return symbols[i].FilePath < symbols[j].FilePath
		}
		return symbols[i].LineNumber < symbols[j].LineNumber
	})

	for _, symbol := range symbols {
		rel, err := filepath.Rel(index.RootDir, symbol.FilePath)
		if err != nil {
			rel = symbol.FilePath
		}
		fmt.Printf("%s:%d  %s %s\n", rel, symbol.LineNumber, lipgloss.Info.Render(symbol.Type.String()), symbol.Name)
	}
}
