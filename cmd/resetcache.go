package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/meysamhadeli/codelve/code_analyzer"
	"github.com/meysamhadeli/codelve/config"
	"github.com/meysamhadeli/codelve/constants/lipgloss"
	"github.com/spf13/cobra"
)

// resetCacheCmd represents the reset-cache command
var resetCacheCmd = &cobra.Command{
	Use:   "reset-cache",
	Short: "Reset the symbol cache of CodeLve",
	Long: `The 'reset-cache' command removes all cached symbol files from the cache directory
(scanner.cache_dir, by default '.cache/codelve' in the working directory).
Use this command to clear corrupted cache entries or to reclaim disk space.`,
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")
		stats, _ := cmd.Flags().GetBool("stats")

		handleResetCacheCommand(force, stats, cmd)
	},
}

func init() {
	resetCacheCmd.Flags().BoolP("force", "f", false, "Force cache reset without confirmation")
	resetCacheCmd.Flags().BoolP("stats", "s", false, "Show cache statistics instead of resetting")

	rootCmd.AddCommand(resetCacheCmd)
}

func handleResetCacheCommand(force bool, showStats bool, cmd *cobra.Command) {
	rootDependencies := handleRootCommand(cmd)
	defer rootDependencies.Engine.Close()

	cache, err := code_analyzer.NewSymbolCache(rootDependencies.Config.GetString(config.KeyCacheDir, ""))
	if err != nil {
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error opening cache: %v", err)))
		return
	}

	if showStats {
		fmt.Println(lipgloss.Info.Render("Cache Statistics:"))
		cacheStats, err := cache.GetCacheStats()
		if err != nil {
			fmt.Println(lipgloss.Yellow.Render(fmt.Sprintf("Warning: Could not show statistics: %v", err)))
			return
		}
		fmt.Printf("  Cache Directory: %s\n", cache.Dir())
		if files, ok := cacheStats["cache_files"].(int); ok {
			fmt.Printf("  Cached Files: %d\n", files)
		}
		if symbols, ok := cacheStats["symbols"].(int); ok {
			fmt.Printf("  Cached Symbols: %d\n", symbols)
		}
		if size, ok := cacheStats["total_size_mb"].(float64); ok {
			fmt.Printf("  Total Size: %.2f MB\n", size)
		}
		if oldest, ok := cacheStats["oldest_entry"].(string); ok {
			fmt.Printf("  Oldest Entry: %s\n", oldest)
		}
		return
	}

	if !force {
		reader := bufio.NewReader(os.Stdin)
		fmt.Print("Are you sure you want to reset the symbol cache? (y/N): ")
		response, _ := reader.ReadString('\n')
		response = strings.TrimSpace(strings.ToLower(response))
		if response != "y" && response != "yes" {
			fmt.Println(lipgloss.Yellow.Render("Cache reset cancelled."))
			return
		}
	}

	spinnerInstance, _ := newSpinner().Start("Resetting symbol cache...")

	if err := cache.ClearCache(); err != nil {
		spinnerInstance.Stop()
		fmt.Print("\r")
		fmt.Println(lipgloss.Red.Render(fmt.Sprintf("Error resetting cache: %v", err)))
		return
	}

	spinnerInstance.Stop()
	fmt.Print("\r")
	fmt.Println(lipgloss.Green.Render("✓ Symbol cache has been successfully reset!"))
}
