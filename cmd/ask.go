package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/meysamhadeli/codelve/engine/models"
	"github.com/spf13/cobra"
)

// askCmd: codelve ask [dir] -q "question"
var askCmd = &cobra.Command{
	Use:   "ask [dir]",
	Short: "Answer a single question about the codebase in dir and exit.",
	Long: `The 'ask' subcommand scans the codebase, answers one question and prints the plain
answer to stdout, which makes it suitable for scripts and pipes.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		question, _ := cmd.Flags().GetString("question")
		if strings.TrimSpace(question) == "" {
			return errors.New("a question is required, pass it with -q")
		}
		rootDependencies := handleRootCommand(cmd)
		return handleAskCommand(rootDependencies, targetDir(rootDependencies, args), question)
	},
}

func init() {
	askCmd.Flags().StringP("question", "q", "", "The question to ask")
	rootCmd.AddCommand(askCmd)
}

func handleAskCommand(rootDependencies *RootDependencies, dir string, question string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	eng := rootDependencies.Engine
	defer eng.Close()

	if _, err := scanQuietly(ctx, eng, dir); err != nil {
		return err
	}

	task := eng.SubmitQuery(ctx, question)
	var failure string
	for response := range task.Events() {
		switch response.Kind {
		case models.ResponseChunk:
			fmt.Print(response.Text)
		case models.ResponseDone:
			fmt.Println()
		case models.ResponseText:
			fmt.Println(response.Text)
		case models.ResponseError:
			failure = response.Text
		}
	}

	if err := task.Wait(ctx); err != nil {
		if failure != "" {
			fmt.Fprintln(os.Stderr, failure)
		}
		return err
	}
	return nil
}
