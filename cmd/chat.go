package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the support agent from the terminal",
	Long: `Starts an interactive conversation as a given rider. The thread is
persisted, so quitting and rerunning with the same --thread resumes it.`,
	RunE: runChat,
}

func init() {
	chatCmd.Flags().Int64("rider", 0, "rider id to converse as (required)")
	chatCmd.Flags().String("thread", "", "thread id to resume (default: start a new one)")
	_ = chatCmd.MarkFlagRequired("rider")
	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	riderID, _ := cmd.Flags().GetInt64("rider")
	threadID, _ := cmd.Flags().GetString("thread")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rt, err := buildRuntime(cfg)
	if err != nil {
		return err
	}
	defer rt.close()

	fmt.Printf("Chatting as rider %d. Type your message, or /quit to exit.\n\n", riderID)

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			break
		}

		result, err := rt.orch.RunTurn(cmd.Context(), riderID, threadID, line)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			continue
		}
		threadID = result.ThreadID

		fmt.Printf("\n%s\n\n", result.Reply)
		if verbose {
			fmt.Fprintf(os.Stderr, "(thread=%s decisions=%d tool_calls=%d)\n",
				result.ThreadID, result.Decisions, result.ToolCalls)
		}
	}

	if threadID != "" {
		fmt.Printf("\nThread saved: %s\n", threadID)
	}
	return scanner.Err()
}
