package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roshantac/eva-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "infer",
		Short: "Extract facts from a conversation and reconcile them into memory",
		Long: "Read conversation turns from stdin and run the reconciliation pipeline. " +
			"Input is either a JSON array of {role, content} objects or plain text, " +
			"one user turn per line. Prints the applied changes.",
		Run: runInfer,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().String("category", "", "Category hint for facts the model leaves uncategorized")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runInfer(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	hint, _ := cmd.Flags().GetString("category")

	raw, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}
	messages := parseTurns(string(raw))
	if len(messages) == 0 {
		exitErr("infer", fmt.Errorf("no conversation turns on stdin"))
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	eng, err := a.engine()
	if err != nil {
		exitErr("infer", err)
	}

	changes, err := eng.InferAndUpdate(cmd.Context(), user, messages, hint)
	if err != nil {
		exitErr("infer", err)
	}
	if len(changes) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(changes, "", "  ")
	fmt.Println(string(b))
}

// parseTurns accepts a JSON message array or falls back to one user turn
// per non-empty line.
func parseTurns(input string) []model.Message {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return nil
	}

	if strings.HasPrefix(trimmed, "[") {
		var messages []model.Message
		if err := json.Unmarshal([]byte(trimmed), &messages); err == nil {
			return messages
		}
	}

	var messages []model.Message
	for _, line := range strings.Split(trimmed, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		messages = append(messages, model.Message{Role: "user", Content: line})
	}
	return messages
}
