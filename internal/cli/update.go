package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roshantac/eva-memory/internal/category"
)

func init() {
	cmd := &cobra.Command{
		Use:   "update [memory-id] [text]",
		Short: "Replace a memory's text and metadata",
		Long:  "Replace a memory's text and metadata wholesale. The memory must be active.",
		Args:  cobra.MinimumNArgs(2),
		Run:   runUpdate,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().String("category", "", "Memory category")
	cmd.Flags().String("meta", "", "JSON metadata")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runUpdate(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	catFlag, _ := cmd.Flags().GetString("category")
	metaFlag, _ := cmd.Flags().GetString("meta")

	memoryID := args[0]
	text := strings.TrimSpace(strings.Join(args[1:], " "))

	meta := map[string]any{}
	if metaFlag != "" {
		if err := json.Unmarshal([]byte(metaFlag), &meta); err != nil {
			exitErr("parse --meta", err)
		}
	}
	if catFlag != "" {
		norm, ok := category.Normalize(catFlag)
		if !ok {
			exitErr("update", fmt.Errorf("unknown category %q", catFlag))
		}
		meta["category"] = norm
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	rec, err := a.svc.Update(cmd.Context(), user, memoryID, text, meta)
	if err != nil {
		exitErr("update", err)
	}

	b, _ := json.Marshal(rec)
	fmt.Println(string(b))
}
