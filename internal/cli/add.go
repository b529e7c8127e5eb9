package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roshantac/eva-memory/internal/category"
)

func init() {
	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Store a memory",
		Long:  "Store a memory for a user. Text can be a positional arg or piped via stdin.",
		Run:   runAdd,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().String("category", "", "Memory category (see `eva-memory categories`)")
	cmd.Flags().String("meta", "", "JSON metadata")

	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runAdd(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	catFlag, _ := cmd.Flags().GetString("category")
	metaFlag, _ := cmd.Flags().GetString("meta")

	var text string
	if len(args) > 0 {
		text = strings.Join(args, " ")
	} else {
		stat, _ := os.Stdin.Stat()
		if (stat.Mode() & os.ModeCharDevice) == 0 {
			b, err := io.ReadAll(os.Stdin)
			if err != nil {
				exitErr("read stdin", err)
			}
			text = string(b)
		}
	}
	if strings.TrimSpace(text) == "" {
		exitErr("add", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	meta := map[string]any{}
	if metaFlag != "" {
		if err := json.Unmarshal([]byte(metaFlag), &meta); err != nil {
			exitErr("parse --meta", err)
		}
	}
	if catFlag != "" {
		norm, ok := category.Normalize(catFlag)
		if !ok {
			exitErr("add", fmt.Errorf("unknown category %q", catFlag))
		}
		meta["category"] = norm
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	rec, err := a.svc.Add(cmd.Context(), user, strings.TrimSpace(text), meta)
	if err != nil {
		exitErr("add", err)
	}

	b, _ := json.Marshal(rec)
	fmt.Println(string(b))
}
