package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roshantac/eva-memory/internal/memory"
	"github.com/roshantac/eva-memory/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search a user's memories",
		Long:  "Search memories semantically, by keyword, or hybrid (fused ranking).",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().StringP("mode", "m", "hybrid", "Search mode: semantic, text, or hybrid")
	cmd.Flags().IntP("limit", "l", 5, "Max results")
	cmd.Flags().StringSlice("categories", nil, "Restrict to categories (comma-separated)")
	cmd.Flags().Bool("context", false, "Print a prompt-ready context block instead of JSON")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	mode, _ := cmd.Flags().GetString("mode")
	limit, _ := cmd.Flags().GetInt("limit")
	categories, _ := cmd.Flags().GetStringSlice("categories")
	asContext, _ := cmd.Flags().GetBool("context")
	query := strings.Join(args, " ")

	searchMode := memory.SearchMode(mode)
	switch searchMode {
	case memory.ModeSemantic, memory.ModeText, memory.ModeHybrid:
	default:
		exitErr("search", fmt.Errorf("unknown mode %q (want semantic, text, or hybrid)", mode))
	}

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	if asContext {
		block, err := a.svc.FormatContext(cmd.Context(), user, query, limit, searchMode, categories)
		if err != nil {
			exitErr("search", err)
		}
		fmt.Println(block)
		return
	}

	var hits []model.SearchHit
	switch searchMode {
	case memory.ModeText:
		hits, err = a.svc.SearchText(cmd.Context(), user, query, limit, categories)
	case memory.ModeHybrid:
		hits, err = a.svc.SearchHybrid(cmd.Context(), user, query, limit, categories)
	default:
		hits, err = a.svc.Search(cmd.Context(), user, query, limit, categories)
	}
	if err != nil {
		exitErr("search", err)
	}
	if len(hits) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(hits, "", "  ")
	fmt.Println(string(b))
}
