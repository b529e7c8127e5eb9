package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roshantac/eva-memory/internal/category"
)

func init() {
	cmd := &cobra.Command{
		Use:   "categories",
		Short: "Print the memory category taxonomy",
		Run:   runCategories,
	}

	RootCmd.AddCommand(cmd)
}

func runCategories(cmd *cobra.Command, args []string) {
	for _, name := range category.All() {
		fmt.Printf("%-24s %s\n", name, category.Descriptions[name])
	}
}
