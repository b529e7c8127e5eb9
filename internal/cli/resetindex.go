package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "reset-index",
		Short: "Discard a user's vector index",
		Long: "Discard the in-memory and on-disk vector index for a user. Metadata rows " +
			"are untouched; semantic search returns nothing until memories are re-added.",
		Run: runResetIndex,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runResetIndex(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	if err := a.svc.ResetIndex(user); err != nil {
		exitErr("reset-index", err)
	}
	fmt.Printf("index reset for %s\n", user)
}
