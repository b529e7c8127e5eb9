package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [memory-id]",
		Short: "Delete a memory",
		Long:  "Soft-delete a memory. The row is kept; the vector entry is removed. Idempotent.",
		Args:  cobra.ExactArgs(1),
		Run:   runRm,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	if err := a.svc.Delete(cmd.Context(), user, args[0]); err != nil {
		exitErr("rm", err)
	}
	fmt.Printf("deleted %s\n", args[0])
}
