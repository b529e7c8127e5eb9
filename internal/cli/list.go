package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List a user's memories, newest first",
		Run:   runList,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().IntP("limit", "l", 0, "Max results (0 = all)")
	cmd.Flags().Bool("include-deleted", false, "Include soft-deleted memories")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	limit, _ := cmd.Flags().GetInt("limit")
	includeDeleted, _ := cmd.Flags().GetBool("include-deleted")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	records, err := a.svc.List(cmd.Context(), user, limit, includeDeleted)
	if err != nil {
		exitErr("list", err)
	}
	if len(records) == 0 {
		fmt.Println("[]")
		return
	}

	b, _ := json.MarshalIndent(records, "", "  ")
	fmt.Println(string(b))
}
