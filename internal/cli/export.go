package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all of a user's memories as JSON",
		Long:  "Export every memory for a user, including soft-deleted rows, in insertion order.",
		Run:   runExport,
	}

	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().StringP("out", "o", "", "Output file (default: stdout)")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	user, _ := cmd.Flags().GetString("user")
	out, _ := cmd.Flags().GetString("out")

	a, err := openApp()
	if err != nil {
		exitErr("open", err)
	}
	defer a.Close()

	records, err := a.svc.Export(cmd.Context(), user)
	if err != nil {
		exitErr("export", err)
	}

	b, _ := json.MarshalIndent(records, "", "  ")
	if out == "" {
		fmt.Println(string(b))
		return
	}
	if err := os.WriteFile(out, append(b, '\n'), 0o644); err != nil {
		exitErr("write output", err)
	}
	fmt.Printf("exported %d memories to %s\n", len(records), out)
}
