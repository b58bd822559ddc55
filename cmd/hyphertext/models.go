package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codefionn/hyphertext/internal/logger"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models reachable with the configured API keys",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, cfg, err := loadConfig()
		if err != nil {
			return err
		}
		defer logger.Global().Close()
		defer cfg.Credentials.Destroy()

		router, err := newRouter(cmd.Context(), cfg)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tBACKEND\tLABEL\tDEFAULT")
		for _, m := range router.Models() {
			mark := ""
			if m.ID == router.Default() {
				mark = "*"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", m.ID, m.Backend, m.Label, mark)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
