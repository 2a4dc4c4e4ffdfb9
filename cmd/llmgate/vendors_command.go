package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/BaSui01/llmgate/llm/factory"
)

func newVendorsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "vendors",
		Short: "List supported vendors and their configuration state",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			headers := []string{"Vendor", "Name", "Default Model", "Auth", "Detail", "Images First", "Base URL", "Key"}
			var rows [][]string
			for _, d := range factory.Descriptors() {
				vc, _ := cfg.Vendor(string(d.Vendor))
				model := d.DefaultModel
				if vc.DefaultModel != "" {
					model = vc.DefaultModel
				}
				baseURL := d.BaseURL
				if vc.BaseURL != "" {
					baseURL = vc.BaseURL
				}
				key := "missing"
				switch {
				case strings.TrimSpace(vc.APIKey) != "":
					key = "set"
				case !d.Auth.RequiresKey():
					key = "optional"
				}
				rows = append(rows, []string{
					string(d.Vendor), d.DisplayName, model, string(d.Auth),
					yesNo(d.SupportsDetail), yesNo(d.ImagesBeforeText), baseURL, key,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(headers, rows, nil))
			return nil
		},
	}
}
