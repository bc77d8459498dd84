package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/grahms/cspweaver"
)

var renderCmd = &cobra.Command{
	Use:   "render",
	Short: "Render the policy header value",
	Long: `Render assembles the Content-Security-Policy header value from a YAML
config file, or from the built-in defaults when no config is given.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("config")   //nolint:errcheck // flag registered below
		nonce, _ := cmd.Flags().GetString("nonce")   //nolint:errcheck // flag registered below
		withName, _ := cmd.Flags().GetBool("header") //nolint:errcheck // flag registered below

		cfg := cspweaver.DefaultConfig()
		if path != "" {
			var err error
			cfg, err = cspweaver.LoadConfig(path)
			if err != nil {
				return err
			}
		}

		var opts []cspweaver.BuildOption
		if nonce != "" {
			opts = append(opts, cspweaver.WithNonce(nonce))
		}
		policy := cspweaver.Build(cfg, opts...)

		if withName {
			name := cspweaver.HeaderName
			if cfg.ReportOnly {
				name = cspweaver.HeaderNameReportOnly
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", name, policy)
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), policy)
		return nil
	},
}

func init() {
	renderCmd.Flags().StringP("config", "c", "", "Path to YAML policy config")
	renderCmd.Flags().String("nonce", "", "Nonce value to inject")
	renderCmd.Flags().Bool("header", false, "Prefix the output with the header name")
	rootCmd.AddCommand(renderCmd)
}
