package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newConfigCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or write the resolved configuration",
	}

	show := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML (API keys masked)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			doc := make(map[string]map[string]any)
			for _, section := range c.cfg.Manager().GetSections() {
				data := section.Data()
				for k, v := range data {
					if s, ok := v.(string); ok && s != "" && isSecret(k) {
						data[k] = "****"
					}
				}
				doc[section.ID()] = data
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(doc); err != nil {
				return err
			}
			return enc.Close()
		},
	}

	save := &cobra.Command{
		Use:   "save",
		Short: "Write the resolved configuration to the config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.Save(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Configuration saved.")
			return nil
		},
	}

	cmd.AddCommand(show, save)
	return cmd
}

func isSecret(key string) bool {
	return key == "api_key" || key == "tavily_api_key" || key == "genai_api_key"
}
