package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/entrhq/switchboard/pkg/agent/memory"
	"github.com/entrhq/switchboard/pkg/config"
	"github.com/entrhq/switchboard/pkg/store/sqlite"
)

func newMemoryCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect and edit stored user profiles",
	}

	// withProfiles opens the profile store for the duration of fn.
	withProfiles := func(fn func(*sqlite.ProfileStore) error) error {
		if err := os.MkdirAll(c.cfg.Storage.GetDataDir(), 0o755); err != nil {
			return fmt.Errorf("failed to create data directory: %w", err)
		}
		profiles, err := sqlite.NewProfileStore(c.cfg.Storage.Path(config.ProfileDBFile))
		if err != nil {
			return err
		}
		defer func() {
			if err := profiles.Close(); err != nil {
				c.logger.Warnf("failed to close profile store: %v", err)
			}
		}()
		return fn(profiles)
	}

	get := &cobra.Command{
		Use:   "get <user> [key]",
		Short: "Print a user's profile, or one value of it",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfiles(func(profiles *sqlite.ProfileStore) error {
				profile, err := profiles.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				if len(args) == 2 {
					value, ok := profile[args[1]]
					if !ok {
						fmt.Fprintf(out, "No value saved for '%s'.\n", args[1])
						return nil
					}
					fmt.Fprintln(out, memory.FormatValue(value))
					return nil
				}
				if len(profile) == 0 {
					fmt.Fprintf(out, "No saved preferences for %s.\n", args[0])
					return nil
				}
				for _, line := range memory.Lines(profile) {
					fmt.Fprintln(out, line)
				}
				return nil
			})
		},
	}

	set := &cobra.Command{
		Use:   "set <user> <key> <value>",
		Short: "Store one value; JSON objects, arrays, numbers and booleans are decoded",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := strings.TrimSpace(args[1])
			if key == "" {
				return fmt.Errorf("key is required")
			}
			value := parseValue(args[2])
			return withProfiles(func(profiles *sqlite.ProfileStore) error {
				if err := profiles.Upsert(cmd.Context(), args[0], map[string]interface{}{key: value}); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s = %s\n", key, memory.FormatValue(value))
				return nil
			})
		},
	}

	export := &cobra.Command{
		Use:   "export <user>",
		Short: "Print a user's profile as YAML",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withProfiles(func(profiles *sqlite.ProfileStore) error {
				profile, err := profiles.Get(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				enc := yaml.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent(2)
				if err := enc.Encode(profileExport{UserID: args[0], Profile: profile}); err != nil {
					return fmt.Errorf("failed to encode profile: %w", err)
				}
				return enc.Close()
			})
		},
	}

	cmd.AddCommand(get, set, export)
	return cmd
}

type profileExport struct {
	UserID  string                 `yaml:"user_id"`
	Profile map[string]interface{} `yaml:"profile"`
}

// parseValue decodes JSON literals and keeps anything else as text.
func parseValue(raw string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return v
}
