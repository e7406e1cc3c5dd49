package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/presencelink/presencelink/internal/config"
)

// newConfigCmd creates the 'config' command group.
func newConfigCmd() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage presencelink configuration",
		Long: `Configuration management commands for presencelink.

Commands:
  init  - Write presence.conf (interactive unless --app-id is given)
  show  - Display the effective configuration
  path  - Show configuration file path`,
	}

	configCmd.AddCommand(newConfigInitCmd())
	configCmd.AddCommand(newConfigShowCmd())
	configCmd.AddCommand(newConfigPathCmd())

	return configCmd
}

// configPath returns --config or the default location.
func configPath() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	return config.DefaultPath()
}

// newConfigInitCmd creates the 'config init' command.
func newConfigInitCmd() *cobra.Command {
	var (
		force bool
		appID string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize configuration",
		Long: `Write presence.conf with the given application id and default settings.

Without --app-id the values are prompted for on stdin.
Use --force to overwrite existing configuration.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return err
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					fmt.Fprintf(out, "Configuration already exists at: %s\n", path)
					fmt.Fprintln(out, "Use --force to overwrite or run 'config show' to view current config.")
					return nil
				}
			}

			cfg := config.New()
			if appID != "" {
				cfg.Client.ApplicationID = strings.TrimSpace(appID)
			} else {
				if err := promptConfig(cmd.InOrStdin(), out, cfg); err != nil {
					return err
				}
			}

			if err := cfg.RequireApplicationID(); err != nil {
				return err
			}
			if err := config.Save(cfg, path); err != nil {
				return err
			}

			GetLogger().Debug().Str("path", path).Msg("Configuration written")
			fmt.Fprintf(out, "Configuration saved to: %s\n", path)
			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Overwrite existing configuration")
	cmd.Flags().StringVar(&appID, "app-id", "", "Discord application id")

	return cmd
}

// promptConfig asks for each setting, keeping the default on empty input.
func promptConfig(in io.Reader, out io.Writer, cfg *config.Config) error {
	reader := bufio.NewReader(in)

	fmt.Fprintln(out, "presencelink Configuration Setup")
	fmt.Fprintln(out, "================================")
	fmt.Fprintln(out)

	for cfg.Client.ApplicationID == "" {
		fmt.Fprint(out, "Discord application id (required): ")
		input, err := reader.ReadString('\n')
		cfg.Client.ApplicationID = strings.TrimSpace(input)
		if err != nil && cfg.Client.ApplicationID == "" {
			return fmt.Errorf("no application id given: %w", err)
		}
	}

	fmt.Fprintf(out, "Handshake timeout seconds [%d]: ", cfg.Client.HandshakeTimeoutSeconds)
	if v, ok := readInt(reader); ok {
		cfg.Client.HandshakeTimeoutSeconds = v
	}

	fmt.Fprintf(out, "Read poll interval ms [%d]: ", cfg.Client.ReadPollIntervalMs)
	if v, ok := readInt(reader); ok {
		cfg.Client.ReadPollIntervalMs = v
	}

	fmt.Fprintf(out, "Log level [%s]: ", cfg.Log.Level)
	if input, _ := reader.ReadString('\n'); strings.TrimSpace(input) != "" {
		cfg.Log.Level = strings.TrimSpace(input)
	}

	return nil
}

func readInt(reader *bufio.Reader) (int, bool) {
	input, _ := reader.ReadString('\n')
	v, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil {
		return 0, false
	}
	return v, true
}

// newConfigShowCmd creates the 'config show' command.
func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display current configuration",
		Long:  `Display the configuration after environment overrides are applied.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			path, err := configPath()
			if err != nil {
				return err
			}
			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			appID := cfg.Client.ApplicationID
			if appID == "" {
				appID = "(not set)"
			}

			fmt.Fprintf(out, "Config file: %s\n", path)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "[client]")
			fmt.Fprintf(out, "  application_id            = %s\n", appID)
			fmt.Fprintf(out, "  handshake_timeout_seconds = %d\n", cfg.Client.HandshakeTimeoutSeconds)
			fmt.Fprintf(out, "  read_poll_interval_ms     = %d\n", cfg.Client.ReadPollIntervalMs)
			fmt.Fprintln(out, "[log]")
			fmt.Fprintf(out, "  level                     = %s\n", cfg.Log.Level)

			if err := cfg.Validate(); err != nil {
				fmt.Fprintf(out, "\nWarning: %v\n", err)
			}
			return nil
		},
	}
}

// newConfigPathCmd creates the 'config path' command.
func newConfigPathCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show configuration file path",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := configPath()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
}
