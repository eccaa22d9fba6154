package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-viper/mapstructure/v2"
	"github.com/ppiankov/drillgrade/internal/model"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage drillgrade configuration",
	Long: `Manage drillgrade configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (DRILLGRADE_*)
3. Config file (~/.drillgrade/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current configuration",
	Long:  `Display the effective configuration after merging defaults, the config file and environment variables.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		configFile := viper.ConfigFileUsed()
		if configFile != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", configFile)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println("  Current Configuration")
		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		fmt.Println(string(yamlData))

		fmt.Println("═══════════════════════════════════════════════════════════")
		fmt.Println()
		fmt.Println("Configuration hierarchy (highest to lowest priority):")
		fmt.Println("  1. CLI flags")
		fmt.Println("  2. Environment variables (DRILLGRADE_*, e.g. DRILLGRADE_OUTPUT_DIR)")
		fmt.Println("  3. Config file (~/.drillgrade/config.yaml)")
		fmt.Println("  4. Defaults")
		fmt.Println()

		return nil
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.drillgrade/config.yaml with every available option.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := filepath.Join(home, ".drillgrade")
		configPath := filepath.Join(configDir, "config.yaml")

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'drillgrade config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		yamlData, err := yaml.Marshal(model.DefaultConfig())
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}

		f, err := os.Create(configPath)
		if err != nil {
			return fmt.Errorf("error creating config file: %w", err)
		}
		defer func() {
			if closeErr := f.Close(); closeErr != nil && err == nil {
				err = fmt.Errorf("close config file: %w", closeErr)
			}
		}()

		printf := func(format string, a ...any) {
			if err != nil {
				return
			}
			_, err = fmt.Fprintf(f, format, a...)
		}

		printf("# drillgrade configuration file\n")
		printf("#\n")
		printf("# Configuration hierarchy (highest to lowest priority):\n")
		printf("#   1. CLI flags\n")
		printf("#   2. Environment variables (DRILLGRADE_*)\n")
		printf("#   3. This config file\n")
		printf("#   4. Built-in defaults\n\n")
		printf("%s", yamlData)
		printf("\n# Feedback webhook (optional):\n")
		printf("#   export DRILLGRADE_FEEDBACK_WEBHOOK_URL=https://relay.example.org/outbox\n")
		if err != nil {
			return fmt.Errorf("error writing config: %w", err)
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  drillgrade config show\n")
		fmt.Printf("\nTo customize, edit the file with your preferred editor:\n")
		fmt.Printf("  $EDITOR %s\n", configPath)
		fmt.Printf("\n")

		return nil
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}

// setDefaults registers every key of the built-in configuration with
// viper, so environment variables can override keys the config file
// does not mention
func setDefaults() error {
	data, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaultTree("", tree)

	// keys left out of the marshaled defaults by omitempty
	for _, key := range []string{"feedback.webhook_url", "feedback.http_proxy", "feedback.https_proxy", "feedback.no_proxy"} {
		viper.SetDefault(key, "")
	}
	return nil
}

func setDefaultTree(prefix string, tree map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := v.(map[string]any); ok {
			setDefaultTree(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig merges defaults, the config file and the environment into
// a Config. Command flags are applied on top by each command.
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	err := viper.Unmarshal(cfg, func(dc *mapstructure.DecoderConfig) {
		dc.TagName = "yaml"
	})
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	return cfg, nil
}
