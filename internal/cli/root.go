package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	cfgFile  string
	verbose  bool
	logLevel string

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "drillgrade",
	Short: "drillgrade - grade amateur radio exercise messages",
	Long: `drillgrade grades the messages operators send during a radio
communications exercise.

Each exercise is a YAML file of field tests. drillgrade checks every
exported message (or every sender) against them, compares reported values
with a ground-truth spreadsheet, scores attached images against a
reference, and writes a grades spreadsheet, a summary and maps.

Grades explain themselves: every lost point names the field, the value
that was sent and what it should have been.`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		logger, err = newLogger(logLevel, verbose)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Long:  `Display the version number of drillgrade.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("drillgrade v0.1.0")
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.drillgrade/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output (debug logging)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error (default from config)")

	_ = viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in config file and ENV variables
func initConfig() {
	if err := setDefaults(); err != nil {
		fmt.Fprintf(os.Stderr, "Error loading defaults: %v\n", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}

		viper.AddConfigPath(filepath.Join(home, ".drillgrade"))
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// a .env file in the working directory may carry DRILLGRADE_* settings;
	// variables already set in the environment win
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error reading .env: %v\n", err)
	}

	// DRILLGRADE_OUTPUT_DIR overrides output.dir
	viper.SetEnvPrefix("DRILLGRADE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, missing := err.(viper.ConfigFileNotFoundError); !missing || cfgFile != "" {
			fmt.Fprintf(os.Stderr, "Error reading config: %v\n", err)
		}
	} else if verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// newLogger builds the production zap logger at the configured level;
// verbose forces debug
func newLogger(level string, verbose bool) (*zap.Logger, error) {
	if level == "" {
		level = viper.GetString("log.level")
	}

	config := zap.NewProductionConfig()
	config.Encoding = "console"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = true

	lvl := zapcore.InfoLevel
	if level != "" {
		if err := lvl.UnmarshalText([]byte(level)); err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
	}
	if verbose {
		lvl = zapcore.DebugLevel
	}
	config.Level = zap.NewAtomicLevelAt(lvl)

	return config.Build()
}
