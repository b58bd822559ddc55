package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codefionn/hyphertext/internal/config"
	"github.com/codefionn/hyphertext/internal/logger"
	"github.com/codefionn/hyphertext/internal/securemem"
)

var configFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "hyphertext",
	Short: "Chat-driven editing agent for single-file web pages",
	Long: `Hyphertext plans, writes and patches one self-contained HTML page per
chat request. It routes requests to Groq, Claude or Gemini models and keeps a
version history and edit audit trail for every page.

Configuration is read from --config, $XDG_CONFIG_HOME/hyphertext/config.yaml
or ./config.yaml, and HYPHERTEXT_* environment variables.`,
	SilenceUsage: true,
}

func main() {
	securemem.Init()
	defer securemem.Purge()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		securemem.Purge()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Configuration file (YAML)")
}

// loadConfig reads defaults, the optional config file and the environment,
// then initializes the global logger. The returned viper instance is the
// one watched by serve.
func loadConfig() (*viper.Viper, *config.Config, error) {
	v := viper.New()
	config.SetDefaults(v)
	config.BindEnv(v)

	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(config.ConfigDir())
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	cfg, err := config.Load(v)
	if err != nil {
		return nil, nil, err
	}

	if err := logger.Init(logger.ParseLevel(cfg.Logging.Level), cfg.Logging.Path); err != nil {
		cfg.Credentials.Destroy()
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	if used := v.ConfigFileUsed(); used != "" {
		logger.Info("loaded config from %s", used)
	}
	return v, cfg, nil
}

// watchLogLevel applies logging.level changes of the config file live.
func watchLogLevel(v *viper.Viper) {
	if v.ConfigFileUsed() == "" {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		level := logger.ParseLevel(v.GetString("logging.level"))
		if level != logger.Global().GetLevel() {
			logger.Global().SetLevel(level)
			logger.Info("log level changed to %s", level)
		}
	})
	v.WatchConfig()
}
