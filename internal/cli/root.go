package cli

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/haleyos/haley/internal/logging"
	"github.com/haleyos/haley/internal/metrics"
	"github.com/haleyos/haley/internal/model"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Version is set at build time with -ldflags
var Version = "v0.3.0"

var (
	cfgFile     string
	verbose     bool
	metricsAddr string

	logger      = zap.NewNop()
	promMetrics *metrics.Metrics
	stopMetrics context.CancelFunc
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "haley",
	Short: "Haley - multi-LLM chat, fan-out and R&D soundboard",
	Long: `Haley talks to the Haley chat backend and to LLM providers directly.

It can stream one conversation, fan a prompt out to several providers at
once, turn a concept into claims, questions and implementation deltas, and
call the Logic Engine modules (idea harvester, engineering assistant,
Roblox scene generator).`,
	SilenceErrors:     true,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if stopMetrics != nil {
			stopMetrics()
		}
		_ = logger.Sync()
	},
}

// Execute runs the root command until ctx is cancelled
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("haley " + Version)
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $HOME/.haley/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().StringVar(&metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address while the command runs")

	// Bind flags to viper
	_ = viper.BindPFlag("output.verbose", rootCmd.PersistentFlags().Lookup("verbose"))
	_ = viper.BindPFlag("metrics.addr", rootCmd.PersistentFlags().Lookup("metrics-addr"))

	rootCmd.AddCommand(versionCmd)
}

// initConfig reads in .env, the config file and ENV variables
func initConfig() {
	// .env is optional; real environment variables win
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error finding home directory: %v\n", err)
			return
		}
		viper.AddConfigPath(home + "/.haley")
		viper.SetConfigType("yaml")
		viper.SetConfigName("config")
	}

	// HALEY_SOUNDBOARD_PROVIDER overrides soundboard.provider
	viper.SetEnvPrefix("HALEY")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := registerDefaults(model.DefaultConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error registering defaults: %v\n", err)
	}

	if err := viper.ReadInConfig(); err == nil && verbose {
		fmt.Fprintf(os.Stderr, "Using config file: %s\n", viper.ConfigFileUsed())
	}
}

// registerDefaults makes every config key known to viper so env variables
// can override keys absent from the file
func registerDefaults(cfg *model.Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	var tree map[string]any
	if err := yaml.Unmarshal(data, &tree); err != nil {
		return err
	}
	setDefaults("", tree)
	return nil
}

func setDefaults(prefix string, tree map[string]any) {
	for k, v := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		// providers is a table keyed by id; keep it whole so file entries merge into it
		if sub, ok := v.(map[string]any); ok && key != "providers" {
			setDefaults(key, sub)
			continue
		}
		viper.SetDefault(key, v)
	}
}

// loadConfig returns the effective configuration (flags > env > file > defaults)
func loadConfig() (*model.Config, error) {
	cfg := model.DefaultConfig()
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return cfg, nil
}

func setup(cmd *cobra.Command, args []string) error {
	l, err := logging.New(verbose)
	if err != nil {
		return fmt.Errorf("create logger: %w", err)
	}
	logger = l

	addr := viper.GetString("metrics.addr")
	if addr == "" {
		return nil
	}

	promMetrics = metrics.New()
	ctx, cancel := context.WithCancel(context.Background())
	stopMetrics = cancel
	go func() {
		if err := promMetrics.Serve(ctx, addr, logger); err != nil {
			logger.Warn("Metrics endpoint stopped", zap.Error(err))
		}
	}()
	return nil
}
