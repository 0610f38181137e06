package commands

import (
	"errors"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibeoracle/oracle/pkg/cli"
)

const appName = "oracle"

// Persistent flags shared by every subcommand.
var (
	cfgFile     string
	contextName string
	outputFile  string
	inputFile   string
	outputJSON  bool
	verbose     bool
)

var (
	globalConfig *cli.Config
	logLevel     slog.LevelVar
)

var rootCmd = &cobra.Command{
	Use:   "oracle",
	Short: "Vibe Oracle conversational divination CLI",
	Long: `Vibe Oracle - readings in vedic astrology, numerology, tarot and palmistry.

Replies stream from Gemini, can be spoken aloud, and a live voice session
continues the reading by speech.

Configuration is stored in ~/.vibeoracle/oracle/ and supports multiple
contexts, similar to kubectl's context management. Without a context the
GEMINI_API_KEY environment variable is used.

Examples:
  # Set up a context
  oracle config add-context main --api-key YOUR_API_KEY --language en

  # Start a tarot reading
  oracle chat --technique tarot --name Asha

  # Continue by voice with a recorded question
  oracle voice --technique tarot -f profile.yaml --input question.pcm -o reply.pcm

  # Serve the browser bridge
  oracle serve --addr :8080
`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the oracle command tree.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default ~/.vibeoracle/oracle/config.yaml)")
	pf.StringVarP(&contextName, "context", "c", "", "context to use instead of the current one")
	pf.StringVarP(&outputFile, "output", "o", "", "output file (default: stdout)")
	pf.StringVarP(&inputFile, "file", "f", "", "reading file with language, technique and profile (YAML or JSON)")
	pf.BoolVar(&outputJSON, "json", false, "print results as JSON")
	pf.BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(configCmd, chatCmd, speakCmd, voiceCmd, serveCmd)
}

func initConfig() {
	// Interactive commands keep stderr quiet unless asked.
	logLevel.Set(slog.LevelWarn)
	if verbose {
		logLevel.Set(slog.LevelDebug)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: &logLevel})))

	cfg, err := cli.LoadConfigWithPath(appName, cfgFile)
	if err != nil {
		slog.Warn("config not loaded", "path", cfgFile, "err", err)
		return
	}
	globalConfig = cfg
}

func getConfig() (*cli.Config, error) {
	if globalConfig == nil {
		return nil, errors.New("no configuration loaded")
	}
	return globalConfig, nil
}

// getContext returns the context configuration to use.
func getContext() (*cli.Context, error) {
	cfg, err := getConfig()
	if err != nil {
		return nil, err
	}
	return cfg.ResolveContext(contextName)
}

func outputResult(result any, outputPath string, asJSON bool) error {
	format := cli.FormatYAML
	if asJSON {
		format = cli.FormatJSON
	}
	return cli.Output(result, cli.OutputOptions{Format: format, File: outputPath})
}
