package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/vibeoracle/oracle/pkg/cli"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration management",
	Long: `Manage Vibe Oracle CLI configuration.

Configuration is stored in ~/.vibeoracle/oracle/config.yaml.
Multiple contexts can be defined for different keys, models and voices.`,
}

var configAddContextCmd = &cobra.Command{
	Use:   "add-context <name>",
	Short: "Add a new context",
	Long: `Add a new context with Gemini credentials and defaults.

Examples:
  oracle config add-context main --api-key AIza...
  oracle config add-context hindi --api-key AIza... --language hi --voice Puck`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		flags := cmd.Flags()
		apiKey, _ := flags.GetString("api-key")
		ctx := &cli.Context{Name: name, APIKey: apiKey}
		ctx.BaseURL, _ = flags.GetString("base-url")
		ctx.TextModel, _ = flags.GetString("text-model")
		ctx.SpeechModel, _ = flags.GetString("speech-model")
		ctx.LiveModel, _ = flags.GetString("live-model")
		ctx.Voice, _ = flags.GetString("voice")
		ctx.Language, _ = flags.GetString("language")
		ctx.DataDir, _ = flags.GetString("data-dir")

		if apiKey == "" {
			cli.PrintWarning("No API key given; %s will be used at run time", cli.EnvAPIKey)
		}
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.AddContext(name, ctx); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' added successfully", name)
		return nil
	},
}

var configDeleteContextCmd = &cobra.Command{
	Use:   "delete-context <name>",
	Short: "Delete a context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.DeleteContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Context '%s' deleted", args[0])
		return nil
	},
}

var configUseContextCmd = &cobra.Command{
	Use:   "use-context <name>",
	Short: "Set the default context",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		if err := cfg.UseContext(args[0]); err != nil {
			return err
		}
		cli.PrintSuccess("Switched to context '%s'", args[0])
		return nil
	},
}

var configGetContextCmd = &cobra.Command{
	Use:   "get-context [name]",
	Short: "Show a context (default: the current one)",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		name := cfg.CurrentContext
		if len(args) == 1 {
			name = args[0]
		}
		if name == "" {
			fmt.Println("No current context set")
			return nil
		}
		ctx, err := cfg.GetContext(name)
		if err != nil {
			return err
		}
		return outputResult(ctx.Redacted(), outputFile, outputJSON)
	},
}

var configListContextsCmd = &cobra.Command{
	Use:   "list-contexts",
	Short: "List all contexts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		names := cfg.ListContexts()
		if len(names) == 0 {
			fmt.Println("No contexts configured")
			return nil
		}
		for _, name := range names {
			marker := "  "
			if name == cfg.CurrentContext {
				marker = "* "
			}
			fmt.Printf("%s%s\n", marker, name)
		}
		return nil
	},
}

var configViewCmd = &cobra.Command{
	Use:   "view",
	Short: "View full configuration with masked keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig()
		if err != nil {
			return err
		}
		return outputResult(cfg.Redacted(), outputFile, outputJSON)
	},
}

func init() {
	f := configAddContextCmd.Flags()
	f.StringP("api-key", "k", "", "Gemini API key (default: $GEMINI_API_KEY)")
	f.StringP("base-url", "u", "", "API base URL override")
	f.String("text-model", "", "model for streamed replies")
	f.String("speech-model", "", "model for speech synthesis")
	f.String("live-model", "", "model for live voice sessions")
	f.String("voice", "", "prebuilt voice name (e.g. Kore, Puck)")
	f.StringP("language", "l", "", "default reply language code")
	f.String("data-dir", "", "directory for saved profiles and conversations")

	configCmd.AddCommand(configAddContextCmd)
	configCmd.AddCommand(configDeleteContextCmd)
	configCmd.AddCommand(configUseContextCmd)
	configCmd.AddCommand(configGetContextCmd)
	configCmd.AddCommand(configListContextsCmd)
	configCmd.AddCommand(configViewCmd)
}
