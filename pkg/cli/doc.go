// Package cli provides the plumbing of the oracle command-line tool.
//
// This package includes:
//   - Configuration contexts kept in ~/.vibeoracle/<app>/config.yaml,
//     switched between like kubectl contexts
//   - Output formatting (JSON, YAML, raw)
//   - Request file loading (YAML/JSON), used for seeker profiles
//   - Terminal styles for the chat transcript and the voice session frame
//
// Example usage:
//
//	cfg, err := cli.LoadConfig("oracle")
//	ctx, err := cfg.ResolveContext("")
//	key := ctx.ResolveAPIKey()
package cli
