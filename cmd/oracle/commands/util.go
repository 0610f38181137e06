package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vibeoracle/oracle/pkg/cli"
	"github.com/vibeoracle/oracle/pkg/conversation"
	"github.com/vibeoracle/oracle/pkg/gemini"
	"github.com/vibeoracle/oracle/pkg/oracle"
	"github.com/vibeoracle/oracle/pkg/reply"
	"github.com/vibeoracle/oracle/pkg/store"
)

// Reading is the setup of a reading. It can be loaded from a YAML or JSON
// file using the -f flag; command line flags override the file.
//
//	language: hi
//	technique: vedic_astrology
//	user: u-123
//	profile:
//	  name: Asha
//	  dob: 1990-04-12
//	  tob: "06:30"
//	  pob: Pune
type Reading struct {
	Language  string             `yaml:"language" json:"language"`
	Technique oracle.TechniqueID `yaml:"technique" json:"technique"`
	// User is the signed-in user id. Empty means guest.
	User    string         `yaml:"user" json:"user"`
	Profile oracle.Profile `yaml:"profile" json:"profile"`
}

func addReadingFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringP("language", "l", "", "reply language code (default: context language or en)")
	f.StringP("technique", "t", "", "vedic_astrology, numerology, tarot or palmistry")
	f.String("user", "", "signed-in user id; conversations are saved only for signed-in users")
	f.String("name", "", "seeker's name")
	f.String("dob", "", "date of birth (YYYY-MM-DD)")
	f.String("tob", "", "time of birth (HH:MM)")
	f.String("pob", "", "place of birth")
}

// loadReading merges the -f file, flags and context defaults.
func loadReading(cmd *cobra.Command, cctx *cli.Context) (*Reading, error) {
	r := &Reading{}
	if inputFile != "" {
		if err := cli.LoadRequest(inputFile, r); err != nil {
			return nil, err
		}
	}
	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	var technique string
	override("language", &r.Language)
	override("technique", &technique)
	override("user", &r.User)
	override("name", &r.Profile.Name)
	override("dob", &r.Profile.DOB)
	override("tob", &r.Profile.TOB)
	override("pob", &r.Profile.POB)
	if technique != "" {
		r.Technique = oracle.TechniqueID(technique)
	}

	if r.Language == "" {
		r.Language = cctx.Language
	}
	if r.Language == "" {
		r.Language = "en"
	}
	if !oracle.IsLanguage(r.Language) {
		return nil, fmt.Errorf("unsupported language %q", r.Language)
	}
	if r.Technique != "" {
		if _, err := oracle.LookupTechnique(r.Technique); err != nil {
			return nil, err
		}
	}
	return r, nil
}

func (r *Reading) identity() conversation.Identity {
	if r.User != "" {
		return conversation.SignedIn(r.User)
	}
	return conversation.Guest{}
}

func geminiConfig(cctx *cli.Context) gemini.Config {
	return gemini.Config{
		APIKey:      cctx.ResolveAPIKey(),
		BaseURL:     cctx.BaseURL,
		TextModel:   cctx.TextModel,
		SpeechModel: cctx.SpeechModel,
		LiveModel:   cctx.LiveModel,
		Voice:       cctx.Voice,
	}
}

// newClient returns a Gemini client. Without a key the client is
// unavailable and replies carry the localized notice instead.
func newClient(ctx context.Context, cctx *cli.Context) (*gemini.Client, error) {
	cfg := geminiConfig(cctx)
	if cfg.APIKey == "" {
		cli.PrintWarning("No API key configured (set %s or use 'oracle config add-context')", cli.EnvAPIKey)
	}
	return gemini.New(ctx, cfg)
}

func newAssembler(client *gemini.Client, cctx *cli.Context) *reply.Assembler {
	a := &reply.Assembler{Streamer: client}
	// A custom endpoint is usually local; only probe the public one.
	if cctx.BaseURL == "" {
		a.Prober = &reply.DialProber{}
	}
	return a
}

// stores is the persistence of the CLI, opened on the context data dir.
type stores struct {
	db            store.Store
	conversations *store.Conversations
	profiles      *store.Profiles
}

func openStores(cctx *cli.Context) (*stores, error) {
	dir := cctx.DataDir
	if dir == "" {
		paths, err := cli.NewPaths(appName)
		if err != nil {
			return nil, err
		}
		if err := paths.EnsureDataDir(); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dir = paths.DataDir()
	} else if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	db, err := store.OpenBadger(store.BadgerOptions{Dir: dir})
	if err != nil {
		return nil, err
	}
	slog.Debug("commands: store opened", "dir", dir)
	return &stores{
		db:            db,
		conversations: store.NewConversations(db),
		profiles:      store.NewProfiles(db),
	}, nil
}

// openStoresOrWarn runs without persistence when the store cannot open,
// e.g. while another process holds the badger lock.
func openStoresOrWarn(cctx *cli.Context) *stores {
	s, err := openStores(cctx)
	if err != nil {
		cli.PrintWarning("Saving disabled: %v", err)
		return nil
	}
	return s
}

func (s *stores) options() []conversation.Option {
	if s == nil {
		return nil
	}
	return []conversation.Option{conversation.WithStore(s.conversations, s.profiles)}
}

func (s *stores) Close() error {
	if s == nil {
		return nil
	}
	return s.db.Close()
}
