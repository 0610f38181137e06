package commands

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	"github.com/vibeoracle/oracle/pkg/cli"
	"github.com/vibeoracle/oracle/pkg/conversation"
	"github.com/vibeoracle/oracle/pkg/oracle"
)

func readingCmd(t *testing.T, args ...string) *cobra.Command {
	t.Helper()
	cmd := &cobra.Command{Use: "test"}
	addReadingFlags(cmd)
	if err := cmd.ParseFlags(args); err != nil {
		t.Fatal(err)
	}
	return cmd
}

func TestLoadReadingFileAndFlags(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reading.yaml")
	data := "language: hi\ntechnique: tarot\nprofile:\n  name: Asha\n  dob: \"1990-04-12\"\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	inputFile = path
	t.Cleanup(func() { inputFile = "" })

	r, err := loadReading(readingCmd(t, "--name", "Ravi", "--user", "u1"), &cli.Context{})
	if err != nil {
		t.Fatal(err)
	}
	if r.Language != "hi" || r.Technique != oracle.Tarot {
		t.Errorf("reading = %+v", r)
	}
	if r.Profile.Name != "Ravi" || r.Profile.DOB != "1990-04-12" {
		t.Errorf("profile = %+v, want flag name over file", r.Profile)
	}
	if _, ok := r.identity().(conversation.SignedIn); !ok {
		t.Errorf("identity = %T, want SignedIn", r.identity())
	}
}

func TestLoadReadingDefaults(t *testing.T) {
	r, err := loadReading(readingCmd(t), &cli.Context{Language: "ta"})
	if err != nil {
		t.Fatal(err)
	}
	if r.Language != "ta" {
		t.Errorf("language = %q, want context default", r.Language)
	}
	if _, ok := r.identity().(conversation.Guest); !ok {
		t.Errorf("identity = %T, want Guest", r.identity())
	}

	r, err = loadReading(readingCmd(t), &cli.Context{})
	if err != nil || r.Language != "en" {
		t.Errorf("language = %q, %v, want en", r.Language, err)
	}
}

func TestLoadReadingRejectsUnknown(t *testing.T) {
	if _, err := loadReading(readingCmd(t, "-l", "xx"), &cli.Context{}); err == nil {
		t.Error("unknown language should fail")
	}
	if _, err := loadReading(readingCmd(t, "-t", "astrology"), &cli.Context{}); err == nil {
		t.Error("unknown technique should fail")
	}
}

func TestGeminiConfigFromContext(t *testing.T) {
	t.Setenv(cli.EnvAPIKey, "env-key")
	cfg := geminiConfig(&cli.Context{Voice: "Puck", LiveModel: "live"})
	if cfg.APIKey != "env-key" || cfg.Voice != "Puck" || cfg.LiveModel != "live" {
		t.Errorf("config = %+v", cfg)
	}
}

func TestOpenStores(t *testing.T) {
	st, err := openStores(&cli.Context{DataDir: filepath.Join(t.TempDir(), "data")})
	if err != nil {
		t.Fatal(err)
	}
	defer st.Close()
	if len(st.options()) != 1 {
		t.Error("stores should yield a store option")
	}
	var none *stores
	if none.options() != nil || none.Close() != nil {
		t.Error("nil stores should be inert")
	}
}
