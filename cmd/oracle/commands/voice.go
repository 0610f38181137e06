package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/cli"
	"github.com/vibeoracle/oracle/pkg/oracle"
	"github.com/vibeoracle/oracle/pkg/voice"
)

var voiceCmd = &cobra.Command{
	Use:   "voice",
	Short: "Live voice session",
	Long: `Run a live voice reading. The microphone is a PCM16 16kHz mono recording
(--input, or stdin with "-"); the oracle's speech is written to -o as PCM16
24kHz mono.

The session runs until the oracle closes it, --timeout passes or Ctrl+C.

Examples:
  oracle voice -t tarot --name Asha --input question.pcm -o reply.pcm
  arecord -f S16_LE -r 16000 -c 1 -t raw | oracle voice -f reading.yaml --input - -o reply.pcm`,
	RunE: runVoice,
}

func init() {
	addReadingFlags(voiceCmd)
	voiceCmd.Flags().String("input", "-", `microphone recording, or "-" for stdin`)
	voiceCmd.Flags().Duration("timeout", 0, "end the session after this long (0: no limit)")
	voiceCmd.Flags().Bool("realtime", true, "pace file input at the capture rate")
}

func runVoice(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()
	if d, _ := cmd.Flags().GetDuration("timeout"); d > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}

	cctx, err := getContext()
	if err != nil {
		return err
	}
	reading, err := loadReading(cmd, cctx)
	if err != nil {
		return err
	}
	if reading.Technique == "" {
		return fmt.Errorf("a technique is required (-t)")
	}
	technique, err := oracle.LookupTechnique(reading.Technique)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cctx)
	if err != nil {
		return err
	}

	var src io.Reader = os.Stdin
	input := flagString(cmd, "input")
	realtime, _ := cmd.Flags().GetBool("realtime")
	if input != "-" {
		f, err := os.Open(input)
		if err != nil {
			return err
		}
		defer f.Close()
		src = f
	} else {
		realtime = false
	}

	sink, closeSink, err := fileSink(outputFile)
	if err != nil {
		return err
	}
	defer closeSink()

	profile := reading.Profile
	profile.Language = reading.Language
	sc := &voice.SessionContext{
		Profile:   profile,
		Technique: technique,
		Language:  reading.Language,
	}

	v := &voiceView{
		styles:   cli.NewStyles(cli.DefaultTheme),
		language: reading.Language,
		start:    time.Now(),
	}
	m := newVoiceManager(client, &voice.ReaderMicrophone{R: src, SampleRate: voice.InputRate, Realtime: realtime}, sink)
	m.Voice = cctx.Voice

	// A failed session keeps its error status until End.
	ended := make(chan struct{})
	var endOnce sync.Once
	end := func() { endOnce.Do(func() { close(ended) }) }
	m.OnEnded = end
	m.OnStatus = func(s voice.Status) {
		v.setStatus(s)
		if s == voice.StatusError {
			end()
		}
	}
	m.OnTranscript = v.transcript

	if err := m.Start(ctx, sc); err != nil {
		m.End()
		return err
	}
	select {
	case <-ended:
	case <-ctx.Done():
	}
	m.End()

	fmt.Fprintln(cmd.OutOrStdout(), v.render(m.Transcripts()))
	return nil
}

// voiceView prints status changes and final transcript lines as they
// happen and renders the whole session when it ends.
type voiceView struct {
	styles   cli.Styles
	language string
	start    time.Time

	mu     sync.Mutex
	status voice.Status
}

func (v *voiceView) setStatus(s voice.Status) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
	fmt.Fprintln(os.Stderr, v.styles.Help.Render("["+s.Label(v.language)+"]"))
}

func (v *voiceView) transcript(t voice.Transcript) {
	if !t.Final {
		return
	}
	fmt.Fprintln(os.Stderr, v.styles.Speaker(speakerName(t.Role), t.Role == chat.RoleModel), t.Text)
}

func (v *voiceView) render(ts []voice.Transcript) string {
	v.mu.Lock()
	status := v.status
	v.mu.Unlock()

	lines := make([]string, 0, len(ts))
	for _, t := range ts {
		lines = append(lines, speakerName(t.Role)+": "+strings.TrimSpace(t.Text))
	}
	f := cli.Frame{
		Styles:   v.styles,
		Title:    "Vibe Oracle Live",
		Status:   status.String() + " " + cli.FormatDuration(time.Since(v.start)),
		Sections: []cli.Section{{Label: "Transcript", Lines: lines}},
		Help:     fmt.Sprintf("%d transcript entries", len(ts)),
	}
	return f.Render(80)
}
