package commands

import (
	"errors"
	"os"
	"os/signal"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vibeoracle/oracle/pkg/audio/output"
	"github.com/vibeoracle/oracle/pkg/audio/pcm"
	"github.com/vibeoracle/oracle/pkg/cli"
	"github.com/vibeoracle/oracle/pkg/playback"
)

var speakCmd = &cobra.Command{
	Use:   "speak <text>",
	Short: "Synthesize speech for a text",
	Long: `Synthesize text with the configured voice and write PCM16 24kHz mono.

With --play the audio goes through the real-time output and the command
returns when it has been rendered.

Examples:
  oracle speak "The stars favour bold steps" -o stars.pcm
  oracle speak --play --voice Puck "Namaste" -o namaste.pcm`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSpeak,
}

func init() {
	speakCmd.Flags().Bool("play", false, "render through the real-time output")
	speakCmd.Flags().String("voice", "", "prebuilt voice (default: context voice)")
}

func runSpeak(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	if outputFile == "" {
		return errors.New("output file is required for audio (-o)")
	}
	cctx, err := getContext()
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cctx)
	if err != nil {
		return err
	}
	voiceName := flagString(cmd, "voice")
	if voiceName == "" {
		voiceName = cctx.Voice
	}
	text := strings.Join(args, " ")

	if play, _ := cmd.Flags().GetBool("play"); !play {
		data, err := client.Synthesize(ctx, text, voiceName)
		if err != nil {
			return err
		}
		if err := cli.OutputBytes(data, outputFile); err != nil {
			return err
		}
		cli.PrintSuccess("Wrote %s (%s of audio) to %s",
			cli.FormatBytes(len(data)), cli.FormatDuration(pcm.L16Mono24K.Duration(int64(len(data)))), outputFile)
		return nil
	}

	sink, closeSink, err := fileSink(outputFile)
	if err != nil {
		return err
	}
	defer closeSink()
	out := output.NewDevice(pcm.L16Mono24K, sink)
	defer out.Close()

	done := make(chan struct{})
	var once sync.Once
	player := playback.New(client, out, playback.WithVoice(voiceName))
	player.OnChange = func(s playback.State, _ string) {
		switch s {
		case playback.Playing:
			cli.PrintInfo("Playing...")
		case playback.Idle:
			once.Do(func() { close(done) })
		}
	}
	if err := player.Play(ctx, "speak", text); err != nil {
		return err
	}
	select {
	case <-done:
		cli.PrintSuccess("Rendered to %s", outputFile)
	case <-ctx.Done():
		player.Stop()
	}
	return nil
}
