package commands

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vibeoracle/oracle/pkg/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the websocket bridge for browsers",
	Long: `Serve /ws/chat and /ws/voice for browser clients.

Chat and voice frames are JSON; audio is base64 PCM16 (16kHz from the
browser, 24kHz to it). Add ?user=<id> to the socket URL for a signed-in
reading whose conversation is saved.

Examples:
  oracle serve --addr :8080`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", ":8080", "listen address")
}

func runServe(cmd *cobra.Command, args []string) error {
	if !verbose {
		logLevel.Set(slog.LevelInfo)
	}
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cctx, err := getContext()
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cctx)
	if err != nil {
		return err
	}
	st := openStoresOrWarn(cctx)
	defer st.Close()

	srv := &server.Server{
		Assembler: newAssembler(client, cctx),
		Synth:     client,
		Dialer:    client,
		Voice:     cctx.Voice,
	}
	if st != nil {
		srv.Conversations = st.conversations
		srv.Profiles = st.profiles
	}
	return srv.ListenAndServe(ctx, flagString(cmd, "addr"))
}
