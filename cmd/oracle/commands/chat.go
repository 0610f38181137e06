package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"github.com/vibeoracle/oracle/pkg/audio/output"
	"github.com/vibeoracle/oracle/pkg/audio/pcm"
	"github.com/vibeoracle/oracle/pkg/chat"
	"github.com/vibeoracle/oracle/pkg/cli"
	"github.com/vibeoracle/oracle/pkg/conversation"
	"github.com/vibeoracle/oracle/pkg/gemini"
	"github.com/vibeoracle/oracle/pkg/oracle"
	"github.com/vibeoracle/oracle/pkg/playback"
	"github.com/vibeoracle/oracle/pkg/voice"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive reading in the terminal",
	Long: `Start an interactive reading. Replies stream as they arrive.

Commands inside the chat:
  /speak [n]     speak the last reply (or reply n) into the audio file
  /stop          stop speaking
  /palm <image>  ask for a palm reading of an image file
  /voice         continue by live voice using the --mic recording
  /reset         start the reading over
  /exit          leave

Typing the number of a suggestion asks it; typing a button label presses it.

Examples:
  oracle chat -t tarot --name Asha
  oracle chat -f reading.yaml --audio-out speech.pcm
  oracle chat -t vedic_astrology --mic question.pcm --voice-out reply.pcm`,
	RunE: runChat,
}

func init() {
	addReadingFlags(chatCmd)
	chatCmd.Flags().String("audio-out", "", "file receiving spoken replies as PCM16 24kHz mono")
	chatCmd.Flags().String("mic", "", "PCM16 16kHz mono recording used as microphone by /voice")
	chatCmd.Flags().String("voice-out", "", "file receiving live voice replies as PCM16 24kHz mono")
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	cctx, err := getContext()
	if err != nil {
		return err
	}
	reading, err := loadReading(cmd, cctx)
	if err != nil {
		return err
	}
	client, err := newClient(ctx, cctx)
	if err != nil {
		return err
	}
	st := openStoresOrWarn(cctx)
	defer st.Close()

	audioOut, _ := cmd.Flags().GetString("audio-out")
	sink, closeSink, err := fileSink(audioOut)
	if err != nil {
		return err
	}
	defer closeSink()
	out := output.NewDevice(pcm.L16Mono24K, sink)
	defer out.Close()
	player := playback.New(client, out, playback.WithVoice(cctx.Voice))

	opts := append([]conversation.Option{
		conversation.WithSpeaker(player),
		conversation.WithIdentity(reading.identity()),
	}, st.options()...)
	conv := conversation.New(newAssembler(client, cctx), opts...)

	in := bufio.NewScanner(os.Stdin)
	in.Buffer(make([]byte, 0, 64*1024), 1<<20)
	ui := &chatUI{
		conv:    conv,
		styles:  cli.NewStyles(cli.DefaultTheme),
		in:      in,
		w:       cmd.OutOrStdout(),
		client:  client,
		cctx:    cctx,
		mic:     flagString(cmd, "mic"),
		voiceTo: flagString(cmd, "voice-out"),
	}
	player.OnChange = ui.playbackChanged
	if err := ui.setup(ctx, reading); err != nil {
		return err
	}
	return ui.loop(ctx)
}

type chatUI struct {
	conv   *conversation.Conversation
	styles cli.Styles
	in     *bufio.Scanner
	w      io.Writer

	client  *gemini.Client
	cctx    *cli.Context
	mic     string
	voiceTo string
}

func (u *chatUI) setup(ctx context.Context, r *Reading) error {
	if err := u.conv.SetLanguage(r.Language); err != nil {
		return err
	}
	text := oracle.Text(r.Language)
	fmt.Fprintln(u.w, u.styles.Title.Render("Vibe Oracle"))
	fmt.Fprintln(u.w, u.styles.Help.Render(text.Disclaimer))
	fmt.Fprintln(u.w)

	if r.Technique == "" {
		t, err := u.chooseTechnique()
		if err != nil {
			return err
		}
		r.Technique = t
	}
	if err := u.conv.SetTechnique(r.Technique); err != nil {
		return err
	}

	p := r.Profile
	if !p.Complete() {
		if saved, ok := u.conv.LoadProfile(ctx); ok && (p.Name == "" || p.Name == saved.Name) {
			p = saved
			fmt.Fprintf(u.w, "Welcome back, %s.\n", p.Name)
		}
	}
	if err := u.askMissing(&p, r.Technique); err != nil {
		return err
	}
	if err := u.conv.SetProfile(ctx, p); err != nil {
		cli.PrintWarning("%v", err)
	}

	if m, ok := u.conv.Begin(); ok {
		u.printModel(m)
	} else {
		fmt.Fprintln(u.w, u.styles.Help.Render("Use /palm <image> to share a photo of your palm."))
	}
	return nil
}

func (u *chatUI) chooseTechnique() (oracle.TechniqueID, error) {
	ts := oracle.Techniques()
	names := make([]string, len(ts))
	for i, t := range ts {
		names[i] = t.Name
	}
	fmt.Fprintln(u.w, "Choose your path:")
	fmt.Fprintln(u.w, u.styles.Hints(names))
	for {
		line, err := u.prompt("> ")
		if err != nil {
			return "", err
		}
		if n, err := strconv.Atoi(line); err == nil && n >= 1 && n <= len(ts) {
			return ts[n-1].ID, nil
		}
		if _, err := oracle.LookupTechnique(oracle.TechniqueID(line)); err == nil {
			return oracle.TechniqueID(line), nil
		}
	}
}

// askMissing prompts for profile fields that are still empty. Palmistry
// only needs a name.
func (u *chatUI) askMissing(p *oracle.Profile, t oracle.TechniqueID) error {
	fields := []struct {
		label string
		dst   *string
	}{
		{"Your name", &p.Name},
		{"Date of birth (YYYY-MM-DD)", &p.DOB},
		{"Time of birth (HH:MM)", &p.TOB},
		{"Place of birth", &p.POB},
	}
	if t == oracle.Palmistry {
		fields = fields[:1]
	}
	for _, f := range fields {
		for *f.dst == "" {
			v, err := u.prompt(f.label + ": ")
			if err != nil {
				return err
			}
			*f.dst = v
		}
	}
	return nil
}

func (u *chatUI) prompt(label string) (string, error) {
	fmt.Fprint(u.w, u.styles.Seeker.Render(label))
	if !u.in.Scan() {
		if err := u.in.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return strings.TrimSpace(u.in.Text()), nil
}

func (u *chatUI) loop(ctx context.Context) error {
	for {
		line, err := u.prompt("you: ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "/") {
			done, err := u.command(ctx, line)
			if err != nil {
				cli.PrintError("%v", err)
			}
			if done || ctx.Err() != nil {
				return nil
			}
			continue
		}
		u.ask(ctx, u.expand(line))
	}
}

// expand turns a suggestion number or button label into its question.
func (u *chatUI) expand(line string) string {
	if n, err := strconv.Atoi(line); err == nil {
		if s := u.conv.Suggestions(); n >= 1 && n <= len(s) {
			return s[n-1]
		}
	}
	msgs := u.conv.Messages()
	if len(msgs) > 0 {
		for _, label := range msgs[len(msgs)-1].ButtonLabels() {
			if strings.EqualFold(label, line) {
				return label
			}
		}
	}
	return line
}

func (u *chatUI) command(ctx context.Context, line string) (bool, error) {
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "/exit", "/quit":
		u.conv.StopSpeaking()
		return true, nil
	case "/stop":
		u.conv.StopSpeaking()
	case "/reset":
		if m, ok := u.conv.Begin(); ok {
			u.printModel(m)
		}
	case "/speak":
		id, err := u.modelMessage(arg)
		if err != nil {
			return false, err
		}
		return false, u.conv.Speak(ctx, id)
	case "/palm":
		if arg == "" {
			return false, errors.New("usage: /palm <image file>")
		}
		img, err := loadImage(arg)
		if err != nil {
			return false, err
		}
		u.stream(func(onUpdate func(chat.Message)) (chat.Message, error) {
			return u.conv.SendPalm(ctx, img, "", onUpdate)
		})
	case "/voice":
		return false, u.voice(ctx)
	default:
		return false, fmt.Errorf("unknown command %s", name)
	}
	return false, nil
}

// modelMessage resolves "" to the last model message and n to the n-th.
func (u *chatUI) modelMessage(arg string) (string, error) {
	var ids []string
	for _, m := range u.conv.Messages() {
		if m.Role == chat.RoleModel {
			ids = append(ids, m.ID)
		}
	}
	if len(ids) == 0 {
		return "", errors.New("nothing to speak yet")
	}
	if arg == "" {
		return ids[len(ids)-1], nil
	}
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(ids) {
		return "", fmt.Errorf("no reply %q", arg)
	}
	return ids[n-1], nil
}

func (u *chatUI) ask(ctx context.Context, q string) {
	u.stream(func(onUpdate func(chat.Message)) (chat.Message, error) {
		return u.conv.Send(ctx, q, onUpdate)
	})
}

func (u *chatUI) stream(run func(func(chat.Message)) (chat.Message, error)) {
	fmt.Fprint(u.w, u.styles.Speaker("oracle", true), " ")
	fmt.Fprint(u.w, u.styles.Help.Render(oracle.LoadingMessage(u.conv.Language(), len(u.conv.Messages()))))
	fmt.Fprintln(u.w)

	var printed string
	final, err := run(func(m chat.Message) {
		if strings.HasPrefix(m.Content, printed) {
			fmt.Fprint(u.w, m.Content[len(printed):])
		} else {
			fmt.Fprint(u.w, "\n", m.Content)
		}
		printed = m.Content
	})
	fmt.Fprintln(u.w)
	if err != nil {
		cli.PrintError("%v", err)
		return
	}
	u.printExtras(final)
}

func (u *chatUI) printModel(m chat.Message) {
	fmt.Fprintln(u.w, u.styles.Speaker("oracle", true), m.Content)
	u.printExtras(m)
}

func (u *chatUI) printExtras(m chat.Message) {
	if m.Palmistry != nil && m.Palmistry.SVGOverlay != "" {
		fmt.Fprintln(u.w, u.styles.Help.Render("[palm overlay ready]"))
	}
	if labels := m.ButtonLabels(); len(labels) > 0 {
		fmt.Fprintln(u.w, u.styles.Chips(labels))
	}
	if s := u.conv.Suggestions(); len(s) > 0 {
		fmt.Fprintln(u.w, u.styles.Hints(s))
	}
	if u.conv.ShouldOfferSave() {
		fmt.Fprintln(u.w, u.styles.Help.Render("Sign in with --user to save this reading."))
	}
}

func (u *chatUI) playbackChanged(s playback.State, _ string) {
	switch s {
	case playback.Loading:
		fmt.Fprintln(u.w, u.styles.Help.Render("[preparing speech]"))
	case playback.Playing:
		fmt.Fprintln(u.w, u.styles.Help.Render("[speaking]"))
	}
}

// voice runs a live session until the seeker presses Enter or the session
// ends on its own.
func (u *chatUI) voice(ctx context.Context) error {
	if u.mic == "" {
		return errors.New("/voice needs a --mic recording")
	}
	sc := u.conv.EnterVoice()
	f, err := os.Open(u.mic)
	if err != nil {
		return err
	}
	// The capture closes f; this covers a session that never opened it.
	defer f.Close()
	sink, closeSink, err := fileSink(u.voiceTo)
	if err != nil {
		return err
	}
	defer closeSink()

	m := newVoiceManager(u.client, &voice.ReaderMicrophone{R: f, SampleRate: voice.InputRate, Realtime: true}, sink)
	m.Voice = u.cctx.Voice
	ended := make(chan struct{})
	var endOnce sync.Once
	end := func() { endOnce.Do(func() { close(ended) }) }
	m.OnEnded = end
	m.OnStatus = func(s voice.Status) {
		fmt.Fprintln(u.w, u.styles.Help.Render("["+s.Label(sc.Language)+"]"))
		if s == voice.StatusError {
			end()
		}
	}
	m.OnTranscript = func(t voice.Transcript) {
		if t.Final {
			fmt.Fprintln(u.w, u.styles.Speaker(speakerName(t.Role), t.Role == chat.RoleModel), t.Text)
		}
	}
	if err := m.Start(ctx, sc); err != nil {
		m.End()
		return err
	}
	fmt.Fprintln(u.w, u.styles.Help.Render("Press Enter to end the voice session."))

	lines := make(chan struct{})
	go func() {
		u.in.Scan()
		close(lines)
	}()
	select {
	case <-lines:
	case <-ended:
		<-lines
	case <-ctx.Done():
	}
	m.End()
	return nil
}

func speakerName(r chat.Role) string {
	if r == chat.RoleModel {
		return "oracle"
	}
	return "you"
}

func loadImage(path string) (gemini.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return gemini.Image{}, err
	}
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	mime := "image/jpeg"
	if slices.Contains([]string{"png", "webp", "gif"}, ext) {
		mime = "image/" + ext
	}
	return gemini.Image{Data: data, MIMEType: mime}, nil
}

func flagString(cmd *cobra.Command, name string) string {
	v, _ := cmd.Flags().GetString(name)
	return v
}

// fileSink writes rendered PCM to path, or discards it when path is empty.
func fileSink(path string) (pcm.Writer, func() error, error) {
	if path == "" {
		return pcm.Discard, func() error { return nil }, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", path, err)
	}
	return pcm.ChunkWriter(f), f.Close, nil
}

func newVoiceManager(client *gemini.Client, mic voice.Microphone, sink pcm.Writer) *voice.Manager {
	return voice.NewManager(client, mic, func(rate int) (output.Context, error) {
		f, ok := pcm.FormatFor(rate)
		if !ok {
			return nil, fmt.Errorf("unsupported output rate %d", rate)
		}
		return output.NewDevice(f, sink), nil
	})
}
