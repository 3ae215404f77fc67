package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/voice-notes/internal/capture"
	"github.com/rcliao/voice-notes/internal/llm"
)

func init() {
	cmd := &cobra.Command{
		Use:   "record",
		Short: "Capture audio and save it as a note",
		Long: "Record from an audio file (or stdin with --file -), transcribe it, summarize it and save the note. " +
			"Press Ctrl-C to stop recording early.",
		Run: runRecord,
	}

	cmd.Flags().String("file", "", "Audio source: a file path, or - for stdin (required)")
	cmd.MarkFlagRequired("file")

	RootCmd.AddCommand(cmd)
}

func runRecord(cmd *cobra.Command, args []string) {
	file, _ := cmd.Flags().GetString("file")

	var dev capture.Device
	if file == "-" {
		dev = capture.NewReaderDevice(cmd.InOrStdin())
	} else {
		dev = capture.NewFileDevice(file)
	}

	transcriber, summarizer, err := llm.NewFromConfig(cfg)
	if err != nil {
		exitErr("configure services", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	opts := []capture.Option{capture.WithLogger(logger)}
	if textOutput() {
		opts = append(opts, capture.WithObserver(progress(cmd.ErrOrStderr())))
	}
	p := capture.New(dev, transcriber, summarizer, s, opts...)

	stop := interruptOnce()

	note, err := p.Run(cmd.Context(), stop)
	if err != nil {
		s.Close()
		reportCaptureErr(err)
	}
	writeNote(cmd.OutOrStdout(), note, time.Now())
}

// interruptOnce returns a channel closed on the first Ctrl-C. The handler
// is then removed, so a second Ctrl-C terminates the process.
func interruptOnce() <-chan struct{} {
	stop := make(chan struct{})
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	go func() {
		<-sigs
		signal.Stop(sigs)
		close(stop)
	}()
	return stop
}

// reportCaptureErr shows device problems as notices and exits.
func reportCaptureErr(err error) {
	var me *capture.MicrophoneError
	switch {
	case errors.As(err, &me):
		notice(me.Notice())
	case errors.Is(err, capture.ErrNoSupportedFormat):
		notice("No supported audio format found for recording.")
	default:
		exitErr("record", err)
	}
	os.Exit(1)
}

func progress(w io.Writer) func(capture.Event) {
	return func(ev capture.Event) {
		switch ev.State {
		case capture.StateRecording:
			fmt.Fprintf(w, "recording (%s)...\n", ev.Format.Ext)
		case capture.StateTranscribing:
			fmt.Fprintln(w, "transcribing...")
		case capture.StateSummarizing:
			fmt.Fprintln(w, "summarizing...")
		case capture.StatePersisted:
			fmt.Fprintf(w, "saved note #%d\n", ev.Note.ID)
		}
	}
}
