package main

import (
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"text-extractor/internal/bootstrap"
	"text-extractor/internal/clipboard"
	"text-extractor/internal/config"
	"text-extractor/internal/domain"
	"text-extractor/internal/panel"
)

var (
	extractLanguages string
	extractTimeout   time.Duration
	extractPrint     bool
	extractHold      time.Duration
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run one extraction on the current clipboard image",
	Long: `Reads the PNG image on the clipboard, recognizes its text and writes the
text back to the clipboard. The result message is printed instead of shown as
a panel notification.

On X11 the clipboard content is owned by the writing process and is lost when
it exits. After a successful run the command keeps serving the text until
another application takes over the clipboard, --hold elapses or it is
interrupted. Use --hold 0 when a clipboard manager is running.`,
	Args: cobra.NoArgs,
	RunE: runExtract,
}

func init() {
	extractCmd.Flags().StringVarP(&extractLanguages, "lang", "l", "", "languages joined with + (e.g. eng+jpn)")
	extractCmd.Flags().DurationVar(&extractTimeout, "timeout", 0, "OCR timeout (e.g. 45s)")
	extractCmd.Flags().BoolVarP(&extractPrint, "print", "p", false, "also print the recognized text to stdout")
	extractCmd.Flags().DurationVar(&extractHold, "hold", 30*time.Second, "how long to keep serving the clipboard text after success")
	rootCmd.AddCommand(extractCmd)
}

// printSink writes notifications to the terminal.
type printSink struct{}

func (printSink) Show(n domain.Notification) {
	if n.Success {
		color.New(color.FgGreen).Fprintln(os.Stderr, n.Message)
		return
	}
	color.New(color.FgRed).Fprintln(os.Stderr, n.Message)
}

func (printSink) Dismiss(domain.Notification) {}

func runExtract(cmd *cobra.Command, args []string) error {
	settings, err := loadSettings()
	if err != nil {
		return err
	}
	if extractLanguages != "" {
		settings.Languages = []string{extractLanguages}
	}
	if extractTimeout > 0 {
		settings.OCRTimeoutSeconds = int((extractTimeout + time.Second - 1) / time.Second)
	}
	settings = config.Normalize(settings)

	log := newLogger(settings)
	clip := clipboard.New(clipboard.NewSystemBackend())
	pipeline := bootstrap.NewPipeline(settings, clip, log)

	button := panel.NewButton(panel.ButtonOptions{
		Pipeline: pipeline,
		Sink:     printSink{},
		Delay:    time.Duration(settings.NotificationDelayMS) * time.Millisecond,
		Logger:   log,
	})
	defer button.Destroy()

	id, err := button.Trigger()
	if err != nil {
		return err
	}
	button.Wait()

	if button.Current().Status != domain.InvocationStatusSucceeded {
		return fmt.Errorf("extraction %s did not succeed", id)
	}
	if extractPrint {
		for _, event := range button.InvocationEvents(id) {
			if event.Text != "" {
				fmt.Fprintln(cmd.OutOrStdout(), strings.TrimRight(event.Text, "\n"))
			}
		}
	}

	holdClipboard(clip.Changed(), extractHold, log)
	return nil
}

// holdClipboard blocks until changed fires, hold elapses or the process is
// interrupted.
func holdClipboard(changed <-chan struct{}, hold time.Duration, log zerolog.Logger) {
	if changed == nil || hold <= 0 {
		return
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(interrupt)

	timer := time.NewTimer(hold)
	defer timer.Stop()

	log.Debug().Dur("hold", hold).Msg("serving clipboard text")
	select {
	case <-changed:
		log.Debug().Msg("clipboard taken over")
	case <-timer.C:
		log.Debug().Msg("clipboard hold elapsed")
	case <-interrupt:
	}
}
