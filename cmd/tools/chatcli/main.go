package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/zhouzirui/digital-twin/client/internal/config"
	model "github.com/zhouzirui/digital-twin/client/internal/model/chat"
	"github.com/zhouzirui/digital-twin/client/internal/render"
	"github.com/zhouzirui/digital-twin/client/internal/service/chat"
	"github.com/zhouzirui/digital-twin/client/internal/service/responder"
)

type options struct {
	apiURL  string
	timeout time.Duration
	width   int
	plain   bool
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "chatcli",
		Short: "Talk to the digital twin from a terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, opts, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&opts.apiURL, "api-url", "", "response service base URL (overrides TWIN_API_URL)")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "per-turn timeout (overrides TWIN_REQUEST_TIMEOUT)")
	cmd.Flags().IntVar(&opts.width, "width", 80, "word wrap width for rendered replies")
	cmd.Flags().BoolVar(&opts.plain, "plain", false, "print replies without markdown rendering")

	return cmd
}

func run(ctx context.Context, opts *options, in io.Reader, out io.Writer) error {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	zerolog.SetGlobalLevel(cfg.LogLevel)

	baseURL := cfg.Responder.BaseURL
	if opts.apiURL != "" {
		baseURL = opts.apiURL
	}
	timeout := cfg.Responder.Timeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	controller := chat.NewController(
		responder.NewClient(baseURL, responder.WithTimeout(timeout)),
		chat.WithRequestTimeout(timeout),
	)

	var term *render.Terminal
	if !opts.plain && isTerminal(out) {
		if term, err = render.NewTerminal(opts.width); err != nil {
			log.Warn().Err(err).Msg("falling back to plain output")
		}
	}

	fmt.Fprintln(out, "Digital Twin: ask about my professional career. Ctrl-D to quit.")

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	seen := 0
	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				fmt.Fprintln(out)
				return nil
			}
			line = l
		}

		done, accepted := controller.Submit(ctx, line)
		if !accepted {
			continue
		}
		select {
		case <-done:
		case <-ctx.Done():
			return nil
		}

		transcript := controller.Transcript()
		for _, entry := range transcript[seen:] {
			if entry.Author == model.AuthorAssistant {
				fmt.Fprintf(out, "%s\n%s\n\n", entry.CreatedAt.Local().Format(time.Kitchen), term.Render(entry.Body))
			}
		}
		seen = len(transcript)
	}
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
