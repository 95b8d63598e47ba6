package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"encodec-converter/internal/domain"
	"encodec-converter/internal/encode"
	"encodec-converter/internal/jobs"
)

func newEncodeCommand(ctx *commandContext) *cobra.Command {
	var output string
	var force bool
	var plain bool

	cmd := &cobra.Command{
		Use:   "encode <input>",
		Short: "Encode an audio file into an .ecdc artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := ctx.ensureSettings()
			if err != nil {
				return err
			}

			spec := domain.SpecFromSettings(args[0], settings)
			if strings.TrimSpace(output) != "" {
				spec.DestinationPath = strings.TrimSpace(output)
			}

			stdout := cmd.OutOrStdout()
			progress := newProgressPrinter(stdout, plain || !shouldColorize(stdout))
			orch, err := ctx.newOrchestrator(progress.observe)
			if err != nil {
				return err
			}

			if err := orch.Validate(spec); err != nil {
				return err
			}
			facts, err := orch.Preflight(spec)
			if err != nil {
				return err
			}
			if facts.DestinationExists && !force {
				return domain.ConfigurationError(
					fmt.Sprintf("%s already exists (use --force to overwrite)", spec.DestinationPath), nil)
			}

			fmt.Fprintf(stdout, "Running on %s\n", facts.Device)
			fmt.Fprintf(stdout, "Encoding %s with the %s model at %g kbps\n", spec.SourcePath, spec.Variant, spec.Bitrate)

			outcome, err := orch.Run(context.Background(), spec)
			progress.finish()
			if err != nil {
				return err
			}

			size := ""
			if info, statErr := os.Stat(outcome.OutputPath); statErr == nil {
				size = " (" + humanize.Bytes(uint64(info.Size())) + ")"
			}
			fmt.Fprintf(stdout, "Encoding complete! Saved as %s%s\n", outcome.OutputPath, size)
			fmt.Fprintf(stdout, "Encoded %s of audio in %s chunk(s), elapsed %s\n",
				encode.FormatAudioDuration(outcome.AudioSeconds),
				humanize.Comma(int64(outcome.Chunks)),
				outcome.ElapsedString())
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", "", "Output file (default <output-dir>/<input name>.ecdc)")
	flags.BoolVarP(&force, "force", "f", false, "Overwrite an existing output file")
	flags.BoolVar(&plain, "plain", false, "Print progress lines instead of a progress bar")
	flags.String("variant", "", "Model variant: 24kHz or 48kHz")
	flags.Float64("bitrate", 0, "Target bitrate in kbps")
	flags.Bool("chunking", true, "Split long inputs into chunks")
	flags.Float64("chunk-seconds", 0, "Chunk length in seconds")

	return cmd
}

// progressPrinter renders job events as a progress bar on terminals or as
// plain lines elsewhere.
type progressPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	plain bool
	bar   *progressbar.ProgressBar
}

func newProgressPrinter(out io.Writer, plain bool) *progressPrinter {
	return &progressPrinter{out: out, plain: plain}
}

func (p *progressPrinter) observe(event jobs.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch event.Type {
	case jobs.EventTypeStatus:
		if p.plain && event.Message != "" {
			fmt.Fprintln(p.out, event.Message)
		}
	case jobs.EventTypeProgress:
		if event.Progress == nil {
			return
		}
		if p.plain {
			fmt.Fprintln(p.out, event.Message)
			return
		}
		if p.bar == nil {
			p.bar = progressbar.NewOptions(100,
				progressbar.OptionSetWriter(p.out),
				progressbar.OptionSetDescription("Encoding"),
				progressbar.OptionShowCount(),
				progressbar.OptionSetPredictTime(false),
				progressbar.OptionClearOnFinish(),
			)
		}
		_ = p.bar.Set(int(event.Progress.Percent()))
		p.bar.Describe(fmt.Sprintf("Encoding chunk %d/%d (%s)", event.Progress.Chunk, event.Progress.Chunks, progressLabel(*event.Progress)))
	case jobs.EventTypeLog:
		if p.plain && event.Command != "" {
			fmt.Fprintf(p.out, "%s exited with %d\n", event.Command, event.ExitCode)
		}
	}
}

func (p *progressPrinter) finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_ = p.bar.Finish()
		fmt.Fprintln(p.out)
	}
}

func progressLabel(snapshot domain.ProgressSnapshot) string {
	return fmt.Sprintf("%.2f %s", snapshot.DisplayValue, snapshot.Unit)
}
