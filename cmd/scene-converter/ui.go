package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// UI provides user-friendly output utilities. Everything goes to stderr so
// stdout stays clean for the scene document.
type UI struct {
	out      io.Writer
	jsonMode bool
}

// NewUI creates a new UI instance.
func NewUI(jsonMode, noColor bool) *UI {
	if noColor {
		color.NoColor = true
	}
	return &UI{out: os.Stderr, jsonMode: jsonMode}
}

// Success prints a success message.
func (ui *UI) Success(format string, args ...interface{}) {
	ui.print(color.FgGreen, "✓", format, args...)
}

// Error prints an error message.
func (ui *UI) Error(format string, args ...interface{}) {
	ui.print(color.FgRed, "✗", format, args...)
}

// Info prints an info message.
func (ui *UI) Info(format string, args ...interface{}) {
	ui.print(color.FgCyan, "ℹ", format, args...)
}

// Step prints a step message.
func (ui *UI) Step(format string, args ...interface{}) {
	ui.print(color.FgBlue, "→", format, args...)
}

func (ui *UI) print(attr color.Attribute, symbol, format string, args ...interface{}) {
	if ui.jsonMode {
		return
	}
	color.New(attr).Fprintf(ui.out, "%s %s\n", symbol, fmt.Sprintf(format, args...))
}

// PageBar shows deterministic page progress for one document.
type PageBar struct {
	bar *progressbar.ProgressBar
}

// NewPageBar creates a progress bar over total pages. Returns nil in JSON mode.
func (ui *UI) NewPageBar(total int) *PageBar {
	if ui.jsonMode {
		return nil
	}
	bar := progressbar.NewOptions(
		total,
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Rendering pages"),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "│",
			BarEnd:        "│",
		}),
		progressbar.OptionSetWriter(ui.out),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprint(ui.out, "\n")
		}),
		progressbar.OptionSetRenderBlankState(true),
	)
	return &PageBar{bar: bar}
}

// Set moves the bar to done pages.
func (p *PageBar) Set(done int) {
	if p == nil {
		return
	}
	_ = p.bar.Set(done)
}

// Finish completes the bar.
func (p *PageBar) Finish() {
	if p == nil {
		return
	}
	_ = p.bar.Finish()
}

// Spinner shows indeterminate progress for single-layer conversions.
type Spinner struct {
	spinner *spinner.Spinner
}

// NewSpinner creates a spinner with the given message. Returns nil in JSON mode.
func (ui *UI) NewSpinner(message string) *Spinner {
	if ui.jsonMode {
		return nil
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + message
	s.Writer = ui.out
	return &Spinner{spinner: s}
}

// Start starts the spinner animation.
func (s *Spinner) Start() {
	if s != nil {
		s.spinner.Start()
	}
}

// Stop stops the spinner animation and clears the line.
func (s *Spinner) Stop() {
	if s != nil {
		s.spinner.Stop()
	}
}

// BatchProgress tracks a batch of files with one bar.
type BatchProgress struct {
	progress *mpb.Progress
	bar      *mpb.Bar
}

// NewBatchProgress creates a files bar. Returns nil in JSON mode.
func (ui *UI) NewBatchProgress(total int) *BatchProgress {
	if ui.jsonMode {
		return nil
	}
	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(ui.out))
	name := "Converting"
	bar := p.AddBar(int64(total),
		mpb.PrependDecorators(
			decor.Name(name, decor.WC{W: len(name) + 1, C: decor.DSyncSpaceR}),
			decor.CountersNoUnit("%d / %d", decor.WCSyncWidth),
		),
		mpb.AppendDecorators(
			decor.Percentage(decor.WC{W: 5}),
			decor.Elapsed(decor.ET_STYLE_GO, decor.WC{W: 12}),
		),
	)
	return &BatchProgress{progress: p, bar: bar}
}

// Increment marks one file as done.
func (b *BatchProgress) Increment() {
	if b != nil {
		b.bar.Increment()
	}
}

// Close stops the bar, waiting for the final render on a terminal.
func (b *BatchProgress) Close() {
	if b == nil {
		return
	}
	if !b.bar.Completed() {
		b.bar.Abort(false)
	}
	if IsTerminal() {
		b.progress.Wait()
	} else {
		b.progress.Shutdown()
	}
}

// IsTerminal checks if stderr is a terminal.
func IsTerminal() bool {
	fileInfo, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}
