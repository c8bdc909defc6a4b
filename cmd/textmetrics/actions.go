package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/urfave/cli/v2"

	"github.com/toricodesthings/text-metrics-service/internal/config"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
	"github.com/toricodesthings/text-metrics-service/internal/logging"
	"github.com/toricodesthings/text-metrics-service/internal/service"
)

func newService(c *cli.Context) (*service.Service, config.Config, func(), error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, cfg, nil, err
	}
	log, err := logging.New(logging.Options{Level: c.String("log-level"), Format: "console", File: cfg.LogFile})
	if err != nil {
		return nil, cfg, nil, err
	}
	svc, err := service.New(cfg, log)
	if err != nil {
		return nil, cfg, nil, err
	}
	return svc, cfg, func() { _ = log.Sync() }, nil
}

func countAction(c *cli.Context) error {
	text := strings.Join(c.Args().Slice(), " ")
	if text == "" || text == "-" {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}
		text = string(b)
	}

	svc, _, done, err := newService(c)
	if err != nil {
		return err
	}
	defer done()

	r := svc.AnalyzeText(text, service.Options{FilterStopWords: c.Bool("stopwords"), Frequency: true})
	return render(c, r)
}

func fileAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageErr(c, "expected exactly one file path")
	}
	svc, cfg, done, err := newService(c)
	if err != nil {
		return err
	}
	defer done()

	up, err := extract.ReadFile(c.Args().First(), cfg.MaxUploadBytes)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.ExtractTimeout)
	defer cancel()

	bar := newOCRBar()
	r, err := svc.AnalyzeFile(ctx, up, service.Options{
		FilterStopWords: c.Bool("stopwords"),
		Language:        c.String("lang"),
		OnProgress:      bar.set,
	})
	bar.finish()
	if err != nil {
		return err
	}
	return render(c, r)
}

func urlAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return usageErr(c, "expected exactly one URL")
	}
	svc, cfg, done, err := newService(c)
	if err != nil {
		return err
	}
	defer done()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, cfg.FetchTimeout)
	defer cancel()

	spinner := progressbar.NewOptions(-1,
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription(color.CyanString("Fetching page")),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionClearOnFinish(),
	)
	stopSpin := make(chan struct{})
	go func() {
		t := time.NewTicker(100 * time.Millisecond)
		defer t.Stop()
		for {
			select {
			case <-stopSpin:
				return
			case <-t.C:
				_ = spinner.Add(1)
			}
		}
	}()

	r, err := svc.AnalyzeURL(ctx, c.Args().First(), service.Options{FilterStopWords: c.Bool("stopwords")})
	close(stopSpin)
	_ = spinner.Finish()
	if err != nil {
		return err
	}
	return render(c, r)
}

// ocrBar draws a progress bar once OCR starts reporting. Files that never
// need OCR print nothing.
type ocrBar struct {
	bar *progressbar.ProgressBar
}

func newOCRBar() *ocrBar { return &ocrBar{} }

func (b *ocrBar) set(percent int) {
	if b.bar == nil {
		b.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription(color.BlueString("Recognising text")),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "█",
				SaucerHead:    "█",
				SaucerPadding: "░",
				BarStart:      "[",
				BarEnd:        "]",
			}),
			progressbar.OptionEnableColorCodes(true),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetRenderBlankState(true),
		)
	}
	_ = b.bar.Set(percent)
}

func (b *ocrBar) finish() {
	if b.bar != nil {
		_ = b.bar.Finish()
		_, _ = os.Stderr.WriteString("\n")
	}
}
