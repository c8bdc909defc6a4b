package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %s", message(err))
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "textmetrics",
		Usage: "count words and characters and find the most repeated words in text, files and web pages",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "stopwords", Aliases: []string{"s"}, Usage: "leave common stop words out of the frequency analysis"},
			&cli.BoolFlag{Name: "json", Usage: "print the result as JSON"},
			&cli.BoolFlag{Name: "show-text", Usage: "print the extracted text before the metrics"},
			&cli.StringFlag{Name: "log-level", Value: "warn", Usage: "debug, info, warn or error"},
		},
		Commands: []*cli.Command{
			{
				Name:      "count",
				Usage:     "analyse text given as arguments, or read from stdin",
				ArgsUsage: "[text...|-]",
				Action:    countAction,
			},
			{
				Name:      "file",
				Usage:     "extract and analyse a document (txt, md, srt, pdf, docx, xlsx, pptx, odt, epub, csv, tex, html, rtf or an image)",
				ArgsUsage: "<path>",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "lang", Aliases: []string{"l"}, Usage: "OCR language for scanned PDFs and images (eng, spa, fra, deu, ...)"},
				},
				Action: fileAction,
			},
			{
				Name:      "url",
				Usage:     "fetch a web page and analyse its readable text",
				ArgsUsage: "<url>",
				Action:    urlAction,
			},
		},
	}
}

// message picks the user-facing text for failures from the pipeline and the
// raw error for everything else.
func message(err error) string {
	var e *apperr.Error
	if errors.As(err, &e) {
		return apperr.UserMessage(err)
	}
	return err.Error()
}

func usageErr(c *cli.Context, format string, args ...any) error {
	_ = cli.ShowSubcommandHelp(c)
	return fmt.Errorf(format, args...)
}
