package plaintext

import (
	"context"
	"regexp"
	"strings"

	"github.com/toricodesthings/text-metrics-service/internal/apperr"
	"github.com/toricodesthings/text-metrics-service/internal/extract"
)

// LaTeXExtractor reduces LaTeX sources to the prose a reader would see.
type LaTeXExtractor struct {
	maxBytes int64
}

func NewLaTeX(maxBytes int64) *LaTeXExtractor { return &LaTeXExtractor{maxBytes: maxBytes} }

func (e *LaTeXExtractor) Name() string       { return "document/latex" }
func (e *LaTeXExtractor) MaxFileSize() int64 { return e.maxBytes }
func (e *LaTeXExtractor) SupportedTypes() []string {
	return []string{"application/x-tex", "text/x-tex"}
}
func (e *LaTeXExtractor) SupportedExtensions() []string { return []string{".tex", ".latex"} }

func (e *LaTeXExtractor) Extract(ctx context.Context, job extract.Job) (extract.Result, error) {
	if err := ctx.Err(); err != nil {
		return extract.Result{}, err
	}
	raw, err := Decode(job.Data)
	if err != nil {
		return extract.Result{}, apperr.Wrap(apperr.KindRead, e.Name(), "could not decode file as text", err)
	}
	return extract.Result{Text: stripLaTeX(raw), Method: "native", FileType: e.Name(), MIMEType: job.MIMEType}, nil
}

var (
	texComment     = regexp.MustCompile(`(?m)(^|[^\\])%.*$`)
	texDisplayMath = regexp.MustCompile(`(?s)\$\$.*?\$\$|\\\[.*?\\\]`)
	texInlineMath  = regexp.MustCompile(`\$[^$]*\$`)
	texMathEnv     = regexp.MustCompile(`(?s)\\begin\{(equation|align|gather|multline|eqnarray|displaymath|math)\*?\}.*?\\end\{(equation|align|gather|multline|eqnarray|displaymath|math)\*?\}`)
	texDropArg     = regexp.MustCompile(`\\(label|ref|eqref|pageref|cite[a-z]*|includegraphics|usepackage|documentclass|bibliography|bibliographystyle|input|include|url|begin|end|vspace|hspace)\*?(\[[^\]]*\])?(\{[^{}]*\})?`)
	texKeepArg     = regexp.MustCompile(`\\[a-zA-Z]+\*?(\[[^\]]*\])?\{([^{}]*)\}`)
	texCommand     = regexp.MustCompile(`\\[a-zA-Z]+\*?`)
	texEscaped     = regexp.MustCompile(`\\([%$&#_{}])`)
	texSpaces      = regexp.MustCompile(`[^\S\n]+`)
	texBlankLines  = regexp.MustCompile(`\n{3,}`)
)

// stripLaTeX drops the preamble, comments, math and markup-only commands,
// and keeps the argument of formatting commands such as \section or \emph.
func stripLaTeX(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	if i := strings.Index(s, `\begin{document}`); i >= 0 {
		s = s[i+len(`\begin{document}`):]
		if j := strings.Index(s, `\end{document}`); j >= 0 {
			s = s[:j]
		}
	}

	s = texComment.ReplaceAllString(s, "$1")
	s = strings.ReplaceAll(s, `\\`, "\n")
	s = strings.ReplaceAll(s, `\$`, "\x00")
	s = texMathEnv.ReplaceAllString(s, "")
	s = texDisplayMath.ReplaceAllString(s, "")
	s = texInlineMath.ReplaceAllString(s, "")
	s = texDropArg.ReplaceAllString(s, "")
	// Nested formatting unwraps one level per pass.
	for i := 0; i < 4; i++ {
		next := texKeepArg.ReplaceAllString(s, "$2")
		if next == s {
			break
		}
		s = next
	}
	s = texCommand.ReplaceAllString(s, "")
	s = texEscaped.ReplaceAllString(s, "$1")
	s = strings.NewReplacer("{", "", "}", "", "~", " ", "\x00", "$").Replace(s)

	s = texSpaces.ReplaceAllString(s, " ")
	lines := strings.Split(s, "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}
	s = texBlankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.TrimSpace(s)
}
