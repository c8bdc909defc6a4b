package textstats

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

const topWordsLimit = 15

type WordFrequencyEntry struct {
	Word       string  `json:"word"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
}

type FrequencyAnalysis struct {
	TopWords          []WordFrequencyEntry `json:"topWords"`
	TotalUniqueWords  int                  `json:"totalUniqueWords"`
	MostRepeatedWord  *WordFrequencyEntry  `json:"mostRepeatedWord,omitempty"`
	StopWordsFiltered bool                 `json:"stopWordsFiltered"`
}

// Analyze computes the word-frequency distribution of text. Percentages are
// relative to the tokens left after stop-word filtering, and ties in count
// keep the order in which words first appeared.
func Analyze(text string, filterStopWords bool) FrequencyAnalysis {
	out := FrequencyAnalysis{
		TopWords:          []WordFrequencyEntry{},
		StopWordsFiltered: filterStopWords,
	}

	tokens := Tokenize(text)
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	total := 0

	for _, tok := range tokens {
		if filterStopWords && IsStopWord(tok) {
			continue
		}
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
		total++
	}
	if total == 0 {
		return out
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})

	out.TotalUniqueWords = len(order)
	limit := min(len(order), topWordsLimit)
	for _, w := range order[:limit] {
		c := counts[w]
		out.TopWords = append(out.TopWords, WordFrequencyEntry{
			Word:       w,
			Count:      c,
			Percentage: 100 * float64(c) / float64(total),
		})
	}
	first := out.TopWords[0]
	out.MostRepeatedWord = &first
	return out
}

// Tokenize lowercases text, drops everything but word characters and
// whitespace, and returns the tokens longer than one character.
func Tokenize(text string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' || unicode.IsSpace(r) {
			return r
		}
		if unicode.IsMark(r) {
			return r
		}
		return -1
	}, strings.ToLower(text))

	fields := strings.Fields(cleaned)
	out := fields[:0]
	for _, f := range fields {
		if utf8.RuneCountInString(f) > 1 {
			out = append(out, f)
		}
	}
	return out
}
