package textstats

// Metrics is the result object handed back to callers after a successful
// extraction or a direct text submission.
type Metrics struct {
	WordCount                int                `json:"wordCount"`
	CharCountExcludingSpaces int                `json:"charCountExcludingSpaces"`
	CharCountIncludingSpaces int                `json:"charCountIncludingSpaces"`
	RepeatedWordsAnalysis    *FrequencyAnalysis `json:"repeatedWordsAnalysis,omitempty"`
}

// Compute returns nil when text has nothing to count.
func Compute(text string, filterStopWords, withFrequency bool) *Metrics {
	c := Count(text)
	if c == nil {
		return nil
	}
	m := &Metrics{
		WordCount:                c.WordCount,
		CharCountExcludingSpaces: c.CharCountExcludingSpaces,
		CharCountIncludingSpaces: c.CharCountIncludingSpaces,
	}
	if withFrequency {
		fa := Analyze(text, filterStopWords)
		m.RepeatedWordsAnalysis = &fa
	}
	return m
}
