package extract

type Job struct {
	Data     []byte
	FileName string
	MIMEType string

	// Language is the OCR language code used if the extractor falls back to
	// text recognition. Empty means the default.
	Language   string
	OnProgress ProgressFunc
}

type Result struct {
	Text     string            `json:"text"`
	Method   string            `json:"method"`
	FileType string            `json:"fileType"`
	MIMEType string            `json:"mimeType"`
	Language string            `json:"language,omitempty"`
	Pages    int               `json:"pages,omitempty"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Progress reports p to the job's callback, if any.
func (j Job) Progress(p int) {
	if j.OnProgress != nil {
		j.OnProgress(p)
	}
}
