package apperr

import (
	"errors"
	"fmt"
)

const allTransportsFailedMsg = "Unable to fetch this webpage. The site may be blocking automated access, " +
	"the fetch services may be temporarily unavailable, the page may require a login, " +
	"or there may be a connectivity problem. Copy the text and paste it directly, " +
	"or save the page and upload it as a file."

// UserMessage returns the one actionable message shown for err.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	var e *Error
	if !errors.As(err, &e) {
		return "Something went wrong while processing your request. Please try again."
	}

	switch e.Kind {
	case KindInvalidURL:
		return "Please enter a valid URL, including http:// or https://."
	case KindInvalidInput:
		if e.Msg != "" {
			return capitalize(e.Msg) + "."
		}
		return "The input is not supported."
	case KindRead:
		return "Could not read the file. Make sure it is a valid text file."
	case KindExtraction:
		if e.Msg != "" {
			return capitalize(e.Msg) + "."
		}
		return "Could not extract text from the file."
	case KindOCR:
		return "Text recognition failed for this PDF. Try a clearer scan or paste the text manually."
	case KindNetwork:
		return "Network error: the page could not be reached. It may block cross-site requests; check your connection or paste the text instead."
	case KindTimeout:
		return "The request timed out. The site may be slow or unavailable; please try again."
	case KindHTTPStatus:
		return statusMessage(e.Status)
	case KindEmptyContent:
		if e.Msg != "" {
			return capitalize(e.Msg) + "."
		}
		return "No readable text was found."
	case KindAllTransportsFailed:
		return allTransportsFailedMsg
	default:
		return "Something went wrong while processing your request. Please try again."
	}
}

func statusMessage(code int) string {
	switch {
	case code == 403:
		return "Access to this page is forbidden (HTTP 403). The site blocks automated access; paste the text or upload the page instead."
	case code == 404:
		return "Page not found (HTTP 404). Check the URL and try again."
	case code == 429:
		return "The site is rate limiting requests (HTTP 429). Wait a moment and try again."
	case code >= 500:
		return fmt.Sprintf("The website returned a server error (HTTP %d). Try again later.", code)
	default:
		return fmt.Sprintf("The website returned an unexpected response (HTTP %d).", code)
	}
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	b := []byte(s)
	if b[0] >= 'a' && b[0] <= 'z' {
		b[0] -= 'a' - 'A'
	}
	return string(b)
}
