package review

import (
	"bytes"
	"encoding/json"
	"regexp"
	"strings"
)

var (
	openingFence = regexp.MustCompile("(?i)^```(?:json)?\\s*")
	closingFence = regexp.MustCompile("(?i)```\\s*$")
)

// Feedback is the decoded result of a feedback request.
type Feedback struct {
	Comments []Comment
	// Unparsable is set when the model answered with something that could
	// not be read as comments. Comments is empty in that case.
	Unparsable bool
	// Raw is the model text after fence stripping.
	Raw string
}

// StripFences removes a leading ``` or ```json marker and a trailing ```
// from model output, then trims surrounding whitespace.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = openingFence.ReplaceAllString(text, "")
	text = closingFence.ReplaceAllString(text, "")
	return strings.TrimSpace(text)
}

// ParseFeedback decodes model output into comments. It never fails: output
// that cannot be decoded yields an empty list with Unparsable set.
// An empty response is a valid empty list.
func ParseFeedback(text string) Feedback {
	cleaned := StripFences(text)
	if cleaned == "" {
		return Feedback{Comments: []Comment{}}
	}

	if comments, ok := decodeComments([]byte(cleaned)); ok {
		return Feedback{Comments: comments, Raw: cleaned}
	}

	// Models sometimes wrap the array in prose. Try the outermost brackets.
	start := strings.IndexByte(cleaned, '[')
	end := strings.LastIndexByte(cleaned, ']')
	if start >= 0 && end > start {
		if comments, ok := decodeComments([]byte(cleaned[start : end+1])); ok {
			return Feedback{Comments: comments, Raw: cleaned}
		}
	}

	return Feedback{Comments: []Comment{}, Unparsable: true, Raw: cleaned}
}

func decodeComments(data []byte) ([]Comment, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, false
	}

	switch data[0] {
	case '[':
		var comments []Comment
		if err := json.Unmarshal(data, &comments); err != nil {
			return nil, false
		}
		if comments == nil {
			comments = []Comment{}
		}
		return comments, true
	case '{':
		var c Comment
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, false
		}
		return []Comment{c}, true
	default:
		return nil, false
	}
}
