// Package review turns a pull request diff into a summary and structured
// line comments using a text-generation model.
package review

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Comment is one piece of line-anchored feedback.
// Line is 1-based and refers to the new side of the diff. A missing or null
// line decodes as 0.
type Comment struct {
	File string `json:"file"`
	Line int    `json:"line"`
	Body string `json:"comment"`
}

// Anchored reports whether the comment names a file and a valid line, so it
// can be attached to the diff.
func (c Comment) Anchored() bool {
	return c.File != "" && c.Line >= 1
}

// UnmarshalJSON accepts the line as an integer, an integral float or a
// numeric string. Models are not consistent about this.
func (c *Comment) UnmarshalJSON(data []byte) error {
	var raw struct {
		File string          `json:"file"`
		Line json.RawMessage `json:"line"`
		Body string          `json:"comment"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	line, err := parseLine(raw.Line)
	if err != nil {
		return err
	}

	c.File = raw.File
	c.Line = line
	c.Body = raw.Body
	return nil
}

func parseLine(raw json.RawMessage) (int, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, nil
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("line %v is not an integer", n)
		}
		return int(n), nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, fmt.Errorf("line has unsupported type: %s", raw)
	}
	v, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("line %q is not a number", s)
	}
	return v, nil
}

// PullRequest identifies the pull request under review.
type PullRequest struct {
	Owner  string
	Repo   string
	Number int
}

func (p PullRequest) String() string {
	return fmt.Sprintf("%s/%s#%d", p.Owner, p.Repo, p.Number)
}
