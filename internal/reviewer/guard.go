package reviewer

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	godiff "github.com/sourcegraph/go-diff/diff"
)

// ValidateDiff accepts only unified diffs with at least one hunk.
func ValidateDiff(diff string) error {
	if strings.TrimSpace(diff) == "" {
		return fmt.Errorf("%w: empty", ErrInvalidDiff)
	}
	files, err := godiff.ParseMultiFileDiff([]byte(diff))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDiff, err)
	}
	for _, f := range files {
		if len(f.Hunks) > 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: no hunks", ErrInvalidDiff)
}

// TrimDiff cuts diff to at most maxBytes on a line boundary.
func TrimDiff(diff string, maxBytes int) string {
	if maxBytes <= 0 || len(diff) <= maxBytes {
		return diff
	}
	cut := diff[:maxBytes]
	if idx := strings.LastIndexByte(cut, '\n'); idx > 0 {
		cut = cut[:idx+1]
	}
	return cut
}

// ParseResult decodes model output and rejects anything outside the schema.
func ParseResult(raw string) (Result, error) {
	raw = strings.TrimSpace(raw)
	raw = strings.TrimPrefix(raw, "```json")
	raw = strings.TrimPrefix(raw, "```")
	raw = strings.TrimSuffix(raw, "```")
	raw = strings.TrimSpace(raw)

	var payload struct {
		Summary *string  `json:"summary"`
		Score   *float64 `json:"overall_score"`
	}
	if err := json.Unmarshal([]byte(raw), &payload); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResult, err)
	}
	if payload.Summary == nil || strings.TrimSpace(*payload.Summary) == "" {
		return Result{}, fmt.Errorf("%w: missing summary", ErrMalformedResult)
	}
	if payload.Score == nil || math.IsNaN(*payload.Score) || *payload.Score < 0 || *payload.Score > 100 {
		return Result{}, fmt.Errorf("%w: score out of range", ErrMalformedResult)
	}
	return Result{Summary: strings.TrimSpace(*payload.Summary), Score: *payload.Score}, nil
}
