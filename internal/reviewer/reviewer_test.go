package reviewer

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const sampleDiff = `diff --git a/main.go b/main.go
index 83db48f..bf269f4 100644
--- a/main.go
+++ b/main.go
@@ -1,3 +1,3 @@
 package main
-func main() {}
+func main() { println("hi") }
`

type fakeGenerator struct {
	output  string
	err     error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.output, f.err
}

func TestValidateDiff(t *testing.T) {
	require.NoError(t, ValidateDiff(sampleDiff))

	for _, input := range []string{"", "   ", "just some prose about code", "diff --git a/x b/x\n"} {
		assert.ErrorIs(t, ValidateDiff(input), ErrInvalidDiff, "input %q", input)
	}
}

func TestParseResult(t *testing.T) {
	res, err := ParseResult("```json\n{\"summary\":\" Adds greeting. \",\"overall_score\":82}\n```")
	require.NoError(t, err)
	assert.Equal(t, "Adds greeting.", res.Summary)
	assert.Equal(t, 82.0, res.Score)

	zero, err := ParseResult(`{"summary":"Empty change","overall_score":0}`)
	require.NoError(t, err)
	assert.Equal(t, 0.0, zero.Score)

	bad := []string{
		`not json`,
		`{"summary":"","overall_score":50}`,
		`{"summary":"ok"}`,
		`{"summary":"ok","overall_score":101}`,
		`{"summary":"ok","overall_score":-1}`,
	}
	for _, raw := range bad {
		_, err := ParseResult(raw)
		assert.ErrorIs(t, err, ErrMalformedResult, raw)
	}
}

func TestTrimDiffKeepsLineBoundary(t *testing.T) {
	trimmed := TrimDiff(sampleDiff, 40)
	assert.True(t, strings.HasSuffix(trimmed, "\n"))
	assert.LessOrEqual(t, len(trimmed), 40)
	assert.Equal(t, sampleDiff, TrimDiff(sampleDiff, 0))
}

func TestGuardedReview(t *testing.T) {
	gen := &fakeGenerator{output: `{"summary":"Prints a greeting","overall_score":74.5}`}
	r := newGuarded(gen, zap.NewNop(), nil, 0)

	res, err := r.Review(context.Background(), sampleDiff)
	require.NoError(t, err)
	assert.Equal(t, 74.5, res.Score)
	require.Len(t, gen.prompts, 1)

	_, err = r.Review(context.Background(), "hello")
	assert.ErrorIs(t, err, ErrInvalidDiff)
	assert.Len(t, gen.prompts, 1, "invalid input must not reach the model")

	gen.output = `{"summary":"x","overall_score":300}`
	_, err = r.Review(context.Background(), sampleDiff)
	assert.ErrorIs(t, err, ErrMalformedResult)
}

func TestUnavailableReviewer(t *testing.T) {
	r := newGuarded(unavailableGenerator{}, zap.NewNop(), nil, 0)
	_, err := r.Review(context.Background(), sampleDiff)
	assert.True(t, errors.Is(err, ErrReviewerUnavailable))
	assert.Equal(t, "unavailable", reviewOutcome(err))
}
