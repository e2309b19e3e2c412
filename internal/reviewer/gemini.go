package reviewer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/smallbiznis/reviewmeter/internal/config"
	"github.com/smallbiznis/reviewmeter/internal/observability/metrics"
	"github.com/smallbiznis/reviewmeter/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

const systemInstruction = `You review a single git commit diff.
Judge correctness, style consistency, readability, performance or security risks and maintainability.
Respond with JSON only: "summary" is at most two short lines about this diff,
"overall_score" is a number from 0 to 100. Do not add other fields.`

// generator is the model call, split out so the guards can be tested
// without a network.
type generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type geminiGenerator struct {
	model *genai.GenerativeModel
}

func (g *geminiGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}
	var sb strings.Builder
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				sb.WriteString(string(text))
			}
		}
		break
	}
	return sb.String(), nil
}

type unavailableGenerator struct{}

func (unavailableGenerator) Generate(context.Context, string) (string, error) {
	return "", ErrReviewerUnavailable
}

// Guarded wraps a generator with the diff and output guards.
type Guarded struct {
	gen          generator
	log          *zap.Logger
	metrics      *metrics.Metrics
	maxDiffBytes int
}

type Param struct {
	fx.In

	Lifecycle fx.Lifecycle
	Config    config.Config
	Log       *zap.Logger
	Metrics   *metrics.Metrics `optional:"true"`
}

// NewGemini builds a Gemini-backed reviewer. Without GEMINI_API_KEY every
// review fails with ErrReviewerUnavailable, which the job runner records
// as a per-item failure.
func NewGemini(p Param) (Reviewer, error) {
	log := p.Log.Named("reviewer")
	cfg := p.Config.Review

	if strings.TrimSpace(cfg.GeminiAPIKey) == "" {
		log.Warn("GEMINI_API_KEY not set, reviews will fail")
		return newGuarded(unavailableGenerator{}, log, p.Metrics, cfg.MaxDiffBytes), nil
	}

	client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	p.Lifecycle.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})

	model := client.GenerativeModel(cfg.Model)
	model.SetTemperature(0.2)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"summary": {
				Type:        genai.TypeString,
				Description: "Overall review summary, at most two lines.",
			},
			"overall_score": {
				Type:        genai.TypeNumber,
				Description: "Overall quality score from 0 to 100.",
			},
		},
		Required: []string{"summary", "overall_score"},
	}
	model.SystemInstruction = &genai.Content{
		Parts: []genai.Part{genai.Text(systemInstruction)},
	}

	return newGuarded(&geminiGenerator{model: model}, log, p.Metrics, cfg.MaxDiffBytes), nil
}

func newGuarded(gen generator, log *zap.Logger, m *metrics.Metrics, maxDiffBytes int) *Guarded {
	return &Guarded{gen: gen, log: log, metrics: m, maxDiffBytes: maxDiffBytes}
}

func (g *Guarded) Review(ctx context.Context, diff string) (Result, error) {
	ctx, span := otel.Tracer("reviewmeter/reviewer").Start(ctx, "reviewer.review")
	defer span.End()
	span.SetAttributes(attribute.Int("review.input_bytes", len(diff)))

	start := time.Now()
	result, err := g.review(ctx, diff)
	outcome := "ok"
	if err != nil {
		outcome = reviewOutcome(err)
		span.RecordError(tracing.SafeError(err))
		span.SetStatus(codes.Error, outcome)
	}
	g.metrics.RecordReview(ctx, outcome, time.Since(start))
	return result, err
}

func (g *Guarded) review(ctx context.Context, diff string) (Result, error) {
	if err := ValidateDiff(diff); err != nil {
		return Result{}, err
	}
	raw, err := g.gen.Generate(ctx, TrimDiff(diff, g.maxDiffBytes))
	if err != nil {
		return Result{}, err
	}
	result, err := ParseResult(raw)
	if err != nil {
		g.log.Debug("model output rejected", zap.Error(err), zap.Int("output_bytes", len(raw)))
		return Result{}, err
	}
	return result, nil
}

func reviewOutcome(err error) string {
	switch {
	case errors.Is(err, ErrInvalidDiff):
		return "invalid_diff"
	case errors.Is(err, ErrMalformedResult):
		return "malformed"
	case errors.Is(err, ErrReviewerUnavailable):
		return "unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
