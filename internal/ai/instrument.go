package ai

import (
	"context"
	"time"

	"fableweaver/internal/observability"

	"go.opentelemetry.io/otel/attribute"
)

type instrumented struct {
	next    Generator
	timeout time.Duration
}

func withInstrumentation(g Generator, timeout time.Duration) Generator {
	return &instrumented{next: g, timeout: timeout}
}

func (i *instrumented) Name() string { return i.next.Name() }

func (i *instrumented) Generate(ctx context.Context, req Request) (string, error) {
	span, ctx := observability.NewSpan(ctx, "ai."+string(req.Operation))
	defer span.End()
	span.AddAttributes(
		attribute.String("ai.provider", i.next.Name()),
		attribute.Int("ai.prompt_chars", len(req.System)+len(req.User)),
	)

	ctx, cancel := withTimeout(ctx, i.timeout)
	defer cancel()

	start := time.Now()
	out, err := i.next.Generate(ctx, req)
	observability.ObserveAI(i.next.Name(), string(req.Operation), start, err)
	if err != nil {
		span.SetError(err)
		return "", err
	}
	span.AddAttributes(attribute.Int("ai.completion_chars", len(out)))
	return out, nil
}
