// Package analysis runs one framework assessment: build the prompt, invoke
// the model, decode the response, and degrade to a NOT_EVALUATED result when
// any of that fails.
package analysis

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/dshills/regalign/internal/framework"
	"github.com/dshills/regalign/internal/prompt"
	"github.com/dshills/regalign/internal/schema"
)

// Invoker is the model call the runner depends on. *llm.Client satisfies it.
type Invoker interface {
	Invoke(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// Runner assesses documents against single frameworks.
type Runner struct {
	model Invoker
	log   *zap.Logger
}

// NewRunner returns a Runner that calls model.
func NewRunner(model Invoker, log *zap.Logger) *Runner {
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{model: model, log: log.Named("analysis")}
}

// Run assesses doc against def. It always returns a result unless ctx is
// done: invocation and decode failures produce a degraded result.
func (r *Runner) Run(ctx context.Context, def framework.Definition, doc schema.ExtractedDocument) (schema.Result, error) {
	log := r.log.With(zap.String("framework", string(def.Code)))

	user, err := prompt.Analysis(def.Template, doc)
	if err != nil {
		return nil, fmt.Errorf("analysis: %s: %w", def.Code, err)
	}

	raw, err := r.model.Invoke(ctx, prompt.System, user)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
			return nil, fmt.Errorf("analysis: %s: %w", def.Code, err)
		}
		log.Warn("model call failed; framework not evaluated", zap.Error(err))
		return framework.Failed(def, err), nil
	}

	res, err := framework.Decode(def, raw)
	if err != nil {
		log.Warn("undecodable response; framework not evaluated",
			zap.Error(err), zap.Int("response_chars", len(raw)))
		return framework.Degraded(def, raw, err), nil
	}

	if w := res.Common().Warnings; len(w) > 0 {
		log.Debug("validation warnings", zap.Strings("warnings", w))
	}
	log.Info("framework evaluated",
		zap.Int("score", res.Score()),
		zap.Int("critical_gaps", res.CriticalGapsCount()))
	return res, nil
}
