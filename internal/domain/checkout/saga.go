package checkout

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type compensation struct {
	name string
	undo func(ctx context.Context) error
}

// saga collects the undo action of every completed checkout step.
type saga struct {
	steps []compensation
}

// add registers undo for a step that has just succeeded.
func (s *saga) add(name string, undo func(ctx context.Context) error) {
	s.steps = append(s.steps, compensation{name: name, undo: undo})
}

func (s *saga) len() int {
	return len(s.steps)
}

// rollback runs every registered compensation, newest first. It keeps going
// past failures and returns them joined. Cancellation of ctx does not reach
// the compensations.
func (s *saga) rollback(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)
	lg := zctx.From(ctx)

	var errs error
	for i := len(s.steps) - 1; i >= 0; i-- {
		step := s.steps[i]
		if err := step.undo(ctx); err != nil {
			lg.Error("Compensation failed", zap.String("step", step.name), zap.Error(err))
			errs = multierr.Append(errs, errors.Wrapf(err, "compensate %s", step.name))
			continue
		}
		lg.Debug("Compensated", zap.String("step", step.name))
	}
	s.steps = nil
	return errs
}
