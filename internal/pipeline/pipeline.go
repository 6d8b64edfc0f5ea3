package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/irharvest/internal/model"
)

// Step is one transition of the acquisition state machine.
//
// Do advances run to Stage(). Problems confined to one seed page or one
// link are recorded in run.Errors and Do returns nil; a returned error
// means the target cannot continue and moves it to the failed state.
type Step interface {
	Do(ctx context.Context, run *Run) error

	// Name returns the step's name for logging purposes.
	Name() string

	// Stage is the state the run reaches when Do succeeds.
	Stage() model.Stage
}

// Skipper is implemented by optional steps. A skipped step leaves the
// run's stage unchanged.
type Skipper interface {
	Skip(run *Run) bool
}

// Pipeline executes steps in order for one target.
type Pipeline struct {
	steps  []Step
	logger *slog.Logger
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// New creates a new Pipeline with the given options.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{
		steps: make([]Step, 0),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// AddStep appends a step to the pipeline.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends multiple steps to the pipeline.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in sequence. Cancellation is checked before each
// step; steps handle their own timeouts. On the first error the run moves
// to StageFailed, the error is recorded and returned.
func (p *Pipeline) Execute(ctx context.Context, run *Run) error {
	p.logger.Debug("pipeline started",
		"company", run.Target.Name,
		"steps", p.StepNames(),
	)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			p.logger.Warn("pipeline cancelled",
				"step", step.Name(),
				"company", run.Target.Name,
				"reason", err,
			)
			p.fail(run, step.Stage(), model.NewKindError(model.ErrKindNetwork, "", err))
			return err
		}

		if sk, ok := step.(Skipper); ok && sk.Skip(run) {
			p.logger.Debug("skipping step",
				"step", step.Name(),
				"company", run.Target.Name,
			)
			continue
		}

		p.logger.Debug("executing step",
			"step", step.Name(),
			"company", run.Target.Name,
		)

		if err := step.Do(ctx, run); err != nil {
			p.logger.Error("step failed",
				"step", step.Name(),
				"company", run.Target.Name,
				"error", err,
			)
			p.fail(run, step.Stage(), err)
			return err
		}

		run.Stage = step.Stage()
	}

	p.logger.Debug("pipeline finished",
		"company", run.Target.Name,
		"stage", run.Stage,
		"steps", p.StepCount(),
	)
	return nil
}

func (p *Pipeline) fail(run *Run, stage model.Stage, err error) {
	run.AddError(stage, err)
	run.Stage = model.StageFailed
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
