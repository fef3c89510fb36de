package pipeline

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"uploadflow/internal/artifacts"
	"uploadflow/internal/config"
	"uploadflow/internal/logging"
	"uploadflow/internal/services"
	"uploadflow/internal/toolexec"
)

// Status is the result classification of one stage attempt.
type Status string

const (
	StatusSkipped   Status = "skipped"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Outcome reports what happened to a stage.
type Outcome struct {
	Stage  artifacts.Stage
	Status Status
	Reason string
}

// Job describes the directory a run operates in and the per-run inputs.
type Job struct {
	// WorkDir receives every artifact. Required.
	WorkDir string
	// Input is the source video. Empty means the uploaded input_video.mp4
	// inside WorkDir.
	Input string
	// SkipColorEdit substitutes the input video for the color-edited output.
	SkipColorEdit bool
	// Republish runs the upload stage even when a receipt already exists.
	Republish bool
	// Env is appended to the environment of every external tool.
	Env []string
}

func (j Job) input() string {
	if strings.TrimSpace(j.Input) != "" {
		return j.Input
	}
	return artifacts.Path(j.WorkDir, artifacts.InputVideo)
}

// video resolves the file later stages consume. An explicit skip request
// wins over an existing color-edited output.
func (j Job) video(state artifacts.State) (string, error) {
	if j.SkipColorEdit {
		return j.input(), nil
	}
	return state.VideoFor(j.Input)
}

// Phase marks a point in a stage's lifecycle reported to observers.
type Phase string

const (
	PhaseStarted   Phase = "started"
	PhaseSkipped   Phase = "skipped"
	PhaseCompleted Phase = "completed"
	PhaseFailed    Phase = "failed"
)

// Event is delivered to an Observer as stages progress.
type Event struct {
	Stage artifacts.Stage
	Phase Phase
	Err   error
}

// Observer receives stage events, e.g. to print console banners.
type Observer func(Event)

// handler performs one automated stage.
type handler interface {
	Execute(ctx context.Context, r *Runner, job Job, state artifacts.State) error
}

// Runner executes automated stages against a working directory.
type Runner struct {
	exec      toolexec.Runner
	tools     config.Tools
	threshold string
	logger    *slog.Logger
	stdout    io.Writer
	stderr    io.Writer
	observer  Observer
	handlers  map[artifacts.Stage]handler
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOutput directs child process output.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(r *Runner) {
		r.stdout = stdout
		r.stderr = stderr
	}
}

// WithObserver registers a stage event callback.
func WithObserver(observer Observer) Option {
	return func(r *Runner) {
		r.observer = observer
	}
}

// WithVolumeThreshold overrides the configured color edit threshold.
func WithVolumeThreshold(threshold string) Option {
	return func(r *Runner) {
		if strings.TrimSpace(threshold) != "" {
			r.threshold = strings.TrimSpace(threshold)
		}
	}
}

// NewRunner builds a Runner from configuration and a tool executor.
func NewRunner(cfg *config.Config, exec toolexec.Runner, opts ...Option) *Runner {
	r := &Runner{
		exec:      exec,
		tools:     cfg.Tools,
		threshold: cfg.ColorEdit.VolumeThreshold,
		logger:    logging.NewNop(),
		handlers: map[artifacts.Stage]handler{
			artifacts.StageColorEdit:        colorEditStage{},
			artifacts.StageTranscribe:       transcribeStage{},
			artifacts.StageGenerateChapters: generateChaptersStage{},
			artifacts.StageExtractChapters:  extractChaptersStage{},
			artifacts.StageUpload:           uploadStage{},
		},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// PrepareStages are the automated stages that precede title selection.
var PrepareStages = []artifacts.Stage{
	artifacts.StageColorEdit,
	artifacts.StageTranscribe,
	artifacts.StageGenerateChapters,
	artifacts.StageExtractChapters,
}

// Prepare runs stages one through four in order, stopping at the first failure.
func (r *Runner) Prepare(ctx context.Context, job Job) ([]Outcome, error) {
	outcomes := make([]Outcome, 0, len(PrepareStages))
	for _, stage := range PrepareStages {
		outcome, err := r.Run(ctx, stage, job)
		outcomes = append(outcomes, outcome)
		if err != nil {
			return outcomes, err
		}
	}
	return outcomes, nil
}

// Run executes a single automated stage in job.WorkDir.
func (r *Runner) Run(ctx context.Context, stage artifacts.Stage, job Job) (Outcome, error) {
	outcome := Outcome{Stage: stage}
	h, ok := r.handlers[stage]
	if !ok {
		err := services.Wrap(services.ErrValidation, stage.String(), "run", "stage is not automated", nil)
		outcome.Status = StatusFailed
		outcome.Reason = err.Error()
		return outcome, err
	}

	stageCtx := services.WithStage(ctx, stage.String())
	logger := logging.WithContext(stageCtx, r.logger).With(logging.String(logging.FieldWorkDir, job.WorkDir))

	state, err := artifacts.Scan(job.WorkDir)
	if err != nil {
		return r.fail(logger, outcome, err)
	}

	if r.shouldSkip(stage, job, state) {
		logger.Info("stage skipped",
			logging.String(logging.FieldEventType, "stage_skip"),
			logging.String("reason", "output already present"),
		)
		r.notify(Event{Stage: stage, Phase: PhaseSkipped})
		outcome.Status = StatusSkipped
		return outcome, nil
	}

	r.notify(Event{Stage: stage, Phase: PhaseStarted})
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))
	started := time.Now()

	if err := h.Execute(stageCtx, r, job, state); err != nil {
		removeFreshOutputs(stage, state)
		return r.fail(logger, outcome, err)
	}
	if err := verifyOutputs(stage, job); err != nil {
		removeFreshOutputs(stage, state)
		return r.fail(logger, outcome, err)
	}

	logger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("elapsed", time.Since(started)),
	)
	r.notify(Event{Stage: stage, Phase: PhaseCompleted})
	outcome.Status = StatusCompleted
	return outcome, nil
}

func (r *Runner) shouldSkip(stage artifacts.Stage, job Job, state artifacts.State) bool {
	switch {
	case stage == artifacts.StageUpload && job.Republish:
		return false
	case stage == artifacts.StageColorEdit && job.SkipColorEdit:
		return markerNames(job)
	}
	return state.Completed(stage)
}

// markerNames reports whether the skip marker already records job's input.
// An existing output.mp4 does not satisfy a skip request.
func markerNames(job Job) bool {
	recorded, err := artifacts.ReadSkipMarker(job.WorkDir)
	if err != nil || recorded == "" {
		return false
	}
	abs, err := filepath.Abs(job.input())
	return err == nil && abs == recorded
}

func (r *Runner) fail(logger *slog.Logger, outcome Outcome, err error) (Outcome, error) {
	outcome.Status = StatusFailed
	outcome.Reason = strings.TrimSpace(services.Details(err).Message)
	if services.IsCancellation(err) {
		logger.Info("stage interrupted",
			logging.String(logging.FieldEventType, "stage_cancelled"),
			logging.Error(err),
		)
	} else {
		attrs := []logging.Attr{logging.Error(err), logging.String("error_message", outcome.Reason)}
		if code, ok := toolexec.ExitCode(err); ok {
			attrs = append(attrs, logging.Int("exit_code", code))
		}
		logging.ErrorWithContext(logger, "stage failed", "stage_failure", attrs...)
	}
	r.notify(Event{Stage: outcome.Stage, Phase: PhaseFailed, Err: err})
	return outcome, err
}

func (r *Runner) notify(event Event) {
	if r.observer != nil {
		r.observer(event)
	}
}

// invoke runs a configured tool inside the job's working directory.
func (r *Runner) invoke(ctx context.Context, job Job, tool string, args ...string) error {
	name, prefix := r.tools.Argv(tool)
	return r.exec.Run(ctx, toolexec.Command{
		Dir:    job.WorkDir,
		Name:   name,
		Args:   append(prefix, args...),
		Env:    job.Env,
		Stdout: r.stdout,
		Stderr: r.stderr,
	})
}

func verifyOutputs(stage artifacts.Stage, job Job) error {
	after, err := artifacts.Scan(job.WorkDir)
	if err != nil {
		return err
	}
	if after.Completed(stage) {
		return nil
	}
	missing := make([]string, 0, len(stage.Outputs()))
	for _, name := range stage.Outputs() {
		if !after.Has(name) {
			missing = append(missing, name)
		}
	}
	return services.Wrap(services.ErrExternalTool, stage.String(), "verify output",
		fmt.Sprintf("%s was not produced", strings.Join(missing, ", ")), nil)
}

// removeFreshOutputs deletes outputs created by a failed attempt so the stage
// is not mistaken for complete on the next run.
func removeFreshOutputs(stage artifacts.Stage, before artifacts.State) {
	for _, name := range stage.Outputs() {
		if before.Has(name) {
			continue
		}
		_ = os.Remove(before.Path(name))
	}
}
