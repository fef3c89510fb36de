package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"uploadflow/internal/artifacts"
	"uploadflow/internal/chapters"
	"uploadflow/internal/config"
	"uploadflow/internal/deps"
	"uploadflow/internal/logging"
	"uploadflow/internal/notifications"
	"uploadflow/internal/pipeline"
	"uploadflow/internal/preflight"
	"uploadflow/internal/prompt"
	"uploadflow/internal/services"
	"uploadflow/internal/toolexec"
)

// Options describes one CLI run.
type Options struct {
	Video           string
	WorkDir         string
	Yes             bool
	SkipColorEdit   bool
	VolumeThreshold string

	// In supplies prompt answers and the editor's terminal input.
	In io.Reader
	// Out receives banners, prompts, and tool output.
	Out io.Writer
}

// Result summarizes a finished run.
type Result struct {
	WorkDir   string
	Title     string
	Uploaded  bool
	Cancelled bool
}

// Driver runs the full pipeline interactively.
type Driver struct {
	cfg      *config.Config
	exec     toolexec.Runner
	logger   *slog.Logger
	notifier notifications.Service
}

// NewDriver constructs a Driver.
func NewDriver(cfg *config.Config, exec toolexec.Runner, logger *slog.Logger) *Driver {
	return &Driver{
		cfg:      cfg,
		exec:     exec,
		logger:   logging.NewComponentLogger(logger, "workflow"),
		notifier: notifications.NewService(cfg),
	}
}

// Run executes every stage for opts.Video. Declining the confirmation or
// ending input at a prompt is not an error: the result reports Cancelled.
func (d *Driver) Run(ctx context.Context, opts Options) (Result, error) {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	con := newConsole(out)

	if err := deps.Require(preflight.Requirements(d.cfg, false)); err != nil {
		con.Failure("Error: %s", services.Details(err).Message)
		return Result{}, err
	}

	video, workDir, err := resolvePaths(opts)
	if err != nil {
		return Result{}, err
	}
	result := Result{WorkDir: workDir}
	ctx = services.WithRequestID(ctx, filepath.Base(workDir))
	logger := logging.WithContext(ctx, d.logger)
	logger.Info("run started",
		logging.String(logging.FieldEventType, "run_start"),
		logging.String("video", video),
		logging.String(logging.FieldWorkDir, workDir),
		logging.Bool("skip_color_edit", opts.SkipColorEdit),
	)

	runner := pipeline.NewRunner(d.cfg, d.exec,
		pipeline.WithLogger(d.logger),
		pipeline.WithOutput(out, out),
		pipeline.WithVolumeThreshold(opts.VolumeThreshold),
		pipeline.WithObserver(stageBanners(con)),
	)
	job := pipeline.Job{
		WorkDir:       workDir,
		Input:         video,
		SkipColorEdit: opts.SkipColorEdit,
		Republish:     true,
	}

	if outcomes, err := runner.Prepare(ctx, job); err != nil {
		d.notifyFailure(ctx, outcomes, err)
		return result, err
	}

	extracted, err := chapters.Load(workDir)
	if err != nil {
		return result, err
	}
	con.Println("Chapters:")
	con.Println(extracted.Chapters)
	con.Println()

	ask := prompt.New(in, out, d.cfg.Prompt.MaxAttempts)

	con.Banner(artifacts.StageSelectTitle.Number(), "Choose and edit a title")
	title, err := ask.SelectTitle(ctx, extracted.Titles)
	if err != nil {
		return cancelled(con, result, err)
	}
	title, err = ask.EditTitle(ctx, title)
	if err != nil {
		return cancelled(con, result, err)
	}
	if err := pipeline.WriteTitle(workDir, title); err != nil {
		return result, err
	}
	result.Title = title

	con.Banner(artifacts.StageEditDescription.Number(), "Create and edit the description")
	description, err := d.editDescription(ctx, con, in, out, workDir, extracted.Chapters)
	if err != nil {
		return result, err
	}

	if !opts.Yes {
		con.Heading("Review Before Upload")
		con.Println("Title:", title)
		con.Println("Description:")
		con.Println(description)
		con.Println()
		ok, err := ask.Confirm(ctx, "Proceed with upload? (y/N): ")
		if err != nil {
			return cancelled(con, result, err)
		}
		if !ok {
			return cancelled(con, result, prompt.ErrAborted)
		}
	}

	if outcome, err := runner.Run(ctx, artifacts.StageUpload, job); err != nil {
		d.notifyFailure(ctx, []pipeline.Outcome{outcome}, err)
		return result, err
	}
	result.Uploaded = true
	d.publish(ctx, notifications.EventUploadCompleted, notifications.Payload{"title": title})
	con.Success("Upload complete: %s", title)
	logger.Info("run completed",
		logging.String(logging.FieldEventType, "run_complete"),
		logging.String("title", title),
	)
	return result, nil
}

// editDescription seeds description.txt with the chapter text, opens the
// editor on it, and returns whatever the file holds afterwards.
func (d *Driver) editDescription(ctx context.Context, con *console, in io.Reader, out io.Writer, workDir, chapterText string) (string, error) {
	if err := pipeline.WriteDescription(workDir, chapterText); err != nil {
		return "", err
	}
	con.Printf("A description file (%s) with chapter markers has been created.\n", artifacts.Description)

	editor := strings.Fields(d.cfg.Tools.Editor)
	if len(editor) > 0 {
		err := d.exec.Run(ctx, toolexec.Command{
			Dir:    workDir,
			Name:   editor[0],
			Args:   append(editor[1:], artifacts.Description),
			Stdin:  in,
			Stdout: out,
			Stderr: out,
		})
		if err != nil {
			if services.IsCancellation(err) {
				return "", err
			}
			logging.WarnWithContext(logging.WithContext(ctx, d.logger), "editor exited with an error; keeping description as written",
				"editor_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "description.txt is used as-is"),
			)
		}
	}

	description, err := pipeline.ReadDescription(workDir)
	if err != nil {
		return "", err
	}
	con.Println("Final description:")
	con.Println(description)
	con.Println()
	return description, nil
}

func (d *Driver) notifyFailure(ctx context.Context, outcomes []pipeline.Outcome, err error) {
	if services.IsCancellation(err) {
		return
	}
	payload := notifications.Payload{"source": "cli", "error": services.Details(err).Message}
	if n := len(outcomes); n > 0 {
		payload["stage"] = outcomes[n-1].Stage.Label()
	}
	d.publish(ctx, notifications.EventStageFailed, payload)
}

func (d *Driver) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if err := d.notifier.Publish(ctx, event, payload); err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, d.logger), "notification failed", "notification_failed",
			logging.String("event", string(event)),
			logging.Error(err),
			logging.String(logging.FieldImpact, "no push message was delivered"),
		)
	}
}

func stageBanners(con *console) pipeline.Observer {
	return func(event pipeline.Event) {
		switch event.Phase {
		case pipeline.PhaseStarted:
			con.Banner(event.Stage.Number(), event.Stage.Label())
		case pipeline.PhaseSkipped:
			con.Banner(event.Stage.Number(), event.Stage.Label())
			con.Notice("%s already exists, skipping.", strings.Join(event.Stage.Outputs(), " and "))
		case pipeline.PhaseCompleted:
			con.Success("%s done.", event.Stage.Label())
		case pipeline.PhaseFailed:
			if !services.IsCancellation(event.Err) {
				con.Failure("%s failed: %v", event.Stage.Label(), event.Err)
			}
		}
	}
}

func cancelled(con *console, result Result, err error) (Result, error) {
	if !errors.Is(err, prompt.ErrAborted) || errors.Is(err, context.Canceled) {
		return result, err
	}
	con.Println("Upload cancelled.")
	result.Cancelled = true
	return result, nil
}

func resolvePaths(opts Options) (string, string, error) {
	if strings.TrimSpace(opts.Video) == "" {
		return "", "", services.Wrap(services.ErrValidation, "", "run", "an input video is required", nil)
	}
	video, err := filepath.Abs(opts.Video)
	if err != nil {
		return "", "", fmt.Errorf("resolve video path: %w", err)
	}
	info, err := os.Stat(video)
	if err != nil || info.IsDir() {
		return "", "", services.Wrap(services.ErrNotFound, "", "run",
			fmt.Sprintf("input video %s does not exist", opts.Video), err)
	}

	workDir := strings.TrimSpace(opts.WorkDir)
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return "", "", fmt.Errorf("determine working directory: %w", err)
		}
	}
	if workDir, err = config.ExpandPath(workDir); err != nil {
		return "", "", err
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return "", "", fmt.Errorf("create working directory: %w", err)
	}
	return video, workDir, nil
}
