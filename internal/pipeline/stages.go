package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"uploadflow/internal/artifacts"
	"uploadflow/internal/chapters"
	"uploadflow/internal/fileutil"
	"uploadflow/internal/logging"
	"uploadflow/internal/services"
)

type colorEditStage struct{}

func (colorEditStage) Execute(ctx context.Context, r *Runner, job Job, _ artifacts.State) error {
	input := job.input()
	if job.SkipColorEdit {
		if err := artifacts.WriteSkipMarker(job.WorkDir, input); err != nil {
			return err
		}
		logging.WithContext(ctx, r.logger).Info("color edit bypassed",
			logging.String(logging.FieldEventType, "color_edit_skipped"),
			logging.String("input", input),
		)
		return nil
	}
	if err := requireFile(input, artifacts.StageColorEdit); err != nil {
		return err
	}
	return r.invoke(ctx, job, r.tools.ColorEdit,
		"--input", input,
		"--output", artifacts.ColorEdited,
		"--volume_threshold", r.threshold,
	)
}

type transcribeStage struct{}

func (transcribeStage) Execute(ctx context.Context, r *Runner, job Job, state artifacts.State) error {
	video, err := job.video(state)
	if err != nil {
		return err
	}
	if err := requireFile(video, artifacts.StageTranscribe); err != nil {
		return err
	}
	if err := r.invoke(ctx, job, r.tools.Whisper,
		"--output_format", "srt",
		"--task", "transcribe",
		video,
	); err != nil {
		return err
	}
	return collectTranscript(job.WorkDir, video)
}

// collectTranscript moves the transcriber's <stem>.srt into output.srt. The
// transcriber writes into its working directory, though some versions write
// next to the input instead.
func collectTranscript(workDir, video string) error {
	target := artifacts.Path(workDir, artifacts.Transcript)
	stem := strings.TrimSuffix(filepath.Base(video), filepath.Ext(video))
	candidates := []string{filepath.Join(workDir, stem+".srt")}
	if beside := filepath.Join(filepath.Dir(video), stem+".srt"); beside != candidates[0] {
		candidates = append(candidates, beside)
	}
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err != nil {
			continue
		}
		if candidate == target {
			return nil
		}
		if err := fileutil.MoveFile(candidate, target); err != nil {
			return services.Wrap(services.ErrExternalTool, artifacts.StageTranscribe.String(), "collect transcript",
				fmt.Sprintf("move %s to %s", filepath.Base(candidate), artifacts.Transcript), err)
		}
		return nil
	}
	return services.Wrap(services.ErrExternalTool, artifacts.StageTranscribe.String(), "collect transcript",
		fmt.Sprintf("transcriber did not produce %s.srt", stem), nil)
}

type generateChaptersStage struct{}

func (generateChaptersStage) Execute(ctx context.Context, r *Runner, job Job, _ artifacts.State) error {
	return r.invoke(ctx, job, r.tools.ChapterMaker,
		"--input", artifacts.Transcript,
		"--output", artifacts.ChaptersJSON,
	)
}

type extractChaptersStage struct{}

func (extractChaptersStage) Execute(ctx context.Context, r *Runner, job Job, state artifacts.State) error {
	result, err := chapters.Extract(state.Path(artifacts.ChaptersJSON))
	if err != nil {
		return err
	}
	if err := chapters.Save(job.WorkDir, result); err != nil {
		return err
	}
	logging.WithContext(ctx, r.logger).Info("chapters extracted",
		logging.String(logging.FieldEventType, "chapters_extracted"),
		logging.Int("title_count", len(result.Titles)),
		logging.Int("chapter_bytes", len(result.Chapters)),
	)
	return nil
}

type uploadStage struct{}

func (uploadStage) Execute(ctx context.Context, r *Runner, job Job, state artifacts.State) error {
	for _, name := range []string{artifacts.FinalTitle, artifacts.Description, artifacts.Transcript} {
		if !state.Has(name) {
			return services.Wrap(services.ErrNotFound, artifacts.StageUpload.String(), "check inputs",
				fmt.Sprintf("%s is missing", name), nil)
		}
	}
	title, err := ReadTitle(job.WorkDir)
	if err != nil {
		return err
	}
	video, err := job.video(state)
	if err != nil {
		return err
	}
	if err := requireFile(video, artifacts.StageUpload); err != nil {
		return err
	}
	logger := logging.WithContext(ctx, r.logger)
	if !state.Has(artifacts.Thumbnail) {
		logging.WarnWithContext(logger, "thumbnail missing; publishing without one",
			"thumbnail_missing",
			logging.String(logging.FieldErrorHint, "place thumbnail.png in the working directory"),
			logging.String(logging.FieldImpact, "the publisher's default thumbnail is used"),
		)
	}

	if err := r.invoke(ctx, job, r.tools.Uploader,
		"--video", video,
		"--transcript", artifacts.Transcript,
		"--description", artifacts.Description,
		"--thumbnail", artifacts.Thumbnail,
		"--title", title,
	); err != nil {
		return err
	}

	receipt := fmt.Sprintf("uploaded_at=%s\ntitle=%s\nvideo=%s\n",
		time.Now().UTC().Format(time.RFC3339), title, video)
	if err := fileutil.WriteFileAtomic(artifacts.Path(job.WorkDir, artifacts.UploadReceipt), []byte(receipt), 0o644); err != nil {
		return fmt.Errorf("write upload receipt: %w", err)
	}
	return nil
}

func requireFile(path string, stage artifacts.Stage) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, stage.String(), "check inputs",
				fmt.Sprintf("input video %s not found", path), err)
		}
		return fmt.Errorf("stat %s: %w", path, err)
	}
	return nil
}
