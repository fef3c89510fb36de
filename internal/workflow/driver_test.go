package workflow

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"uploadflow/internal/artifacts"
	"uploadflow/internal/config"
	"uploadflow/internal/logging"
	"uploadflow/internal/services"
	"uploadflow/internal/testsupport"
	"uploadflow/internal/toolexec"
)

type harness struct {
	cfg     *config.Config
	tools   *testsupport.FakeTools
	driver  *Driver
	video   string
	workDir string
	out     *strings.Builder
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cfg := testsupport.NewConfig(t, testsupport.WithStubbedBinaries())
	tools := testsupport.NewFakeTools()
	video := testsupport.WriteText(t, t.TempDir(), "raw.mp4", "raw")
	return &harness{
		cfg:     cfg,
		tools:   tools,
		driver:  NewDriver(cfg, tools, logging.NewNop()),
		video:   video,
		workDir: t.TempDir(),
		out:     &strings.Builder{},
	}
}

func (h *harness) run(t *testing.T, input string, mutate func(*Options)) (Result, error) {
	t.Helper()
	opts := Options{
		Video:   h.video,
		WorkDir: h.workDir,
		In:      strings.NewReader(input),
		Out:     h.out,
	}
	if mutate != nil {
		mutate(&opts)
	}
	return h.driver.Run(context.Background(), opts)
}

func TestRunConfirmedUpload(t *testing.T) {
	h := newHarness(t)
	res, err := h.run(t, "2\n\ny\n", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Uploaded || res.Cancelled {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Title != "Title B" {
		t.Fatalf("title = %q", res.Title)
	}
	if h.tools.CallsTo("yt_upload") != 1 {
		t.Fatal("expected one upload")
	}
	upload := h.tools.Calls()[len(h.tools.Calls())-1]
	if got := upload.Args[len(upload.Args)-1]; got != "Title B" {
		t.Fatalf("uploader title = %q", got)
	}
	if got := testsupport.ReadText(t, h.workDir, artifacts.FinalTitle); got != "Title B" {
		t.Fatalf("final_title.txt = %q", got)
	}
	if !strings.HasPrefix(testsupport.ReadText(t, h.workDir, artifacts.Description), "00:00 Intro") {
		t.Fatal("description should be seeded with chapters")
	}
	for _, banner := range []string{"=== Step 1: Color Edit ===", "=== Step 5: Choose and edit a title ===", "Proceed with upload? (y/N): "} {
		if !strings.Contains(h.out.String(), banner) {
			t.Fatalf("output missing %q:\n%s", banner, h.out.String())
		}
	}
}

func TestRunYesSkipsConfirmation(t *testing.T) {
	h := newHarness(t)
	res, err := h.run(t, "1\n\n", func(o *Options) { o.Yes = true })
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Uploaded {
		t.Fatal("expected upload with --yes")
	}
	if strings.Contains(h.out.String(), "Proceed with upload?") {
		t.Fatal("confirmation prompt should be bypassed")
	}
}

func TestRunDeclinedConfirmation(t *testing.T) {
	for _, answer := range []string{"n\n", "yes\n", ""} {
		h := newHarness(t)
		res, err := h.run(t, "1\n\n"+answer, nil)
		if err != nil {
			t.Fatalf("answer %q: Run: %v", answer, err)
		}
		if !res.Cancelled || res.Uploaded {
			t.Fatalf("answer %q: unexpected result %+v", answer, res)
		}
		if h.tools.CallsTo("yt_upload") != 0 {
			t.Fatalf("answer %q: uploader must not run", answer)
		}
		if !strings.Contains(h.out.String(), "Upload cancelled.") {
			t.Fatalf("answer %q: missing cancellation notice", answer)
		}
	}
}

func TestRunCustomTitleAndEditedDescription(t *testing.T) {
	h := newHarness(t)
	h.cfg.Tools.Editor = "fake-editor --wait"
	h.tools.SetEffect("fake-editor", func(cmd toolexec.Command, args []string) error {
		if len(args) != 2 || args[0] != "--wait" || args[1] != artifacts.Description {
			t.Errorf("unexpected editor args %v", args)
		}
		return os.WriteFile(filepath.Join(cmd.Dir, args[1]), []byte("Edited by hand"), 0o644)
	})

	res, err := h.run(t, "0\nMy Title\n\ny\n", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Title != "My Title" {
		t.Fatalf("title = %q", res.Title)
	}
	if testsupport.ReadText(t, h.workDir, artifacts.Description) != "Edited by hand" {
		t.Fatal("editor changes should be kept")
	}
	if !strings.Contains(h.out.String(), "Edited by hand") {
		t.Fatal("final description should be echoed")
	}
}

func TestRunWithoutSuggestedTitles(t *testing.T) {
	h := newHarness(t)
	h.tools.SetEffect("yt_chapter_maker", func(cmd toolexec.Command, _ []string) error {
		return os.WriteFile(filepath.Join(cmd.Dir, "chapters_and_suggested_titles.json"), []byte("{}"), 0o644)
	})

	res, err := h.run(t, "0\nMy Title\n\ny\n", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Uploaded || res.Title != "My Title" {
		t.Fatalf("unexpected result %+v", res)
	}
	upload := h.tools.Calls()[len(h.tools.Calls())-1]
	if got := upload.Args[len(upload.Args)-1]; got != "My Title" {
		t.Fatalf("uploader title = %q", got)
	}
}

func TestRunEditorFailureKeepsDescription(t *testing.T) {
	h := newHarness(t)
	h.cfg.Tools.Editor = "fake-editor"
	h.tools.FailWith("fake-editor", 1)

	res, err := h.run(t, "1\nOverride\ny\n", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Uploaded || res.Title != "Override" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestRunResumesAfterToolFailure(t *testing.T) {
	h := newHarness(t)
	h.tools.FailWith("yt_chapter_maker", 4)

	_, err := h.run(t, "", nil)
	if code, ok := toolexec.ExitCode(err); !ok || code != 4 {
		t.Fatalf("expected exit code 4, got %v", err)
	}
	if !testsupport.Exists(h.workDir, artifacts.Transcript) {
		t.Fatal("completed stages should leave their artifacts")
	}

	h.tools = testsupport.NewFakeTools()
	h.driver = NewDriver(h.cfg, h.tools, logging.NewNop())
	if _, err := h.run(t, "3\n\ny\n", nil); err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if h.tools.CallsTo("color_edit") != 0 || h.tools.CallsTo("whisper") != 0 {
		t.Fatal("completed stages must not re-run")
	}
	if h.tools.CallsTo("yt_chapter_maker") != 1 {
		t.Fatal("failed stage should run again")
	}
}

func TestRunSkipColorEdit(t *testing.T) {
	h := newHarness(t)
	if _, err := h.run(t, "1\n\ny\n", func(o *Options) { o.SkipColorEdit = true }); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if h.tools.CallsTo("color_edit") != 0 {
		t.Fatal("color edit must be skipped")
	}
	upload := h.tools.Calls()[len(h.tools.Calls())-1]
	if upload.Args[1] != h.video {
		t.Fatalf("expected original video to be uploaded, got %s", upload.Args[1])
	}
}

func TestRunAbortedAtTitlePrompt(t *testing.T) {
	h := newHarness(t)
	res, err := h.run(t, "", nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Cancelled {
		t.Fatal("end of input at the title prompt should cancel cleanly")
	}
	if testsupport.Exists(h.workDir, artifacts.FinalTitle) {
		t.Fatal("no title should be persisted")
	}
}

func TestRunInterruptedAtTitlePrompt(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := h.driver.Run(ctx, Options{
		Video:   h.video,
		WorkDir: h.workDir,
		In:      strings.NewReader("1\n\ny\n"),
		Out:     h.out,
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected the interruption to propagate, got %v", err)
	}
	if res.Cancelled || res.Uploaded {
		t.Fatalf("unexpected result %+v", res)
	}
	if h.tools.CallsTo("yt_upload") != 0 {
		t.Fatal("uploader must not run after an interrupt")
	}
}

func TestRunMissingPrerequisite(t *testing.T) {
	h := newHarness(t)
	h.cfg.Tools.Whisper = "definitely-not-installed-whisper"

	_, err := h.run(t, "", nil)
	if !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if len(h.tools.Calls()) != 0 {
		t.Fatal("no stage may run when a prerequisite is missing")
	}
	if !strings.Contains(h.out.String(), "definitely-not-installed-whisper is not installed") {
		t.Fatalf("missing diagnostic:\n%s", h.out.String())
	}
}

func TestRunMissingVideo(t *testing.T) {
	h := newHarness(t)
	_, err := h.run(t, "", func(o *Options) { o.Video = filepath.Join(t.TempDir(), "nope.mp4") })
	if !errors.Is(err, services.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
