package web

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"uploadflow/internal/artifacts"
	"uploadflow/internal/config"
	"uploadflow/internal/logging"
	"uploadflow/internal/session"
	"uploadflow/internal/testsupport"
)

type webHarness struct {
	cfg      *config.Config
	tools    *testsupport.FakeTools
	sessions *session.Manager
	server   *httptest.Server
	client   *http.Client
}

func newWebHarness(t *testing.T, opts ...testsupport.ConfigOption) *webHarness {
	t.Helper()
	cfg := testsupport.NewConfig(t, opts...)
	store := testsupport.MustOpenStore(t, cfg)
	sessions := session.NewManager(cfg.Paths.UploadsRoot, store, cfg.SessionTTL(), logging.NewNop())
	tools := testsupport.NewFakeTools()

	srv, err := New(cfg, sessions, tools, logging.NewNop())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)

	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar: %v", err)
	}
	client := &http.Client{
		Jar: jar,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &webHarness{cfg: cfg, tools: tools, sessions: sessions, server: ts, client: client}
}

func (h *webHarness) do(t *testing.T, req *http.Request) (*http.Response, string) {
	t.Helper()
	resp, err := h.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func (h *webHarness) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, h.server.URL+path, nil)
	if err != nil {
		t.Fatal(err)
	}
	return h.do(t, req)
}

func (h *webHarness) postForm(t *testing.T, path string, values url.Values) (*http.Response, string) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, h.server.URL+path, strings.NewReader(values.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(t, req)
}

func (h *webHarness) upload(t *testing.T, filename string, extra map[string]string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("video_file", filename)
	if err != nil {
		t.Fatal(err)
	}
	part.Write([]byte("raw video"))
	for field, value := range extra {
		if field == "openai_api_key" {
			mw.WriteField(field, value)
			continue
		}
		p, err := mw.CreateFormFile(field, field+".bin")
		if err != nil {
			t.Fatal(err)
		}
		p.Write([]byte(value))
	}
	mw.Close()

	req, err := http.NewRequest(http.MethodPost, h.server.URL+"/upload", &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, _ := h.do(t, req)
	return resp
}

// sessionDir returns the only session directory under the uploads root.
func (h *webHarness) sessionDir(t *testing.T) (string, string) {
	t.Helper()
	entries, err := os.ReadDir(h.cfg.Paths.UploadsRoot)
	if err != nil {
		t.Fatalf("read uploads root: %v", err)
	}
	var dirs []string
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	if len(dirs) != 1 {
		t.Fatalf("expected one session dir, got %v", dirs)
	}
	return dirs[0], filepath.Join(h.cfg.Paths.UploadsRoot, dirs[0])
}

func expectRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %s, got %s", location, got)
	}
}

func TestFullFlow(t *testing.T) {
	h := newWebHarness(t)

	resp := h.upload(t, "clip.MP4", map[string]string{
		"openai_api_key": "sk-test",
		"client_secrets": `{"installed":{}}`,
		"thumbnail":      "png",
	})
	expectRedirect(t, resp, "/process")
	id, dir := h.sessionDir(t)
	if got := testsupport.ReadText(t, dir, artifacts.InputVideo); got != "raw video" {
		t.Fatalf("input video content %q", got)
	}
	if got := testsupport.ReadText(t, dir, artifacts.OpenAIKey); got != "sk-test" {
		t.Fatalf("api key content %q", got)
	}
	for _, name := range []string{artifacts.ClientSecrets, artifacts.Thumbnail} {
		if !testsupport.Exists(dir, name) {
			t.Fatalf("expected %s to be saved", name)
		}
	}

	resp, body := h.get(t, "/process")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "skip_color_edit") {
		t.Fatalf("process form: %d %s", resp.StatusCode, body)
	}

	resp, _ = h.postForm(t, "/process", url.Values{})
	expectRedirect(t, resp, "/select-title")
	for _, name := range []string{artifacts.ColorEdited, artifacts.Transcript, artifacts.ChaptersJSON, artifacts.ChaptersText, artifacts.Titles} {
		if !testsupport.Exists(dir, name) {
			t.Fatalf("expected %s after processing", name)
		}
	}
	for _, cmd := range h.tools.Calls() {
		if cmd.Dir != dir {
			t.Fatalf("tool %s ran in %s, want %s", cmd.Name, cmd.Dir, dir)
		}
		if !slices.Contains(cmd.Env, "OPENAI_API_KEY=sk-test") {
			t.Fatalf("tool %s missing api key env: %v", cmd.Name, cmd.Env)
		}
	}

	resp, body = h.get(t, "/select-title")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Title B") {
		t.Fatalf("select title page: %d %s", resp.StatusCode, body)
	}
	resp, _ = h.postForm(t, "/select-title", url.Values{"title": {"Title B"}})
	expectRedirect(t, resp, "/edit-description")
	if got := testsupport.ReadText(t, dir, artifacts.FinalTitle); got != "Title B" {
		t.Fatalf("final title %q", got)
	}

	resp, body = h.get(t, "/edit-description")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "00:00 Intro") {
		t.Fatalf("description should be seeded from chapters: %s", body)
	}
	resp, _ = h.postForm(t, "/edit-description", url.Values{"description": {"Custom text\n00:00 Intro"}})
	expectRedirect(t, resp, "/confirm")

	resp, body = h.get(t, "/confirm")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Custom text") {
		t.Fatalf("confirm page: %d %s", resp.StatusCode, body)
	}
	resp, _ = h.postForm(t, "/confirm", url.Values{})
	expectRedirect(t, resp, "/download")
	if h.tools.CallsTo("yt_upload") != 1 {
		t.Fatalf("expected one upload, got %d", h.tools.CallsTo("yt_upload"))
	}
	if !testsupport.Exists(dir, artifacts.UploadReceipt) {
		t.Fatal("expected upload receipt")
	}

	_, body = h.get(t, "/download")
	if !strings.Contains(body, "Video successfully uploaded!") {
		t.Fatalf("expected success flash, got %s", body)
	}
	if !strings.Contains(body, "/download/"+id+"/"+artifacts.Transcript) {
		t.Fatalf("expected transcript link, got %s", body)
	}

	resp, body = h.get(t, "/download/"+id+"/"+artifacts.Transcript)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("download status %d", resp.StatusCode)
	}
	if !strings.Contains(resp.Header.Get("Content-Disposition"), "attachment") {
		t.Fatalf("expected attachment disposition, got %q", resp.Header.Get("Content-Disposition"))
	}
	if !strings.Contains(body, "hello") {
		t.Fatalf("unexpected transcript body %q", body)
	}

	// A second confirmation is gated by the receipt.
	resp, _ = h.postForm(t, "/confirm", url.Values{})
	expectRedirect(t, resp, "/download")
	if h.tools.CallsTo("yt_upload") != 1 {
		t.Fatal("receipt should prevent a second upload")
	}
	_, body = h.get(t, "/download")
	if !strings.Contains(body, "already uploaded") {
		t.Fatalf("expected already-uploaded flash, got %s", body)
	}

	stored, err := h.sessions.List(t.Context())
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(stored) != 1 || stored[0].UploadedAt == nil {
		t.Fatalf("expected uploaded session in index, got %+v", stored)
	}
}

func TestUploadRejectsExtension(t *testing.T) {
	h := newWebHarness(t)

	resp := h.upload(t, "notes.txt", nil)
	expectRedirect(t, resp, "/")
	entries, _ := os.ReadDir(h.cfg.Paths.UploadsRoot)
	if len(entries) != 0 {
		t.Fatalf("no session should be created, got %d entries", len(entries))
	}
	_, body := h.get(t, "/")
	if !strings.Contains(body, "Invalid file type") {
		t.Fatalf("expected flash, got %s", body)
	}
	// Flash is shown once.
	_, body = h.get(t, "/")
	if strings.Contains(body, "Invalid file type") {
		t.Fatal("flash should be consumed")
	}
}

func TestPagesRequireSession(t *testing.T) {
	h := newWebHarness(t)
	for _, path := range []string{"/process", "/select-title", "/edit-description", "/confirm", "/download"} {
		resp, _ := h.get(t, path)
		expectRedirect(t, resp, "/")
	}
	_, body := h.get(t, "/")
	if !strings.Contains(body, "No active upload session") {
		t.Fatalf("expected flash, got %s", body)
	}
}

func TestTamperedCookieRejected(t *testing.T) {
	h := newWebHarness(t)
	resp := h.upload(t, "clip.mp4", nil)
	expectRedirect(t, resp, "/process")
	id, _ := h.sessionDir(t)

	u, _ := url.Parse(h.server.URL)
	h.client.Jar.SetCookies(u, []*http.Cookie{{Name: sessionCookie, Value: id, Path: "/"}})
	resp, _ = h.get(t, "/process")
	expectRedirect(t, resp, "/")
}

func TestProcessSkipColorEdit(t *testing.T) {
	h := newWebHarness(t)
	expectRedirect(t, h.upload(t, "clip.mov", nil), "/process")
	_, dir := h.sessionDir(t)

	resp, _ := h.postForm(t, "/process", url.Values{"skip_color_edit": {"1"}})
	expectRedirect(t, resp, "/select-title")
	if h.tools.CallsTo("color_edit") != 0 {
		t.Fatal("color_edit should not run")
	}
	if testsupport.Exists(dir, artifacts.ColorEdited) {
		t.Fatal("output.mp4 should not exist")
	}
	marker, err := artifacts.ReadSkipMarker(dir)
	if err != nil {
		t.Fatalf("ReadSkipMarker: %v", err)
	}
	if marker != artifacts.Path(dir, artifacts.InputVideo) {
		t.Fatalf("marker %q", marker)
	}
	calls := h.tools.Calls()
	for _, cmd := range calls {
		if cmd.Name == "whisper" && cmd.Args[len(cmd.Args)-1] != marker {
			t.Fatalf("whisper should transcribe the input video, got %v", cmd.Args)
		}
	}

	// Re-processing is idempotent.
	h.tools.Reset()
	resp, _ = h.postForm(t, "/process", url.Values{"skip_color_edit": {"1"}})
	expectRedirect(t, resp, "/select-title")
	if len(h.tools.Calls()) != 0 {
		t.Fatalf("expected no tool calls, got %d", len(h.tools.Calls()))
	}
}

func TestProcessToolFailure(t *testing.T) {
	h := newWebHarness(t)
	expectRedirect(t, h.upload(t, "clip.mp4", nil), "/process")
	_, dir := h.sessionDir(t)
	h.tools.FailWith("whisper", 2)

	resp, _ := h.postForm(t, "/process", url.Values{})
	expectRedirect(t, resp, "/")
	if !testsupport.Exists(dir, artifacts.ColorEdited) {
		t.Fatal("completed color edit should be kept")
	}
	if testsupport.Exists(dir, artifacts.Transcript) {
		t.Fatal("failed stage must not leave a transcript")
	}
	_, body := h.get(t, "/")
	if !strings.Contains(body, "Processing failed") {
		t.Fatalf("expected failure flash, got %s", body)
	}
}

func TestProcessBusySession(t *testing.T) {
	h := newWebHarness(t)
	expectRedirect(t, h.upload(t, "clip.mp4", nil), "/process")
	id, dir := h.sessionDir(t)

	unlock, err := h.sessions.Lock(session.Session{ID: id, Dir: dir})
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	defer unlock()

	resp, _ := h.postForm(t, "/process", url.Values{})
	expectRedirect(t, resp, "/process")
	if len(h.tools.Calls()) != 0 {
		t.Fatal("no tool should run while the session is locked")
	}
}

func TestSelectTitleFallback(t *testing.T) {
	h := newWebHarness(t)
	expectRedirect(t, h.upload(t, "clip.mp4", nil), "/process")

	_, body := h.get(t, "/select-title")
	if !strings.Contains(body, noTitlesPlaceholder) {
		t.Fatalf("expected placeholder title, got %s", body)
	}
}

func TestStatusAPI(t *testing.T) {
	h := newWebHarness(t)

	resp, _ := h.get(t, "/api/status/not-a-uuid")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
	resp, _ = h.get(t, "/api/status/0f8fad5b-d9cb-469f-a165-70867728950e")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", resp.StatusCode)
	}

	expectRedirect(t, h.upload(t, "clip.mp4", nil), "/process")
	id, dir := h.sessionDir(t)
	testsupport.WriteText(t, dir, artifacts.ColorEdited, "edited")
	testsupport.WriteText(t, dir, artifacts.Transcript, "subs")

	resp, body := h.get(t, "/api/status/"+id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var status map[string]bool
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !status["color_edit"] || !status["transcription"] || status["chapters"] || status["uploaded"] {
		t.Fatalf("unexpected status %v", status)
	}
	if len(status) != 7 {
		t.Fatalf("expected 7 keys, got %v", status)
	}
}

func TestDownloadWhitelist(t *testing.T) {
	h := newWebHarness(t)
	expectRedirect(t, h.upload(t, "clip.mp4", map[string]string{"openai_api_key": "sk-secret"}), "/process")
	id, dir := h.sessionDir(t)
	testsupport.WriteText(t, dir, artifacts.Description, "desc")

	resp, _ := h.get(t, "/download/"+id+"/"+artifacts.OpenAIKey)
	expectRedirect(t, resp, "/download")
	resp, _ = h.get(t, "/download/"+id+"/"+artifacts.ColorEdited)
	expectRedirect(t, resp, "/download")
	resp, _ = h.get(t, "/download/not-a-uuid/"+artifacts.Description)
	expectRedirect(t, resp, "/download")

	_, body := h.get(t, "/download")
	if !strings.Contains(body, "File not found") {
		t.Fatalf("expected flash, got %s", body)
	}

	resp, body = h.get(t, "/download/"+id+"/"+artifacts.Description)
	if resp.StatusCode != http.StatusOK || body != "desc" {
		t.Fatalf("download: %d %q", resp.StatusCode, body)
	}
}

func TestDeleteSession(t *testing.T) {
	h := newWebHarness(t)
	expectRedirect(t, h.upload(t, "clip.mp4", nil), "/process")
	id, dir := h.sessionDir(t)

	del := func(id string) int {
		req, err := http.NewRequest(http.MethodDelete, h.server.URL+"/api/sessions/"+id, nil)
		if err != nil {
			t.Fatal(err)
		}
		resp, _ := h.do(t, req)
		return resp.StatusCode
	}

	if code := del("not-a-uuid"); code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", code)
	}

	unlock, err := h.sessions.Lock(session.Session{ID: id, Dir: dir})
	if err != nil {
		t.Fatalf("Lock: %v", err)
	}
	if code := del(id); code != http.StatusConflict {
		t.Fatalf("expected 409 while busy, got %d", code)
	}
	unlock()

	if code := del(id); code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", code)
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("session dir should be removed: %v", err)
	}
	if code := del(id); code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", code)
	}
}

func TestHealth(t *testing.T) {
	h := newWebHarness(t, testsupport.WithStubbedBinaries())
	resp, body := h.get(t, "/api/health")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", resp.StatusCode, body)
	}
	var health healthResponse
	if err := json.Unmarshal([]byte(body), &health); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !health.OK || len(health.Dependencies) != 4 || len(health.Checks) != 2 {
		t.Fatalf("unexpected health %+v", health)
	}

	h.cfg.Tools.Uploader = "uploadflow-missing-uploader"
	resp, _ = h.get(t, "/api/health")
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestRequestIDHeader(t *testing.T) {
	h := newWebHarness(t)
	resp, _ := h.get(t, "/")
	if resp.Header.Get("X-Request-ID") == "" {
		t.Fatal("expected request id header")
	}
}
