package web

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"uploadflow/internal/artifacts"
	"uploadflow/internal/chapters"
	"uploadflow/internal/logging"
	"uploadflow/internal/notifications"
	"uploadflow/internal/pipeline"
	"uploadflow/internal/services"
	"uploadflow/internal/session"
)

const noTitlesPlaceholder = "No titles were generated"

// optional credential uploads and the artifact each one is stored as.
var credentialFields = []struct {
	field string
	name  string
}{
	{field: "client_secrets", name: artifacts.ClientSecrets},
	{field: "token_pickle", name: artifacts.Token},
	{field: "thumbnail", name: artifacts.Thumbnail},
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, "index.html", map[string]any{
		"Extensions": s.cfg.Web.AllowedExtensions,
	})
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithContext(r.Context(), s.logger)
	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes())
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.redirect(w, r, "/", fmt.Sprintf("Upload exceeds the %d MB limit", s.cfg.Web.MaxUploadMB))
			return
		}
		s.redirect(w, r, "/", "No video file provided")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	video, header, err := r.FormFile("video_file")
	if err != nil || header.Filename == "" {
		s.redirect(w, r, "/", "No video file provided")
		return
	}
	defer video.Close()
	if !s.allowedExtension(header.Filename) {
		s.redirect(w, r, "/", "Invalid file type. Allowed: "+strings.Join(s.cfg.Web.AllowedExtensions, ", "))
		return
	}

	sess, err := s.sessions.Create(r.Context(), header.Filename)
	if err != nil {
		logger.Error("create session failed", logging.Error(err))
		s.redirect(w, r, "/", "Could not create an upload session")
		return
	}
	ctx := services.WithSessionID(r.Context(), sess.ID)
	logger = logging.WithContext(ctx, s.logger)

	if err := s.storeUploads(r, sess, video); err != nil {
		logger.Error("store upload failed", logging.Error(err))
		if delErr := s.sessions.Delete(ctx, sess.ID); delErr != nil {
			logger.Warn("discard session failed", logging.Error(delErr))
		}
		s.redirect(w, r, "/", "Could not save the uploaded files")
		return
	}

	logger.Info("video uploaded",
		logging.String(logging.FieldEventType, "upload_received"),
		logging.String("original_name", header.Filename),
	)
	s.signer.setCookie(w, sessionCookie, sess.ID, s.cfg.SessionTTL())
	http.Redirect(w, r, "/process", http.StatusSeeOther)
}

func (s *Server) allowedExtension(filename string) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	return ext != "" && slices.Contains(s.cfg.Web.AllowedExtensions, ext)
}

func (s *Server) storeUploads(r *http.Request, sess session.Session, video multipart.File) error {
	if err := saveStream(video, artifacts.Path(sess.Dir, artifacts.InputVideo)); err != nil {
		return err
	}
	if key := strings.TrimSpace(r.FormValue("openai_api_key")); key != "" {
		if err := os.WriteFile(artifacts.Path(sess.Dir, artifacts.OpenAIKey), []byte(key), 0o600); err != nil {
			return fmt.Errorf("write %s: %w", artifacts.OpenAIKey, err)
		}
	}
	for _, cred := range credentialFields {
		file, header, err := r.FormFile(cred.field)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				continue
			}
			return fmt.Errorf("read %s: %w", cred.field, err)
		}
		if header.Filename == "" {
			file.Close()
			continue
		}
		err = saveStream(file, artifacts.Path(sess.Dir, cred.name))
		file.Close()
		if err != nil {
			return err
		}
	}
	return nil
}

func saveStream(src io.Reader, dst string) error {
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(dst), err)
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("write %s: %w", filepath.Base(dst), err)
	}
	return out.Close()
}

// currentSession resolves the cookie's session, redirecting home when there
// is none.
func (s *Server) currentSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	id, ok := s.signer.readCookie(r, sessionCookie)
	if !ok {
		s.redirect(w, r, "/", "No active upload session")
		return session.Session{}, false
	}
	sess, err := s.sessions.Resolve(r.Context(), id)
	if err != nil {
		clearCookie(w, sessionCookie)
		s.redirect(w, r, "/", "No active upload session")
		return session.Session{}, false
	}
	return sess, true
}

func (s *Server) job(sess session.Session) pipeline.Job {
	job := pipeline.Job{WorkDir: sess.Dir}
	if data, err := os.ReadFile(artifacts.Path(sess.Dir, artifacts.OpenAIKey)); err == nil {
		if key := strings.TrimSpace(string(data)); key != "" {
			job.Env = []string{"OPENAI_API_KEY=" + key}
		}
	}
	return job
}

func (s *Server) handleProcessForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(w, r)
	if !ok {
		return
	}
	state, err := artifacts.Scan(sess.Dir)
	if err != nil {
		s.redirect(w, r, "/", "No active upload session")
		return
	}
	s.render(w, r, "process.html", map[string]any{
		"SessionID": sess.ID,
		"Status":    state.Status(),
	})
}

func (s *Server) handleProcess(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(w, r)
	if !ok {
		return
	}
	ctx := services.WithSessionID(r.Context(), sess.ID)
	logger := logging.WithContext(ctx, s.logger)

	unlock, err := s.sessions.Lock(sess)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			s.redirect(w, r, "/process", "This session is already being processed")
			return
		}
		logger.Error("lock session failed", logging.Error(err))
		s.redirect(w, r, "/", "Processing failed: "+err.Error())
		return
	}
	defer unlock()

	job := s.job(sess)
	job.SkipColorEdit = r.FormValue("skip_color_edit") != ""

	runner, flush := s.runner(ctx)
	outcomes, err := runner.Prepare(ctx, job)
	flush()
	if err != nil {
		logger.Error("processing failed", logging.Error(err))
		s.notify(ctx, notifications.EventStageFailed, failurePayload(outcomes, err))
		s.redirect(w, r, "/", "Processing failed: "+err.Error())
		return
	}
	if ran(outcomes) {
		s.notify(ctx, notifications.EventProcessingCompleted, notifications.Payload{"video": sess.ID})
	}
	http.Redirect(w, r, "/select-title", http.StatusSeeOther)
}

func (s *Server) handleSelectTitleForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(w, r)
	if !ok {
		return
	}
	titles, err := chapters.LoadTitles(sess.Dir)
	if err != nil || len(titles) == 0 {
		titles = []string{noTitlesPlaceholder}
	}
	s.render(w, r, "select_title.html", map[string]any{
		"Titles": titles,
	})
}

func (s *Server) handleSelectTitle(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(w, r)
	if !ok {
		return
	}
	logger := logging.WithContext(services.WithSessionID(r.Context(), sess.ID), s.logger)
	if err := pipeline.WriteTitle(sess.Dir, r.FormValue("title")); err != nil {
		logger.Error("save title failed", logging.Error(err))
		s.redirect(w, r, "/select-title", "Could not save the title")
		return
	}
	if err := pipeline.SeedDescription(sess.Dir); err != nil {
		logger.Warn("seed description failed", logging.Error(err))
	}
	http.Redirect(w, r, "/edit-description", http.StatusSeeOther)
}

func (s *Server) handleEditDescriptionForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(w, r)
	if !ok {
		return
	}
	description, err := pipeline.ReadDescription(sess.Dir)
	if err != nil {
		description = ""
	}
	s.render(w, r, "edit_description.html", map[string]any{
		"Description": description,
	})
}

func (s *Server) handleEditDescription(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(w, r)
	if !ok {
		return
	}
	if err := pipeline.WriteDescription(sess.Dir, r.FormValue("description")); err != nil {
		logging.WithContext(services.WithSessionID(r.Context(), sess.ID), s.logger).
			Error("save description failed", logging.Error(err))
		s.redirect(w, r, "/edit-description", "Could not save the description")
		return
	}
	http.Redirect(w, r, "/confirm", http.StatusSeeOther)
}

func (s *Server) handleConfirmForm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(w, r)
	if !ok {
		return
	}
	title, err := pipeline.ReadTitle(sess.Dir)
	if err != nil {
		s.redirect(w, r, "/select-title", "Select a title first")
		return
	}
	description, _ := pipeline.ReadDescription(sess.Dir)
	_, thumbErr := os.Stat(artifacts.Path(sess.Dir, artifacts.Thumbnail))
	s.render(w, r, "confirm.html", map[string]any{
		"Title":        title,
		"Description":  description,
		"HasThumbnail": thumbErr == nil,
	})
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(w, r)
	if !ok {
		return
	}
	ctx := services.WithSessionID(r.Context(), sess.ID)
	logger := logging.WithContext(ctx, s.logger)

	unlock, err := s.sessions.Lock(sess)
	if err != nil {
		if errors.Is(err, session.ErrBusy) {
			s.redirect(w, r, "/confirm", "This session is already being processed")
			return
		}
		logger.Error("lock session failed", logging.Error(err))
		s.redirect(w, r, "/download", "Upload failed: "+err.Error())
		return
	}
	defer unlock()

	runner, flush := s.runner(ctx)
	outcome, err := runner.Run(ctx, artifacts.StageUpload, s.job(sess))
	flush()
	if err != nil {
		logger.Error("upload failed", logging.Error(err))
		s.notify(ctx, notifications.EventStageFailed, failurePayload([]pipeline.Outcome{outcome}, err))
		s.redirect(w, r, "/download", "Upload failed: "+err.Error())
		return
	}
	if outcome.Status == pipeline.StatusSkipped {
		s.redirect(w, r, "/download", "Video was already uploaded")
		return
	}
	if err := s.sessions.MarkUploaded(ctx, sess.ID); err != nil {
		logger.Warn("record upload in index failed", logging.Error(err))
	}
	title, _ := pipeline.ReadTitle(sess.Dir)
	s.notify(ctx, notifications.EventUploadCompleted, notifications.Payload{"title": title})
	s.redirect(w, r, "/download", "Video successfully uploaded!")
}

func ran(outcomes []pipeline.Outcome) bool {
	for _, outcome := range outcomes {
		if outcome.Status == pipeline.StatusCompleted {
			return true
		}
	}
	return false
}

func failurePayload(outcomes []pipeline.Outcome, err error) notifications.Payload {
	payload := notifications.Payload{"source": "web", "error": services.Details(err).Message}
	if n := len(outcomes); n > 0 {
		payload["stage"] = outcomes[n-1].Stage.Label()
	}
	return payload
}

type downloadEntry struct {
	Name    string
	URL     string
	Present bool
}

func (s *Server) handleDownloads(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.currentSession(w, r)
	if !ok {
		return
	}
	state, err := artifacts.Scan(sess.Dir)
	if err != nil {
		s.redirect(w, r, "/", "No active upload session")
		return
	}
	files := make([]downloadEntry, 0, len(artifacts.Downloadable))
	for _, name := range artifacts.Downloadable {
		files = append(files, downloadEntry{
			Name:    name,
			URL:     "/download/" + sess.ID + "/" + name,
			Present: state.Has(name),
		})
	}
	s.render(w, r, "download.html", map[string]any{
		"SessionID": sess.ID,
		"Files":     files,
		"Status":    state.Status(),
	})
}

func (s *Server) handleDownloadFile(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("session")
	name := r.PathValue("file")
	if session.ValidateID(id) != nil || !artifacts.IsDownloadable(name) {
		s.redirect(w, r, "/download", "File not found")
		return
	}
	path := artifacts.Path(filepath.Join(s.sessions.Root(), id), name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		s.redirect(w, r, "/download", "File not found")
		return
	}
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	http.ServeFile(w, r, path)
}
