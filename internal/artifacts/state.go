package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"uploadflow/internal/services"
)

// State is a snapshot of the artifacts present in a working directory.
type State struct {
	dir     string
	present map[string]bool
}

// Scan lists dir once and records which regular files exist.
func Scan(dir string) (State, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return State{}, services.Wrap(services.ErrNotFound, "", "scan", fmt.Sprintf("working directory %q does not exist", dir), err)
		}
		return State{}, fmt.Errorf("scan %s: %w", dir, err)
	}
	present := make(map[string]bool, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		present[entry.Name()] = true
	}
	return State{dir: dir, present: present}, nil
}

// Dir returns the scanned working directory.
func (s State) Dir() string {
	return s.dir
}

// Path returns the absolute location of name inside the working directory.
func (s State) Path(name string) string {
	return filepath.Join(s.dir, name)
}

// Has reports whether the named artifact existed at scan time.
func (s State) Has(name string) bool {
	return s.present[name]
}

// ColorEditSkipped reports whether the skip marker is present.
func (s State) ColorEditSkipped() bool {
	return s.Has(ColorEditSkipped)
}

// Completed reports whether stage needs no further work.
func (s State) Completed(stage Stage) bool {
	switch stage {
	case StageColorEdit:
		return s.Has(ColorEdited) || s.ColorEditSkipped()
	case StageConfirm:
		return s.Has(UploadReceipt)
	}
	outputs := stage.Outputs()
	if len(outputs) == 0 {
		return false
	}
	for _, name := range outputs {
		if !s.Has(name) {
			return false
		}
	}
	return true
}

// Next returns the first stage whose output is missing. The boolean is false
// once every stage is complete.
func (s State) Next() (Stage, bool) {
	for _, stage := range Stages() {
		if !s.Completed(stage) {
			return stage, true
		}
	}
	return 0, false
}

// VideoFor returns the video later stages operate on: the color-edited output,
// or the original input when color editing was skipped. When input is empty
// the absolute path recorded in the skip marker is used, falling back to the
// uploaded input video for markers holding anything else.
func (s State) VideoFor(input string) (string, error) {
	if !s.ColorEditSkipped() {
		return s.Path(ColorEdited), nil
	}
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	recorded, err := ReadSkipMarker(s.dir)
	if err != nil {
		return "", err
	}
	if filepath.IsAbs(recorded) {
		return recorded, nil
	}
	return s.Path(InputVideo), nil
}

// StatusEntry is one row of the progress report.
type StatusEntry struct {
	Key     string `json:"key" yaml:"key"`
	Label   string `json:"label" yaml:"label"`
	Present bool   `json:"present" yaml:"present"`
}

// Status reports progress in pipeline order.
func (s State) Status() []StatusEntry {
	return []StatusEntry{
		{Key: "color_edit", Label: "Color edit", Present: s.Completed(StageColorEdit)},
		{Key: "transcription", Label: "Transcription", Present: s.Has(Transcript)},
		{Key: "chapters", Label: "Chapters", Present: s.Has(ChaptersJSON)},
		{Key: "titles_extracted", Label: "Titles extracted", Present: s.Has(Titles)},
		{Key: "title_selected", Label: "Title selected", Present: s.Has(FinalTitle)},
		{Key: "description", Label: "Description", Present: s.Has(Description)},
		{Key: "uploaded", Label: "Uploaded", Present: s.Has(UploadReceipt)},
	}
}

// StatusMap is Status keyed by entry key.
func (s State) StatusMap() map[string]bool {
	entries := s.Status()
	out := make(map[string]bool, len(entries))
	for _, entry := range entries {
		out[entry.Key] = entry.Present
	}
	return out
}

// WriteSkipMarker records that color editing was bypassed for input.
func WriteSkipMarker(dir, input string) error {
	abs, err := filepath.Abs(input)
	if err != nil {
		return fmt.Errorf("resolve input path: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, ColorEditSkipped), []byte(abs+"\n"), 0o644); err != nil {
		return fmt.Errorf("write skip marker: %w", err)
	}
	return nil
}

// ReadSkipMarker returns the input path recorded in the skip marker. Markers
// written without content yield an empty string.
func ReadSkipMarker(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, ColorEditSkipped))
	if err != nil {
		return "", fmt.Errorf("read skip marker: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
