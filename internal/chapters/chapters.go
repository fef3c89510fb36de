// Package chapters reads the chapter generator's JSON document and persists
// the chapter text and suggested titles for the interactive stages.
package chapters

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"uploadflow/internal/artifacts"
	"uploadflow/internal/fileutil"
	"uploadflow/internal/services"
)

const (
	chaptersKey = "chapters"
	titlesKey   = "suggested_titles"
)

// Result holds the chapter listing and the ordered title suggestions.
type Result struct {
	Chapters string
	Titles   []string
}

// Extract reads path and returns its chapters and suggested titles.
func Extract(path string) (Result, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, services.Wrap(services.ErrNotFound, artifacts.StageExtractChapters.String(), "read", filepath.Base(path)+" is missing", err)
		}
		return Result{}, fmt.Errorf("read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a chapter document. Absent or mistyped fields yield an empty
// chapter string or title list; only a document that is not JSON at all is
// rejected.
func Parse(data []byte) (Result, error) {
	if !gjson.ValidBytes(data) {
		return Result{}, services.Wrap(services.ErrValidation, artifacts.StageExtractChapters.String(), "parse", "chapters document is not valid JSON", nil)
	}
	var result Result
	if value := gjson.GetBytes(data, chaptersKey); value.Type == gjson.String {
		result.Chapters = value.String()
	}
	result.Titles = titlesFrom(gjson.GetBytes(data, titlesKey))
	return result, nil
}

func titlesFrom(value gjson.Result) []string {
	titles := []string{}
	if !value.IsArray() {
		return titles
	}
	value.ForEach(func(_, item gjson.Result) bool {
		if item.Type == gjson.String {
			titles = append(titles, item.String())
		}
		return true
	})
	return titles
}

// Save writes chapters.txt and titles.json into dir.
func Save(dir string, result Result) error {
	doc := []byte("[]")
	for _, title := range result.Titles {
		var err error
		doc, err = sjson.SetBytes(doc, "-1", title)
		if err != nil {
			return fmt.Errorf("encode titles: %w", err)
		}
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, artifacts.ChaptersText), []byte(result.Chapters), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", artifacts.ChaptersText, err)
	}
	if err := fileutil.WriteFileAtomic(filepath.Join(dir, artifacts.Titles), doc, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", artifacts.Titles, err)
	}
	return nil
}

// Load reads back what Save wrote.
func Load(dir string) (Result, error) {
	text, err := os.ReadFile(filepath.Join(dir, artifacts.ChaptersText))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Result{}, services.Wrap(services.ErrNotFound, "", "load", artifacts.ChaptersText+" is missing", err)
		}
		return Result{}, fmt.Errorf("read %s: %w", artifacts.ChaptersText, err)
	}
	titles, err := LoadTitles(dir)
	if err != nil {
		return Result{}, err
	}
	return Result{Chapters: string(text), Titles: titles}, nil
}

// LoadTitles reads titles.json from dir.
func LoadTitles(dir string) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(dir, artifacts.Titles))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, services.Wrap(services.ErrNotFound, "", "load", artifacts.Titles+" is missing", err)
		}
		return nil, fmt.Errorf("read %s: %w", artifacts.Titles, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, services.Wrap(services.ErrValidation, "", "load", artifacts.Titles+" is not valid JSON", nil)
	}
	return titlesFrom(gjson.ParseBytes(data)), nil
}
