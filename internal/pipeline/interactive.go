package pipeline

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"uploadflow/internal/artifacts"
	"uploadflow/internal/fileutil"
	"uploadflow/internal/services"
)

// WriteTitle persists the chosen title verbatim.
func WriteTitle(dir, title string) error {
	if err := fileutil.WriteFileAtomic(artifacts.Path(dir, artifacts.FinalTitle), []byte(title), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", artifacts.FinalTitle, err)
	}
	return nil
}

// ReadTitle returns the persisted title exactly as it was written.
func ReadTitle(dir string) (string, error) {
	data, err := os.ReadFile(artifacts.Path(dir, artifacts.FinalTitle))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", services.Wrap(services.ErrNotFound, artifacts.StageSelectTitle.String(), "read title",
				"no title has been selected", err)
		}
		return "", fmt.Errorf("read %s: %w", artifacts.FinalTitle, err)
	}
	return string(data), nil
}

// WriteDescription persists the description verbatim, including an empty one.
func WriteDescription(dir, text string) error {
	if err := fileutil.WriteFileAtomic(artifacts.Path(dir, artifacts.Description), []byte(text), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", artifacts.Description, err)
	}
	return nil
}

// SeedDescription copies the extracted chapter text into description.txt.
func SeedDescription(dir string) error {
	data, err := os.ReadFile(artifacts.Path(dir, artifacts.ChaptersText))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return services.Wrap(services.ErrNotFound, artifacts.StageEditDescription.String(), "seed description",
				"chapters have not been extracted", err)
		}
		return fmt.Errorf("read %s: %w", artifacts.ChaptersText, err)
	}
	return WriteDescription(dir, string(data))
}

// ReadDescription returns description.txt, or an empty string when absent.
func ReadDescription(dir string) (string, error) {
	data, err := os.ReadFile(artifacts.Path(dir, artifacts.Description))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", nil
		}
		return "", fmt.Errorf("read %s: %w", artifacts.Description, err)
	}
	return string(data), nil
}
