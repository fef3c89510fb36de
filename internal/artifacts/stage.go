package artifacts

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Stage identifies one step of the pipeline.
type Stage int

const (
	StageColorEdit Stage = iota + 1
	StageTranscribe
	StageGenerateChapters
	StageExtractChapters
	StageSelectTitle
	StageEditDescription
	StageConfirm
	StageUpload
)

var stageNames = map[Stage]string{
	StageColorEdit:        "color_edit",
	StageTranscribe:       "transcribe",
	StageGenerateChapters: "generate_chapters",
	StageExtractChapters:  "extract_chapters_and_titles",
	StageSelectTitle:      "select_title",
	StageEditDescription:  "edit_description",
	StageConfirm:          "confirm",
	StageUpload:           "upload",
}

var titleCaser = cases.Title(language.English)

// Stages returns every stage in execution order.
func Stages() []Stage {
	return []Stage{
		StageColorEdit,
		StageTranscribe,
		StageGenerateChapters,
		StageExtractChapters,
		StageSelectTitle,
		StageEditDescription,
		StageConfirm,
		StageUpload,
	}
}

func (s Stage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return "unknown"
}

// Number is the 1-based position of the stage.
func (s Stage) Number() int {
	return int(s)
}

// Label is the human readable stage name, e.g. "Color Edit".
func (s Stage) Label() string {
	return titleCaser.String(strings.ReplaceAll(s.String(), "_", " "))
}

// Outputs lists the files whose presence marks the stage complete. The
// confirmation gate has no artifact of its own.
func (s Stage) Outputs() []string {
	switch s {
	case StageColorEdit:
		return []string{ColorEdited}
	case StageTranscribe:
		return []string{Transcript}
	case StageGenerateChapters:
		return []string{ChaptersJSON}
	case StageExtractChapters:
		return []string{ChaptersText, Titles}
	case StageSelectTitle:
		return []string{FinalTitle}
	case StageEditDescription:
		return []string{Description}
	case StageUpload:
		return []string{UploadReceipt}
	default:
		return nil
	}
}
