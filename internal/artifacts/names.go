package artifacts

import "path/filepath"

const (
	InputVideo       = "input_video.mp4"
	ColorEdited      = "output.mp4"
	ColorEditSkipped = "color_edit_skipped.txt"
	Transcript       = "output.srt"
	ChaptersJSON     = "chapters_and_suggested_titles.json"
	ChaptersText     = "chapters.txt"
	Titles           = "titles.json"
	FinalTitle       = "final_title.txt"
	Description      = "description.txt"
	Thumbnail        = "thumbnail.png"
	OpenAIKey        = "openai_api_key.txt"
	ClientSecrets    = "client_secrets.json"
	Token            = "token.pickle"
	UploadReceipt    = "upload_complete.txt"
)

// Downloadable lists the artifacts offered for download, in display order.
var Downloadable = []string{ColorEdited, Transcript, ChaptersJSON, Description}

// IsDownloadable reports whether name may be served to a client.
func IsDownloadable(name string) bool {
	for _, candidate := range Downloadable {
		if candidate == name {
			return true
		}
	}
	return false
}

// Path joins dir and name.
func Path(dir, name string) string {
	return filepath.Join(dir, name)
}
