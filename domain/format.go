package domain

import (
	"github.com/h2non/filetype"
)

// Format describes the detected media format of a photo payload
type Format struct {
	ID   string `json:"id"`
	Mime string `json:"mime"`
}

var unknownFormat = Format{ID: "bin", Mime: "application/octet-stream"}

// DetectFormat sniffs the format of the given payload. Unknown content
// is mapped to a generic binary format rather than rejected, the remote
// service is trusted to deliver images.
func DetectFormat(content []byte) Format {
	kind, err := filetype.Match(content)
	if err != nil || kind == filetype.Unknown {
		return unknownFormat
	}
	return Format{ID: kind.Extension, Mime: kind.MIME.Value}
}
