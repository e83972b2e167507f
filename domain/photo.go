package domain

import (
	"encoding/base64"
	"time"

	"github.com/reusee/mmh3"
)

// PhotoID is the unique identifier of a Photo
type PhotoID string

// BinaryHash is the hash of the binary content of a photo, used to
// detect duplicate downloads within one location
type BinaryHash string

func (h BinaryHash) String() string {
	return string(h)
}

func HashOf(content []byte) BinaryHash {
	h := mmh3.New128()
	h.Write(content)
	return BinaryHash(base64.StdEncoding.EncodeToString(h.Sum(nil)))
}

// Photo is the meta-data of one fully downloaded image belonging to
// exactly one Location. The binary payload is stored separately, a
// Photo record only exists once its payload is complete.
type Photo struct {
	ID       PhotoID    `json:"id"`
	Location LocationID `json:"location"`
	Format   Format     `json:"format"`
	Size     int64      `json:"size"`
	Hash     BinaryHash `json:"hash,omitempty"`
	Added    time.Time  `json:"added"`
}
