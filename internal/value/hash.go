package value

import (
	"crypto/sha256"
	"encoding/hex"

	"github.com/pkg/errors"
)

// Domain prefixes for content-addressed digests. The version suffix leaves
// room for changing the encoding later.
const (
	DomainSnapshot = "marbles/snapshot/v1"
	DomainFrames   = "marbles/frames/v1"
)

// Hash computes SHA256(domain || 0x00 || data) as lowercase hex.
func Hash(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Digest canonically encodes v and hashes it under domain.
func Digest(domain string, v any) (string, error) {
	data, err := MarshalCanonical(v)
	if err != nil {
		return "", errors.Wrap(err, "digest")
	}
	return Hash(domain, data), nil
}
