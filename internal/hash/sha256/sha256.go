// Package sha256 computes content digests for report artifacts.
package sha256

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
)

// Prefix marks digests produced by this package, e.g. in run records.
const Prefix = "sha256:"

// Hasher implements crawler.Hasher using SHA-256.
type Hasher struct {
	prefixed bool
}

// New returns a hasher producing bare hex digests.
func New() *Hasher {
	return &Hasher{}
}

// NewPrefixed returns a hasher whose digests carry the "sha256:" prefix.
func NewPrefixed() *Hasher {
	return &Hasher{prefixed: true}
}

// Hash returns the digest of data.
func (h *Hasher) Hash(data []byte) (string, error) {
	sum := sha256.Sum256(data)
	return h.format(sum[:]), nil
}

// HashReader streams r through the hash and returns its digest.
func (h *Hasher) HashReader(r io.Reader) (string, error) {
	d := sha256.New()
	if _, err := io.Copy(d, r); err != nil {
		return "", fmt.Errorf("hash stream: %w", err)
	}
	return h.format(d.Sum(nil)), nil
}

func (h *Hasher) format(sum []byte) string {
	digest := hex.EncodeToString(sum)
	if h.prefixed {
		return Prefix + digest
	}
	return digest
}
