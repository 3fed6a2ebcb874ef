package normalize

import (
	"crypto/sha256"

	"github.com/clariona/mediawatch/internal/types"
)

// Fingerprint computes the §4.1 deterministic 256-bit digest used as the
// dedup probe key: platform + the first of {source-native id, url, or
// normalized text} that is present. Grounded on the teacher's content-hash
// approach to mention identity (internal/beads content-hash columns,
// internal/idgen's sha256-based hash IDs), generalized from base36 issue
// IDs to a raw digest since this key is never displayed to an operator.
func Fingerprint(m *types.Mention) [32]byte {
	h := sha256.New()
	h.Write([]byte(m.Platform))
	h.Write([]byte{0})

	switch {
	case m.SourceID != "":
		h.Write([]byte("id:"))
		h.Write([]byte(m.SourceID))
	case m.URL != "":
		h.Write([]byte("url:"))
		h.Write([]byte(m.URL))
	default:
		h.Write([]byte("text:"))
		h.Write([]byte(NormalizeText(m.Text)))
	}

	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}
