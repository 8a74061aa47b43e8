package news

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

// fingerprintDomain separates these digests from any other SHA-256 use.
// Bump the version suffix if the encoding ever changes.
const fingerprintDomain = "incidentfeed/fingerprint/v1"

// Fingerprint returns the stable identity of an item: a hex SHA-256 over a
// length-prefixed encoding of source and url. Title, summary and timestamps
// never contribute.
func Fingerprint(source, url string) string {
	h := sha256.New()
	h.Write([]byte(fingerprintDomain))
	h.Write([]byte{0x00})
	writeField(h, source)
	writeField(h, url)
	return hex.EncodeToString(h.Sum(nil))
}

func writeField(h interface{ Write([]byte) (int, error) }, s string) {
	var n [binary.MaxVarintLen64]byte
	l := binary.PutUvarint(n[:], uint64(len(s)))
	h.Write(n[:l])
	h.Write([]byte(s))
}
