// Package checksum computes content hashes.
package checksum

import (
	"crypto/sha1" //nolint:gosec // git object ids are sha1
	"encoding/hex"
	"strconv"
)

// BlobSHA returns the git object id a blob with the given content would have.
func BlobSHA(data []byte) string {
	h := sha1.New() //nolint:gosec
	h.Write([]byte("blob " + strconv.Itoa(len(data)) + "\x00"))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}
