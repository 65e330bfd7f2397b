package tasks

import (
	"hash/fnv"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/99souls/fortitude/engine/models"
)

// Fingerprint computes the stable dedup hash for a gap, §4.4:
// hash(gap_type ‖ normalize(file_path) ‖ normalize(description)).
// Grounded on the resource manager's own FNV-1a hashKey helper.
func Fingerprint(gapType models.GapType, filePath, description string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(string(gapType)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(normalizePath(filePath)))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(normalizeText(description)))
	return strconv.FormatUint(h.Sum64(), 16)
}

// FingerprintExternal computes a fingerprint for a directly submitted
// external research request, keyed on its query text alone.
func FingerprintExternal(query string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte("external"))
	_, _ = h.Write([]byte{0})
	_, _ = h.Write([]byte(normalizeText(query)))
	return strconv.FormatUint(h.Sum64(), 16)
}

func normalizePath(p string) string {
	return filepath.ToSlash(strings.ToLower(strings.TrimSpace(p)))
}

func normalizeText(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	return strings.Join(fields, " ")
}
