package runner

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"archmap/internal/safeio"
)

// JSONFingerprint computes a stable hash of any JSON-serializable value.
func JSONFingerprint(v any) string {
	b, _ := json.Marshal(v)
	sum := sha256.Sum256(b)
	return fmt.Sprintf("%x", sum[:])[:16]
}

// FileExists checks if a file exists and is not a directory.
func FileExists(fs *safeio.SafeFS, path string) bool {
	fs = ensureFS(fs)
	fi, err := fs.Stat(path)
	return err == nil && !fi.IsDir()
}

// ReadJSON reads and decodes a JSON artifact into target.
func ReadJSON(fs *safeio.SafeFS, path string, target any) error {
	fs = ensureFS(fs)
	b, err := fs.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, target)
}

func normalizeKey(key string) string {
	return strings.ToLower(strings.TrimSpace(key))
}

func ensureFS(fs *safeio.SafeFS) *safeio.SafeFS {
	if fs != nil {
		return fs
	}
	if dfs := safeio.Default(); dfs != nil {
		return dfs
	}
	log.Fatal("safe filesystem is not configured")
	return nil
}
