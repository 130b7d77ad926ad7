package config

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/zeebo/blake3"
)

// Fingerprint computes the BLAKE3 hash of the file at path.
// The watcher compares fingerprints so saves that leave the content unchanged
// do not trigger a reload.
func Fingerprint(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return FingerprintBytes(data), nil
}

// FingerprintBytes hashes in-memory config content.
func FingerprintBytes(data []byte) string {
	hash := blake3.Sum256(data)
	return hex.EncodeToString(hash[:])
}
