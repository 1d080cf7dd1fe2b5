package util

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/cespare/xxhash/v2"
)

// ComputeFileHash opens a file, streams its contents through an xxhash hasher,
// and returns the computed 64-bit hash in hexadecimal string format.
func ComputeFileHash(filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	hasher := xxhash.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return "", err
	}
	// Convert the 64-bit hash to hexadecimal.
	return fmt.Sprintf("%016x", hasher.Sum64()), nil
}

// HashData returns the hex encoded salted MD5 digest of data.
// Quarantine file names are derived from this digest.
func HashData(salt string, data []byte) string {
	h := md5.New()
	h.Write([]byte(salt))
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// HashFile returns the hex encoded salted MD5 digest of a file's contents.
func HashFile(salt string, filePath string) (string, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	h.Write([]byte(salt))
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
