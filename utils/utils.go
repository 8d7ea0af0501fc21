package utils

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"os"
)

// PublicIDLength is the number of characters in a generated QR public id.
// Long enough to make ids impractical to guess, short enough to keep the
// encoded QR url small.
const PublicIDLength = 16

func FileExist(filePath string) bool {
	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		return false
	}

	return true
}

func CreateDirIfNotExist(dir string) error {
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		err := os.Mkdir(dir, 0755)
		if err != nil {
			return err
		}
	}

	return nil
}

// GenerateToken returns a URL-safe random token of 'length' characters.
func GenerateToken(length int) (string, error) {
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %v", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf)[:length], nil
}
