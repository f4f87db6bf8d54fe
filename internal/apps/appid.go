// If you are AI: This file computes stable app ids and resolves app images.
// The id is a CRC32 over the name and image digest, truncated to signed 32-bit.

package apps

import (
	"crypto/sha256"
	"encoding/hex"
	"hash/crc32"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// defaultImage is the asset served when an app has no usable cover.
const defaultImage = "box.png"

// CalculateAppID derives the stable id for an app. Two candidates come back:
// the plain hash over name and image digest, and a fallback that mixes in the
// catalog index for collision resolution. Clients store ids as signed 32-bit
// integers, so the checksum is folded into that range.
func CalculateAppID(name, imagePath string, index int) (plain, indexed string) {
	input := name
	if filepath.Base(imagePath) != defaultImage {
		if digest, err := hashFile(imagePath); err == nil {
			input += digest
		} else {
			// Couldn't read the image, hash its path instead.
			input += imagePath
		}
	}

	plain = truncateID(crc32.ChecksumIEEE([]byte(input)))
	indexed = truncateID(crc32.ChecksumIEEE([]byte(input + strconv.Itoa(index))))
	return plain, indexed
}

// truncateID folds a checksum into the positive signed 32-bit range.
func truncateID(sum uint32) string {
	v := int64(int32(sum))
	if v < 0 {
		v = -v
	}
	return strconv.FormatInt(v, 10)
}

// hashFile returns the hex SHA-256 of a file.
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// resolveImagePath maps an app's configured image to the file actually
// served. Anything that isn't an existing PNG falls back to the default
// box image in the assets directory.
func resolveImagePath(assetsDir, imagePath string) string {
	if imagePath == "" {
		return filepath.Join(assetsDir, defaultImage)
	}

	if !strings.EqualFold(filepath.Ext(imagePath), ".png") {
		return filepath.Join(assetsDir, defaultImage)
	}

	// Bare asset names resolve inside the assets directory.
	inAssets := filepath.Join(assetsDir, imagePath)
	if _, err := os.Stat(inAssets); err == nil {
		return inAssets
	}

	if _, err := os.Stat(imagePath); err != nil {
		return filepath.Join(assetsDir, defaultImage)
	}
	return imagePath
}
