package picture

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/disintegration/imaging"
)

const thumbnailSize = 325

// Save уменьшает загруженное изображение до миниатюры и сохраняет его
// под случайным именем. Возвращает сгенерированное имя файла.
func Save(src io.Reader, originalName, dir string) (string, error) {
	const op = "picture.Save"

	img, err := imaging.Decode(src, imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%s: failed to decode image: %w", op, err)
	}

	thumb := imaging.Fit(img, thumbnailSize, thumbnailSize, imaging.Lanczos)

	name, err := randomName(filepath.Ext(originalName))
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	if err := imaging.Save(thumb, filepath.Join(dir, name)); err != nil {
		return "", fmt.Errorf("%s: failed to save image: %w", op, err)
	}

	return name, nil
}

func randomName(ext string) (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}

	if ext == "" {
		ext = ".jpg"
	}

	return hex.EncodeToString(b) + ext, nil
}
