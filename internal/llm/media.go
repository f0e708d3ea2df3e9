package llm

import (
	"encoding/base64"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// MaxVisionImageMB caps images attached to vision requests; larger files are
// rejected before encoding rather than bounced by the backend.
const MaxVisionImageMB = 20

// ReadAsDataURL reads an image file and encodes it as a data: URL suitable
// for a vision message part.
func ReadAsDataURL(path string) (string, string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", "", err
	}
	if st.Size() > int64(MaxVisionImageMB)*1024*1024 {
		return "", "", fmt.Errorf("image too large for vision request: %d bytes", st.Size())
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return "", "", err
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	mt := mime.TypeByExtension("." + ext)
	if mt == "" {
		switch ext {
		case "jpg", "jpeg":
			mt = "image/jpeg"
		case "png":
			mt = "image/png"
		case "webp":
			mt = "image/webp"
		case "gif":
			mt = "image/gif"
		default:
			mt = "image/jpeg"
		}
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(b), mt, nil
}
