package storage

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/disintegration/imaging"
)

const (
	defaultThumbnailWidth = 800
	maxPhotoBytes         = 10 << 20
)

// Thumbnail decodes an uploaded image and scales it down to width, keeping the
// aspect ratio. PNG input stays PNG, everything else becomes JPEG.
// It returns the encoded bytes, the MIME type and the file extension.
func Thumbnail(r io.Reader, width int) ([]byte, string, string, error) {
	if width <= 0 {
		width = defaultThumbnailWidth
	}

	data, err := io.ReadAll(io.LimitReader(r, maxPhotoBytes+1))
	if err != nil {
		return nil, "", "", fmt.Errorf("read image: %w", err)
	}
	if len(data) > maxPhotoBytes {
		return nil, "", "", fmt.Errorf("image too large (>%d bytes)", maxPhotoBytes)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", "", fmt.Errorf("decode image: %w", err)
	}

	if img.Bounds().Dx() > width {
		img = imaging.Resize(img, width, 0, imaging.Lanczos)
	}

	outFormat, mime, ext := imaging.JPEG, "image/jpeg", "jpg"
	if format == "png" {
		outFormat, mime, ext = imaging.PNG, "image/png", "png"
	}

	buf := &bytes.Buffer{}
	if err := imaging.Encode(buf, img, outFormat, imaging.JPEGQuality(85)); err != nil {
		return nil, "", "", fmt.Errorf("encode image: %w", err)
	}
	return buf.Bytes(), mime, ext, nil
}
