package conversation

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// MaxImageSize is the largest image accepted from disk or a data URL.
const MaxImageSize = 20 * 1024 * 1024

var ErrImageTooLarge = errors.New("image size exceeds 20MB limit")

// Image is a user-supplied image ready to be sent inline to the model.
type Image struct {
	Data     []byte
	MimeType string
	Name     string
}

func NewImageFromFile(path string) (*Image, error) {
	mimeType := getMediaTypeFromExtension(filepath.Ext(path))
	if mimeType == "" {
		return nil, errors.Errorf("unsupported image format: %s", filepath.Ext(path))
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to stat image")
	}
	if info.Size() > MaxImageSize {
		return nil, ErrImageTooLarge
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read image")
	}

	return &Image{Data: data, MimeType: mimeType, Name: info.Name()}, nil
}

func getMediaTypeFromExtension(ext string) string {
	switch strings.ToLower(ext) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".webp":
		return "image/webp"
	case ".gif":
		return "image/gif"
	default:
		return ""
	}
}

// DataURL encodes the image as data:<mime>;base64,<data>.
func (i *Image) DataURL() string {
	return FormatDataURL(i.MimeType, i.Data)
}

func FormatDataURL(mimeType string, data []byte) string {
	return fmt.Sprintf("data:%s;base64,%s", mimeType, base64.StdEncoding.EncodeToString(data))
}

// ParseDataURL decodes a base64 data URL into an Image.
func ParseDataURL(dataURL string) (*Image, error) {
	rest, ok := strings.CutPrefix(dataURL, "data:")
	if !ok {
		return nil, errors.New("not a data URL")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, errors.New("malformed data URL")
	}
	mimeType, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return nil, errors.New("data URL is not base64 encoded")
	}
	if mimeType == "" {
		return nil, errors.New("data URL has no media type")
	}
	// DecodedLen ignores padding, so it may overshoot by two bytes
	if base64.StdEncoding.DecodedLen(len(payload)) > MaxImageSize+2 {
		return nil, ErrImageTooLarge
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, errors.Wrap(err, "could not decode data URL")
	}
	if len(data) > MaxImageSize {
		return nil, ErrImageTooLarge
	}
	return &Image{Data: data, MimeType: mimeType}, nil
}
