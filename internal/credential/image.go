package credential

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"strings"

	"github.com/makiuchi-d/gozxing"
	zxqr "github.com/makiuchi-d/gozxing/qrcode"
	qrgen "github.com/skip2/go-qrcode"
)

const dataURIPrefix = "data:image/png;base64,"

var ErrNoCode = errors.New("no QR code found in image")

// RenderPNG encodes text as a QR code PNG.
func (c *Codec) RenderPNG(text string) ([]byte, error) {
	q, err := qrgen.New(text, qrgen.Medium)
	if err != nil {
		return nil, fmt.Errorf("generate QR code: %w", err)
	}
	png, err := q.PNG(c.imageSize)
	if err != nil {
		return nil, fmt.Errorf("render QR code: %w", err)
	}
	return png, nil
}

// Render encodes text as a QR code and returns it as a PNG data URI.
func (c *Codec) Render(text string) (string, error) {
	png, err := c.RenderPNG(text)
	if err != nil {
		return "", err
	}
	return dataURIPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// DecodeDataURI returns the PNG bytes of a data URI produced by Render.
func DecodeDataURI(uri string) ([]byte, error) {
	if !strings.HasPrefix(uri, dataURIPrefix) {
		return nil, fmt.Errorf("not a PNG data URI")
	}
	return base64.StdEncoding.DecodeString(strings.TrimPrefix(uri, dataURIPrefix))
}

// DecodeImage reads a PNG or JPEG and returns the text of the QR code in it.
func DecodeImage(r io.Reader) (string, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("binarize image: %w", err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zxqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoCode, err)
	}
	return result.GetText(), nil
}

// DecodeImageBytes is DecodeImage over an in-memory image.
func DecodeImageBytes(b []byte) (string, error) {
	return DecodeImage(bytes.NewReader(b))
}
