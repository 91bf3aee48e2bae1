package qr

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"regexp"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const (
	PreviewSize    = 220
	PreviewPadding = 16

	DownloadSize   = 1000
	DownloadMargin = 60
)

var (
	ErrEmptyValue = errors.New("nothing to encode")

	linkNumber  = regexp.MustCompile(`(?i)Link\s*(\d+)`)
	httpPrefix  = regexp.MustCompile(`(?i)^https?://`)
	nonAlnum    = regexp.MustCompile(`(?i)[^a-z0-9]`)
	dashRun     = regexp.MustCompile(`-+`)
	dashPNGTail = regexp.MustCompile(`-+\.png$`)
)

// Render draws value as a QR code of qrSize pixels centred on a white
// square with pad pixels on every side.
func Render(value string, qrSize, pad int) ([]byte, error) {
	if strings.TrimSpace(value) == "" {
		return nil, ErrEmptyValue
	}
	if qrSize <= 0 || pad < 0 {
		return nil, fmt.Errorf("invalid qr dimensions %d/%d", qrSize, pad)
	}

	code, err := qrcode.New(value, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("qr encode: %w", err)
	}
	code.DisableBorder = true
	img := code.Image(qrSize)

	total := qrSize + 2*pad
	canvas := image.NewRGBA(image.Rect(0, 0, total, total))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	dst := image.Rect(pad, pad, pad+img.Bounds().Dx(), pad+img.Bounds().Dy())
	draw.Draw(canvas, dst, img, img.Bounds().Min, draw.Over)

	var buf bytes.Buffer
	if err := png.Encode(&buf, canvas); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func Preview(value string) ([]byte, error) {
	return Render(value, PreviewSize, PreviewPadding)
}

// Download renders the 1000px printable version.
func Download(value string) ([]byte, error) {
	return Render(value, DownloadSize-2*DownloadMargin, DownloadMargin)
}

// Filename builds "Link-<n>-<cleaned url>.png" for a download, where n
// comes from a "Link 3" style title.
func Filename(title, value string) string {
	ref := "Link"
	if m := linkNumber.FindStringSubmatch(title); m != nil {
		ref = "Link-" + m[1]
	}
	clean := httpPrefix.ReplaceAllString(value, "")
	clean = nonAlnum.ReplaceAllString(clean, "-")
	clean = dashRun.ReplaceAllString(clean, "-")
	if len(clean) > 30 {
		clean = clean[:30]
	}
	return dashPNGTail.ReplaceAllString(ref+"-"+clean+".png", ".png")
}
