package utils

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testPNG(t *testing.T, width, height int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for x := 0; x < width; x++ {
		img.Set(x, 0, color.RGBA{R: 200, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeInfo(t *testing.T) {
	info, err := DecodeInfo(testPNG(t, 640, 480))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if info.Width != 640 || info.Height != 480 || info.Format != "png" {
		t.Errorf("info = %+v", info)
	}

	if _, err := DecodeInfo([]byte("not an image")); err == nil {
		t.Error("garbage accepted as image")
	}
}

func TestThumbnail(t *testing.T) {
	thumb, err := Thumbnail(testPNG(t, 1600, 900))
	if err != nil {
		t.Fatalf("thumbnail: %v", err)
	}
	info, err := DecodeInfo(thumb)
	if err != nil {
		t.Fatalf("decode thumbnail: %v", err)
	}
	if info.Format != "jpeg" {
		t.Errorf("thumbnail format = %q, want jpeg", info.Format)
	}
	if info.Width > 320 || info.Height > 320 {
		t.Errorf("thumbnail %dx%d exceeds bound", info.Width, info.Height)
	}
}
