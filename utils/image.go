package utils

import (
	"bytes"
	"errors"
	"image"
	"image/jpeg"
	_ "image/png" // register decoder

	"github.com/disintegration/imaging"
)

const thumbnailEdge = 320

// ImageInfo holds the properties extracted from an uploaded file.
type ImageInfo struct {
	Width  int
	Height int
	Format string
}

// DecodeInfo reads image dimensions and format without decoding pixels.
func DecodeInfo(data []byte) (ImageInfo, error) {
	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return ImageInfo{}, errors.New("unsupported or corrupt image")
	}
	return ImageInfo{Width: cfg.Width, Height: cfg.Height, Format: format}, nil
}

// Thumbnail renders a bounded JPEG preview of the uploaded image.
func Thumbnail(data []byte) ([]byte, error) {
	src, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, errors.New("cannot decode image for thumbnail")
	}
	thumb := imaging.Fit(src, thumbnailEdge, thumbnailEdge, imaging.Lanczos)
	out, err := ImageToJpgBuffer(thumb, &jpeg.Options{Quality: 75})
	if err != nil {
		return nil, err
	}
	return *out, nil
}

// ImageToJpgBuffer Convert and image to a jpg buffer to write to output
func ImageToJpgBuffer(image image.Image, options *jpeg.Options) (*[]byte, error) {
	buf := new(bytes.Buffer)

	err := jpeg.Encode(buf, image, options)
	if err != nil {
		return nil, errors.New("jpeg encode error")
	}
	Buffer := buf.Bytes()
	return &Buffer, nil
}
