package extract

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"log/slog"

	"github.com/custodia-labs/docsearch/internal/model"
	"github.com/custodia-labs/docsearch/internal/provider"
	"github.com/custodia-labs/docsearch/internal/vision"
)

// ImageExtractor produces a single image chunk per artifact, carrying
// whatever caption/OCR/embedding the Vision Provider and OCR Engine can
// supply. Either collaborator being unavailable degrades the result
// rather than failing extraction.
type ImageExtractor struct {
	BaseExtractor
	Vision provider.VisionProvider
	OCR    provider.OCREngine
	Embed  vision.EmbedFunc
	Opts   vision.Options
}

// NewImageExtractor creates an ImageExtractor wired to the given vision
// collaborators. Any of vis, ocr, embed may be nil, in which case the
// corresponding pass is skipped.
func NewImageExtractor(vis provider.VisionProvider, ocr provider.OCREngine, embed vision.EmbedFunc) *ImageExtractor {
	return &ImageExtractor{
		Vision: vis,
		OCR:    ocr,
		Embed:  embed,
		Opts:   vision.Options{OCR: true, Caption: true},
	}
}

// Extract implements Extractor.
func (e *ImageExtractor) Extract(in Input) (*Summary, []ChunkDraft) {
	typeMeta := imageTypeMetadata(in.Bytes, in.Filename)

	res, err := vision.ProcessImage(context.Background(), in.Bytes, e.Opts, e.Vision, e.OCR, e.Embed)
	if err != nil {
		slog.Warn("image extractor failed", "filename", in.Filename, "error", err)
		return &Summary{FileType: "image", TypeMetadata: typeMeta}, nil
	}

	combinedText := res.Caption
	if res.OCRText != "" {
		if combinedText != "" {
			combinedText += " "
		}
		combinedText += res.OCRText
	}

	labels := res.Tags
	if exif := readEXIF(in.Bytes); exif.HasGPS {
		labels = append(labels, exif.GPSLabel)
	}

	summary := &Summary{
		Summary:      res.Caption,
		FileType:     "image",
		ImageLabels:  labels,
		OCRText:      res.OCRText,
		TypeMetadata: typeMeta,
	}
	if combinedText != "" {
		e.applyToSummary(summary, combinedText)
	}

	chunk := ChunkDraft{
		ChunkType:      model.ChunkTypeImage,
		Text:           combinedText,
		Caption:        res.Caption,
		Description:    res.Caption,
		OCRText:        res.OCRText,
		Labels:         labels,
		ImageEmbedding: res.CaptionEmbedding,
	}
	if combinedText != "" {
		e.applyToChunk(&chunk, combinedText)
	}

	return summary, []ChunkDraft{chunk}
}

// imageTypeMetadata decodes dimensions/format/mode/aspect and, for
// JPEGs, any EXIF orientation/capture-time tags. A
// decode failure (corrupt or unrecognized image bytes) yields an empty
// map rather than aborting extraction.
func imageTypeMetadata(data []byte, filename string) map[string]string {
	meta := map[string]string{}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		slog.Warn("image extractor failed to decode image", "filename", filename, "error", err)
		return meta
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()

	meta["width"] = fmt.Sprintf("%d", width)
	meta["height"] = fmt.Sprintf("%d", height)
	meta["format"] = format
	meta["mode"] = colorModeOf(img)
	if height > 0 {
		meta["aspect"] = fmt.Sprintf("%.4f", float64(width)/float64(height))
	}

	exif := readEXIF(data)
	if exif.Orientation > 0 {
		meta["exif_orientation"] = fmt.Sprintf("%d", exif.Orientation)
	}
	if exif.DateTime != "" {
		meta["exif_datetime"] = exif.DateTime
	}

	return meta
}

// colorModeOf derives the short "mode" label for an image ("RGBA", "L",
// "CMYK", "YCbCr", "YCbCrA", "P") from the decoded image's concrete pixel type. A type switch
// on the concrete image, rather than an equality check against
// image/color's model values, is required: color.Model singletons wrap
// func values and are not comparable with ==.
func colorModeOf(img image.Image) string {
	switch img.(type) {
	case *image.RGBA, *image.RGBA64, *image.NRGBA, *image.NRGBA64:
		return "RGBA"
	case *image.Gray, *image.Gray16:
		return "L"
	case *image.CMYK:
		return "CMYK"
	case *image.YCbCr:
		return "YCbCr"
	case *image.NYCbCrA:
		return "YCbCrA"
	case *image.Paletted:
		return "P"
	default:
		return "unknown"
	}
}
