package services

import (
	"fmt"
	"image"
	"os"
	"strings"

	"github.com/rwcarlsen/goexif/exif"
	"go.uber.org/zap"

	"truthlens/models"
)

const (
	indicatorNoSoftware = "No creation software metadata"
	indicatorNoDate     = "No creation date metadata"
)

var exifFields = map[string]exif.FieldName{
	"camera_make":       exif.Make,
	"camera_model":      exif.Model,
	"creation_software": exif.Software,
	"creation_date":     exif.DateTime,
	"original_date":     exif.DateTimeOriginal,
}

// ExifReader inspects embedded image metadata.
type ExifReader struct {
	log *zap.Logger
}

func NewExifReader(log *zap.Logger) *ExifReader {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExifReader{log: log.Named("exif")}
}

// ReadMetadata flags the image as suspicious when the software or date tag is
// missing. Images without any EXIF block are not an error; they simply carry
// both indicators.
func (r *ExifReader) ReadMetadata(path string) (models.ImageMetadata, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.ImageMetadata{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	meta := models.ImageMetadata{Tags: map[string]string{}}
	if cfg, format, err := image.DecodeConfig(f); err == nil {
		meta.Format = format
		meta.Width = cfg.Width
		meta.Height = cfg.Height
	}

	if _, err := f.Seek(0, 0); err != nil {
		return models.ImageMetadata{}, fmt.Errorf("rewind image: %w", err)
	}

	x, err := exif.Decode(f)
	if err != nil {
		r.log.Debug("no exif block", zap.String("path", path), zap.Error(err))
	} else {
		for key, field := range exifFields {
			tag, err := x.Get(field)
			if err != nil {
				continue
			}
			if val, err := tag.StringVal(); err == nil && strings.TrimSpace(val) != "" {
				meta.Tags[key] = strings.TrimSpace(val)
			}
		}
	}

	meta.SuspiciousIndicators = suspiciousIndicators(meta.Tags)
	return meta, nil
}

func suspiciousIndicators(tags map[string]string) []string {
	out := []string{}
	if isUnknown(tags["creation_software"]) {
		out = append(out, indicatorNoSoftware)
	}
	if isUnknown(tags["creation_date"]) && isUnknown(tags["original_date"]) {
		out = append(out, indicatorNoDate)
	}
	return out
}

func isUnknown(v string) bool {
	return v == "" || strings.EqualFold(v, "unknown")
}
