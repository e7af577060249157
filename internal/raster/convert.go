package raster

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"  // register GIF decoder
	_ "image/jpeg" // register JPEG decoder
	"image/png"
	"os"
	"path/filepath"

	"github.com/gen2brain/heic"

	"github.com/scanledger/scanledger/constants"
	"github.com/scanledger/scanledger/internal/entity"
)

// NormalizeImage converts a non-PDF source image into a single PNG
// page image in destDir. HEIC/HEIF (the iPhone default) is decoded
// with a pure Go decoder; everything else goes through the standard
// image registry.
func (r *Rasterizer) NormalizeImage(srcPath, destDir, taskID string) (entity.PageImage, error) {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return entity.PageImage{}, fmt.Errorf("read image: %w", err)
	}

	var img image.Image
	if constants.IsHEICExt(filepath.Ext(srcPath)) || isHEIC(data) {
		img, err = heic.Decode(bytes.NewReader(data))
		if err != nil {
			return entity.PageImage{}, fmt.Errorf("decode heic: %w", err)
		}
	} else {
		img, _, err = image.Decode(bytes.NewReader(data))
		if err != nil {
			return entity.PageImage{}, fmt.Errorf("decode image: %w", err)
		}
	}

	out := filepath.Join(destDir, "page-000.png")
	f, err := os.Create(out)
	if err != nil {
		return entity.PageImage{}, fmt.Errorf("create: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return entity.PageImage{}, fmt.Errorf("encode png: %w", err)
	}

	return entity.PageImage{
		TaskID:     taskID,
		PageIndex:  0,
		TotalPages: 1,
		Path:       out,
	}, nil
}

// isHEIC sniffs the ftyp box brands that mark HEIC/HEIF containers.
func isHEIC(data []byte) bool {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return false
	}
	switch string(data[8:12]) {
	case "heic", "heif", "mif1", "msf1":
		return true
	}
	return false
}
