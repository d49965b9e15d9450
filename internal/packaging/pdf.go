package packaging

import (
	"bytes"
	"fmt"
	"image"
	"image/draw"
	"image/jpeg"

	"github.com/go-pdf/fpdf"
)

// Page geometry in millimetres on A4 portrait
const (
	pageMargin = 10.0
	imageWidth = 180.0
	maxHeight  = 297.0 - 2*pageMargin
)

// RenderPDF places img on a single A4 page, 180mm wide at the top-left
// margin, scaled down to fit when the receipt is too tall
func RenderPDF(img image.Image) ([]byte, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("image has no pixels")
	}

	var jpg bytes.Buffer
	if err := jpeg.Encode(&jpg, flatten(img), &jpeg.Options{Quality: 90}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}

	w, h := imageWidth, imageWidth*float64(bounds.Dy())/float64(bounds.Dx())
	if h > maxHeight {
		w, h = maxHeight*float64(bounds.Dx())/float64(bounds.Dy()), maxHeight
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(pageMargin, pageMargin, pageMargin)
	pdf.SetAutoPageBreak(false, 0)
	pdf.AddPage()

	opts := fpdf.ImageOptions{ImageType: "JPEG"}
	pdf.RegisterImageOptionsReader("receipt", opts, &jpg)
	pdf.ImageOptions("receipt", pageMargin, pageMargin, w, h, false, opts, 0, "")

	var out bytes.Buffer
	if err := pdf.Output(&out); err != nil {
		return nil, fmt.Errorf("writing PDF: %w", err)
	}
	return out.Bytes(), nil
}

// flatten draws img onto an opaque white RGBA so transparent PNGs don't
// come out black in the JPEG
func flatten(img image.Image) image.Image {
	bounds := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, bounds.Min, draw.Over)
	return dst
}
