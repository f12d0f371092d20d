//go:build gui

package gui

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
)

var (
	iconPaper  = color.RGBA{255, 236, 120, 255}
	iconFold   = color.RGBA{222, 196, 70, 255}
	iconLines  = color.RGBA{170, 150, 60, 255}
	iconBorder = color.RGBA{120, 100, 30, 255}
)

// noteIcon draws a square sticky note with a folded bottom-right corner.
func noteIcon(size int) []byte {
	img := image.NewRGBA(image.Rect(0, 0, size, size))
	fold := size / 4
	for y := range size {
		for x := range size {
			cornerX, cornerY := x-(size-fold), y-(size-fold)
			switch {
			case cornerX >= 0 && cornerY >= 0 && cornerX+cornerY >= fold:
				// cut away past the fold
			case cornerX >= 0 && cornerY >= 0:
				img.Set(x, y, iconFold)
			case x == 0 || y == 0 || x == size-1 || y == size-1:
				img.Set(x, y, iconBorder)
			case y > size/4 && y < size-fold && y%(max(size/6, 2)) == 0 && x > size/6 && x < size-size/6:
				img.Set(x, y, iconLines)
			default:
				img.Set(x, y, iconPaper)
			}
		}
	}
	return encodePNG(img)
}

func encodePNG(img image.Image) []byte {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		panic("encodePNG: " + err.Error())
	}
	return buf.Bytes()
}
