package render

import "image/color"

var (
	// keyPointColors holds one colour per COCO-18 keypoint; limbs reuse them
	// by limb index.
	keyPointColors = []color.RGBA{
		{R: 255, G: 0, B: 0, A: 255},
		{R: 255, G: 85, B: 0, A: 255},
		{R: 255, G: 170, B: 0, A: 255},
		{R: 255, G: 255, B: 0, A: 255},
		{R: 170, G: 255, B: 0, A: 255},
		{R: 85, G: 255, B: 0, A: 255},
		{R: 0, G: 255, B: 0, A: 255},
		{R: 0, G: 255, B: 85, A: 255},
		{R: 0, G: 255, B: 170, A: 255},
		{R: 0, G: 255, B: 255, A: 255},
		{R: 0, G: 170, B: 255, A: 255},
		{R: 0, G: 85, B: 255, A: 255},
		{R: 0, G: 0, B: 255, A: 255},
		{R: 85, G: 0, B: 255, A: 255},
		{R: 170, G: 0, B: 255, A: 255},
		{R: 255, G: 0, B: 255, A: 255},
		{R: 255, G: 0, B: 170, A: 255},
		{R: 255, G: 0, B: 85, A: 255},
	}

	boxColor  = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	textColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}
)

func paletteColor(i int) color.RGBA {
	return keyPointColors[i%len(keyPointColors)]
}
