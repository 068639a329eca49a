package inference

import (
	"bytes"
	"fmt"
	"image"

	"github.com/disintegration/imaging"

	"github.com/your-org/buddywatch/internal/errs"
)

// Preprocess decodes an image and lays it out as the model input:
// RGB, resized to size x size with a bicubic kernel, scaled to [0,1],
// NHWC with a leading batch dimension of 1.
func Preprocess(data []byte, size int) ([]float32, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image", errs.ErrInvalidImage)
	}
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errs.ErrInvalidImage, err)
	}
	if img.Bounds().Empty() {
		return nil, fmt.Errorf("%w: zero-sized image", errs.ErrInvalidImage)
	}

	resized := imaging.Resize(toRGB(img), size, size, imaging.CatmullRom)
	return nhwc(resized), nil
}

// toRGB drops the alpha channel, keeping each pixel's stored colour.
func toRGB(img image.Image) *image.NRGBA {
	rgb := imaging.Clone(img)
	for i := 3; i < len(rgb.Pix); i += 4 {
		rgb.Pix[i] = 0xff
	}
	return rgb
}

func nhwc(img *image.NRGBA) []float32 {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	out := make([]float32, 0, w*h*3)

	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		for x := 0; x < w; x++ {
			px := row[x*4 : x*4+3]
			out = append(out, float32(px[0])/255, float32(px[1])/255, float32(px[2])/255)
		}
	}
	return out
}
