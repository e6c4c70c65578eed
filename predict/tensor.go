package predict

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	_ "golang.org/x/image/bmp"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// InputSize is the square edge both classifiers were trained on.
const InputSize = 224

// Tensor is a dense float32 tensor in row-major order.
type Tensor struct {
	Shape []int
	Data  []float32
}

// Preprocess decodes an image, converts it to RGB, resizes it to
// InputSize x InputSize and returns a 1x3xHxW tensor scaled to [0,1].
func Preprocess(r io.Reader) (Tensor, error) {
	src, _, err := image.Decode(r)
	if err != nil {
		return Tensor{}, fmt.Errorf("decode image: %w", err)
	}
	dst := image.NewRGBA(image.Rect(0, 0, InputSize, InputSize))
	draw.BiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Src, nil)

	const plane = InputSize * InputSize
	data := make([]float32, 3*plane)
	for y := 0; y < InputSize; y++ {
		for x := 0; x < InputSize; x++ {
			i := dst.PixOffset(x, y)
			p := y*InputSize + x
			data[p] = float32(dst.Pix[i]) / 255
			data[plane+p] = float32(dst.Pix[i+1]) / 255
			data[2*plane+p] = float32(dst.Pix[i+2]) / 255
		}
	}
	return Tensor{Shape: []int{1, 3, InputSize, InputSize}, Data: data}, nil
}
