package dreamwarrior

import "github.com/unixpickle/anyvec"

// A FrameProcessor converts raw RGB frames into
// fixed-size single-channel observation vectors.
type FrameProcessor struct {
	Creator anyvec.Creator

	// Width and Height of processed frames.
	Width  int
	Height int
}

// Process converts one frame.
//
// The input is 8-bit RGB data in row-major order with the
// given dimensions.
// The output is a grayscale Height-by-Width vector with
// values in [0, 1].
func (f *FrameProcessor) Process(rgb []uint8, width, height int) anyvec.Vector {
	if len(rgb) != width*height*3 {
		panic("frame size mismatch")
	}
	data := make([]float64, 0, f.Width*f.Height)
	for y := 0; y < f.Height; y++ {
		srcY := sourceCoord(y, f.Height, height)
		for x := 0; x < f.Width; x++ {
			srcX := sourceCoord(x, f.Width, width)
			data = append(data, bilinear(rgb, width, height, srcX, srcY)/0xff)
		}
	}
	return f.Creator.MakeVectorData(f.Creator.MakeNumericList(data))
}

// sourceCoord maps an output pixel index to a source
// coordinate, aligning the corner pixels of both images.
func sourceCoord(i, size, srcSize int) float64 {
	if size <= 1 {
		return 0
	}
	return float64(i) * float64(srcSize-1) / float64(size-1)
}

func bilinear(rgb []uint8, width, height int, x, y float64) float64 {
	x0, y0 := int(x), int(y)
	x1, y1 := x0+1, y0+1
	if x1 >= width {
		x1 = width - 1
	}
	if y1 >= height {
		y1 = height - 1
	}
	fx, fy := x-float64(x0), y-float64(y0)
	top := gray(rgb, width, x0, y0)*(1-fx) + gray(rgb, width, x1, y0)*fx
	bottom := gray(rgb, width, x0, y1)*(1-fx) + gray(rgb, width, x1, y1)*fx
	return top*(1-fy) + bottom*fy
}

func gray(rgb []uint8, width, x, y int) float64 {
	idx := (y*width + x) * 3
	var sum float64
	for d := 0; d < 3; d++ {
		sum += float64(rgb[idx+d])
	}
	return sum / 3
}
