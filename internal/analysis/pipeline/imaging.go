package pipeline

import (
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"math"
	"os"

	// Decoder registrations for the raster formats the visual pipeline
	// accepts. JPEG and PNG register via their encode imports below.
	_ "image/gif"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

func decodeImage(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode image: %w", err)
	}
	return img, nil
}

// toGray converts any image to 8-bit grayscale
func toGray(img image.Image) *image.Gray {
	if g, ok := img.(*image.Gray); ok {
		return g
	}
	bounds := img.Bounds()
	gray := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			gray.Set(x, y, img.At(x, y))
		}
	}
	return gray
}

func encodeJPEG(path string, img image.Image, quality int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return jpeg.Encode(f, img, &jpeg.Options{Quality: quality})
}

func encodePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return png.Encode(f, img)
}

// absDiffGray computes the per-pixel absolute difference of two grayscale
// images over their intersecting bounds
func absDiffGray(a, b *image.Gray) *image.Gray {
	bounds := a.Bounds().Intersect(b.Bounds())
	diff := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			va := int(a.GrayAt(x, y).Y)
			vb := int(b.GrayAt(x, y).Y)
			d := va - vb
			if d < 0 {
				d = -d
			}
			diff.SetGray(x, y, color.Gray{Y: uint8(d)})
		}
	}
	return diff
}

// grayStats summarizes pixel intensities as max, mean and standard deviation
func grayStats(img *image.Gray) (maxVal, mean, stdDev float64) {
	bounds := img.Bounds()
	n := bounds.Dx() * bounds.Dy()
	if n == 0 {
		return 0, 0, 0
	}

	var sum, sumSq float64
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(img.GrayAt(x, y).Y)
			sum += v
			sumSq += v * v
			if v > maxVal {
				maxVal = v
			}
		}
	}
	mean = sum / float64(n)
	variance := sumSq/float64(n) - mean*mean
	if variance < 0 {
		variance = 0
	}
	return maxVal, mean, math.Sqrt(variance)
}

// amplifyGray scales pixel intensities by factor, saturating at 255
func amplifyGray(img *image.Gray, factor float64) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := float64(img.GrayAt(x, y).Y) * factor
			if v > 255 {
				v = 255
			}
			out.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return out
}

// centerCrop returns a square crop of at most size pixels from the middle
// of the image
func centerCrop(img *image.Gray, size int) *image.Gray {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	crop := size
	if w < crop {
		crop = w
	}
	if h < crop {
		crop = h
	}
	x0 := bounds.Min.X + (w-crop)/2
	y0 := bounds.Min.Y + (h-crop)/2
	rect := image.Rect(x0, y0, x0+crop, y0+crop)
	return img.SubImage(rect).(*image.Gray)
}

// histogram256 counts pixel intensities into 256 bins
func histogram256(img *image.Gray) [256]int {
	var hist [256]int
	bounds := img.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			hist[img.GrayAt(x, y).Y]++
		}
	}
	return hist
}

// medianFilter3x3 applies a 3x3 median filter, the standard denoise step
// before isolating high-frequency noise. Border pixels use the clamped
// neighborhood.
func medianFilter3x3(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	out := image.NewGray(bounds)
	var window [9]uint8
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					nx, ny := clamp(x+dx, bounds.Min.X, bounds.Max.X-1), clamp(y+dy, bounds.Min.Y, bounds.Max.Y-1)
					window[n] = img.GrayAt(nx, ny).Y
					n++
				}
			}
			out.SetGray(x, y, color.Gray{Y: median9(window)})
		}
	}
	return out
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// median9 finds the median of 9 values with insertion sort; the window is
// tiny so this beats a general sort
func median9(w [9]uint8) uint8 {
	for i := 1; i < len(w); i++ {
		for j := i; j > 0 && w[j-1] > w[j]; j-- {
			w[j-1], w[j] = w[j], w[j-1]
		}
	}
	return w[4]
}

// normalizeGray stretches the intensity range to the full [0, 255] span
func normalizeGray(img *image.Gray) *image.Gray {
	bounds := img.Bounds()
	minV, maxV := uint8(255), uint8(0)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := img.GrayAt(x, y).Y
			if v < minV {
				minV = v
			}
			if v > maxV {
				maxV = v
			}
		}
	}
	out := image.NewGray(bounds)
	span := float64(maxV) - float64(minV)
	if span == 0 {
		return out
	}
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := (float64(img.GrayAt(x, y).Y) - float64(minV)) / span * 255
			out.SetGray(x, y, color.Gray{Y: uint8(v)})
		}
	}
	return out
}

// jetColor maps an intensity in [0, 1] onto the jet colormap so high values
// read as hot and low values as cold
func jetColor(v float64) color.NRGBA {
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	r := clampUnit(1.5 - math.Abs(4*v-3))
	g := clampUnit(1.5 - math.Abs(4*v-2))
	b := clampUnit(1.5 - math.Abs(4*v-1))
	return color.NRGBA{
		R: uint8(r * 255),
		G: uint8(g * 255),
		B: uint8(b * 255),
		A: 255,
	}
}

func clampUnit(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// renderJet false-colors a grayscale map with the jet colormap
func renderJet(img *image.Gray) *image.NRGBA {
	bounds := img.Bounds()
	out := image.NewNRGBA(bounds)
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			out.SetNRGBA(x, y, jetColor(float64(img.GrayAt(x, y).Y)/255))
		}
	}
	return out
}

// overlay alpha policy: fully transparent below the visibility threshold,
// otherwise a confidence-weighted base opacity so uncertain regions fade.
const (
	overlayVisibility = 0.1
	overlayOpacity    = 0.7
)

// renderOverlay converts a row-major anomaly heatmap plus an optional
// confidence map of the same shape into an alpha-masked jet overlay
func renderOverlay(heatmap, confidence [][]float64) *image.NRGBA {
	h := len(heatmap)
	if h == 0 {
		return image.NewNRGBA(image.Rect(0, 0, 0, 0))
	}
	w := len(heatmap[0])
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w && x < len(heatmap[y]); x++ {
			v := heatmap[y][x]
			c := jetColor(v)
			if v < overlayVisibility {
				c.A = 0
			} else {
				conf := 1.0
				if y < len(confidence) && x < len(confidence[y]) {
					conf = clampUnit(confidence[y][x])
				}
				c.A = uint8(overlayOpacity * conf * 255)
			}
			out.SetNRGBA(x, y, c)
		}
	}
	return out
}
