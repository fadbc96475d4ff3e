package services

import (
	"context"
	"fmt"
	"hash/fnv"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"truthlens/models"
)

const (
	maxSignalSide = 512
	blockSize     = 8
	gridCells     = 4
	// blocks whose luminance stddev is below this are treated as flat and
	// never counted as duplicates
	flatBlockStdDev = 4.0
)

// PixelAnalyzer computes the three manipulation signals from decoded pixels.
type PixelAnalyzer struct{}

func NewPixelAnalyzer() *PixelAnalyzer {
	return &PixelAnalyzer{}
}

func (p *PixelAnalyzer) Signals(ctx context.Context, path string) (models.ManipulationSignals, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.ManipulationSignals{}, fmt.Errorf("open image: %w", err)
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return models.ManipulationSignals{}, fmt.Errorf("decode image: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return models.ManipulationSignals{}, err
	}
	return SignalsFromImage(img), nil
}

// SignalsFromImage works on a grayscale copy no larger than maxSignalSide.
func SignalsFromImage(img image.Image) models.ManipulationSignals {
	g := toGray(img)
	return models.ManipulationSignals{
		DuplicateRatio:      duplicateRatio(g),
		LightingConsistency: lightingConsistency(g),
		EdgeConsistency:     edgeConsistency(g),
	}
}

type grayImage struct {
	w, h int
	pix  []float64
}

func (g *grayImage) at(x, y int) float64 {
	return g.pix[y*g.w+x]
}

func toGray(img image.Image) *grayImage {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	step := 1
	for w/step > maxSignalSide || h/step > maxSignalSide {
		step++
	}
	g := &grayImage{w: w / step, h: h / step}
	g.pix = make([]float64, g.w*g.h)
	for y := 0; y < g.h; y++ {
		for x := 0; x < g.w; x++ {
			c := color.GrayModel.Convert(img.At(b.Min.X+x*step, b.Min.Y+y*step)).(color.Gray)
			g.pix[y*g.w+x] = float64(c.Y)
		}
	}
	return g
}

// duplicateRatio is the share of textured 8x8 blocks that repeat an earlier
// block exactly after 4-bit quantisation.
func duplicateRatio(g *grayImage) float64 {
	seen := map[uint64]bool{}
	textured, dup := 0, 0
	buf := make([]byte, blockSize*blockSize)

	for by := 0; by+blockSize <= g.h; by += blockSize {
		for bx := 0; bx+blockSize <= g.w; bx += blockSize {
			var sum, sumSq float64
			i := 0
			for y := by; y < by+blockSize; y++ {
				for x := bx; x < bx+blockSize; x++ {
					v := g.at(x, y)
					sum += v
					sumSq += v * v
					buf[i] = byte(v) >> 4
					i++
				}
			}
			n := float64(blockSize * blockSize)
			mean := sum / n
			if math.Sqrt(math.Max(0, sumSq/n-mean*mean)) < flatBlockStdDev {
				continue
			}
			textured++
			h := fnv.New64a()
			h.Write(buf)
			key := h.Sum64()
			if seen[key] {
				dup++
			} else {
				seen[key] = true
			}
		}
	}
	if textured == 0 {
		return 0
	}
	return float64(dup) / float64(textured)
}

// lightingConsistency is 1 minus the spread of regional mean luminance.
func lightingConsistency(g *grayImage) float64 {
	means := regionMeans(g, func(x, y int) float64 { return g.at(x, y) })
	if len(means) == 0 {
		return 1
	}
	_, std := meanStd(means)
	return clamp01(1 - std/128)
}

// edgeConsistency compares Sobel energy across regions: uniform edge density
// scores 1, a region much sharper or blurrier than the rest pulls it down.
func edgeConsistency(g *grayImage) float64 {
	if g.w < 3 || g.h < 3 {
		return 1
	}
	mag := make([]float64, g.w*g.h)
	for y := 1; y < g.h-1; y++ {
		for x := 1; x < g.w-1; x++ {
			gx := -g.at(x-1, y-1) - 2*g.at(x-1, y) - g.at(x-1, y+1) +
				g.at(x+1, y-1) + 2*g.at(x+1, y) + g.at(x+1, y+1)
			gy := -g.at(x-1, y-1) - 2*g.at(x, y-1) - g.at(x+1, y-1) +
				g.at(x-1, y+1) + 2*g.at(x, y+1) + g.at(x+1, y+1)
			mag[y*g.w+x] = math.Hypot(gx, gy)
		}
	}
	means := regionMeans(g, func(x, y int) float64 { return mag[y*g.w+x] })
	if len(means) == 0 {
		return 1
	}
	mean, std := meanStd(means)
	if mean == 0 {
		return 1
	}
	return clamp01(1 / (1 + std/mean))
}

func regionMeans(g *grayImage, value func(x, y int) float64) []float64 {
	cw, ch := g.w/gridCells, g.h/gridCells
	if cw == 0 || ch == 0 {
		return nil
	}
	means := make([]float64, 0, gridCells*gridCells)
	for ry := 0; ry < gridCells; ry++ {
		for rx := 0; rx < gridCells; rx++ {
			var sum float64
			for y := ry * ch; y < (ry+1)*ch; y++ {
				for x := rx * cw; x < (rx+1)*cw; x++ {
					sum += value(x, y)
				}
			}
			means = append(means, sum/float64(cw*ch))
		}
	}
	return means
}

func meanStd(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var v float64
	for _, x := range xs {
		v += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(v / float64(len(xs)))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
