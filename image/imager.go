package image

import "math"

// Imager wraps a Ccd with optional dark-frame subtraction, flat-field
// division, and hot-pixel interpolation, applied in that order (spec §4.C).
// Only the U16 pixel kind is processed in place; other kinds pass through
// untouched, since the teacher's own fits.go path only ever handled 16-bit
// mono frames and we do not invent behavior the corpus never exercised.
type Imager struct {
	Dark            *Image
	Flat            *Image
	Interpolate     bool
	BadPixelLimitSD float64
}

// NewImager returns an Imager with interpolation disabled and no calibration
// frames loaded.
func NewImager() *Imager {
	return &Imager{BadPixelLimitSD: 5}
}

// Apply runs the enabled correction steps on img in place.
func (im *Imager) Apply(img *Image) error {
	if img.Kind != U16 {
		return nil
	}
	px := img.U16()
	if im.Dark != nil && im.Dark.Kind == U16 && sameSize(im.Dark, img) {
		dpx := im.Dark.U16()
		for i := range px {
			if uint32(px[i]) > uint32(dpx[i]) {
				px[i] -= dpx[i]
			} else {
				px[i] = 0
			}
		}
	}
	if im.Flat != nil && im.Flat.Kind == U16 && sameSize(im.Flat, img) {
		fpx := im.Flat.U16()
		mean := meanU16(fpx)
		if mean > 0 {
			for i := range px {
				px[i] = uint16(clampF(float64(px[i])*mean/float64(max16(fpx[i], 1)), 0, 65535))
			}
		}
	}
	if im.Interpolate {
		interpolateHotPixels(px, img.Width, img.Height, im.BadPixelLimitSD)
	}
	img.SetU16(px)
	return nil
}

func sameSize(a, b *Image) bool {
	return a.Width == b.Width && a.Height == b.Height
}

func meanU16(px []uint16) float64 {
	if len(px) == 0 {
		return 0
	}
	var sum float64
	for _, v := range px {
		sum += float64(v)
	}
	return sum / float64(len(px))
}

func max16(a, b uint16) uint16 {
	if a > b {
		return a
	}
	return b
}

func clampF(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// interpolateHotPixels replaces pixels exceeding limitSD standard deviations
// from their local 3x3 mean with that local mean (spec §4.C bad-pixel
// detection).
func interpolateHotPixels(px []uint16, w, h int, limitSD float64) {
	if w < 3 || h < 3 {
		return
	}
	orig := make([]uint16, len(px))
	copy(orig, px)
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			idx := y*w + x
			var sum, sumSq float64
			n := 0
			for dy := -1; dy <= 1; dy++ {
				for dx := -1; dx <= 1; dx++ {
					if dx == 0 && dy == 0 {
						continue
					}
					v := float64(orig[(y+dy)*w+(x+dx)])
					sum += v
					sumSq += v * v
					n++
				}
			}
			mean := sum / float64(n)
			variance := sumSq/float64(n) - mean*mean
			if variance < 0 {
				variance = 0
			}
			sd := math.Sqrt(variance)
			v := float64(orig[idx])
			if sd > 0 && (v-mean) > limitSD*sd {
				px[idx] = uint16(mean)
			}
		}
	}
}
