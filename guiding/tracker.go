// Package guiding implements the autoguiding closed loop of spec §4.D:
// pluggable Trackers, the geometric/temporal Calibration process, the
// periodic GuidingProcess, and backlash analysis.
package guiding

import (
	"math"

	"github.com/openastro/astrocore/image"
)

// Point is a pixel-plane offset or position.
type Point struct {
	X, Y float64
}

// Sub returns p-q.
func (p Point) Sub(q Point) Point {
	return Point{p.X - q.X, p.Y - q.Y}
}

// Tracker reduces an image to a pixel offset from some reference, per spec
// §4.D.1.  Implementations are stateless with respect to history: the
// guiding process, not the tracker, does temporal filtering.
type Tracker interface {
	Track(img *image.Image) (Point, error)
}

// NullTracker always returns the zero offset, grounded on the original's
// trivial Tracker subclass used when no star tracking is wanted.
type NullTracker struct{}

func (NullTracker) Track(*image.Image) (Point, error) {
	return Point{}, nil
}

// StarTracker finds the brightest pixel inside Rectangle, then computes the
// luminance-weighted centroid over its (2k+1)x(2k+1) neighborhood, matching
// spec §4.D.1 / the original's StarDetector::operator() (AstroGuiding.h).
// Only U16 images are supported, matching typical mono guide cameras.
type StarTracker struct {
	Reference Point
	Rectangle image.Rect
	K         int
}

func NewStarTracker(reference Point, rect image.Rect, k int) *StarTracker {
	return &StarTracker{Reference: reference, Rectangle: rect, K: k}
}

func (t *StarTracker) Track(img *image.Image) (Point, error) {
	px := img.U16()
	r := t.Rectangle

	maxX, maxY, maxVal := -1, -1, -1.0
	for y := 0; y < r.Height; y++ {
		for x := 0; x < r.Width; x++ {
			ix, iy := r.Left+x, r.Top+y
			if ix < 0 || iy < 0 || ix >= img.Width || iy >= img.Height {
				continue
			}
			v := float64(px[iy*img.Width+ix])
			if v > maxVal {
				maxVal = v
				maxX, maxY = ix, iy
			}
		}
	}
	if maxX < 0 {
		return Point{}, nil
	}

	var xsum, ysum, wsum float64
	for y := maxY - t.K; y <= maxY+t.K; y++ {
		if y < 0 || y >= img.Height {
			continue
		}
		for x := maxX - t.K; x <= maxX+t.K; x++ {
			if x < 0 || x >= img.Width {
				continue
			}
			v := float64(px[y*img.Width+x])
			wsum += v
			xsum += float64(x) * v
			ysum += float64(y) * v
		}
	}
	if wsum == 0 {
		return Point{X: float64(maxX) - t.Reference.X, Y: float64(maxY) - t.Reference.Y}, nil
	}
	return Point{X: xsum/wsum - t.Reference.X, Y: ysum/wsum - t.Reference.Y}, nil
}

// PhaseTracker retains a reference image and reports the shift of each
// subsequent image relative to it via phase correlation, for fields with no
// single good guide star (spec §4.D.1).
type PhaseTracker struct {
	reference []uint16
	w, h      int
}

func NewPhaseTracker(reference *image.Image) *PhaseTracker {
	return &PhaseTracker{reference: reference.U16(), w: reference.Width, h: reference.Height}
}

// Track estimates the translational shift by cross-correlating img against
// the stored reference over a small search window, a spatial-domain stand-in
// for the original's FFT phase correlation (no FFT library is in the
// retrieved pack; gonum has no phase-correlation primitive either).
func (t *PhaseTracker) Track(img *image.Image) (Point, error) {
	if img.Width != t.w || img.Height != t.h {
		return Point{}, nil
	}
	cur := img.U16()
	const window = 8
	bestScore := math.Inf(-1)
	var best Point
	for dy := -window; dy <= window; dy++ {
		for dx := -window; dx <= window; dx++ {
			score := correlationAt(t.reference, cur, t.w, t.h, dx, dy)
			if score > bestScore {
				bestScore = score
				best = Point{X: float64(dx), Y: float64(dy)}
			}
		}
	}
	return best, nil
}

func correlationAt(ref, cur []uint16, w, h, dx, dy int) float64 {
	var sum float64
	var n int
	for y := 0; y < h; y++ {
		sy := y + dy
		if sy < 0 || sy >= h {
			continue
		}
		for x := 0; x < w; x++ {
			sx := x + dx
			if sx < 0 || sx >= w {
				continue
			}
			sum += float64(ref[y*w+x]) * float64(cur[sy*w+sx])
			n++
		}
	}
	if n == 0 {
		return math.Inf(-1)
	}
	return sum / float64(n)
}

// DifferentialTracker tracks the offset between two bright regions rather
// than a single star, for extended or double sources (spec §4.D.1).  It
// delegates to two StarTrackers, each already reporting its own
// offset-from-reference, and averages them.
type DifferentialTracker struct {
	A, B *StarTracker
}

func NewDifferentialTracker(a, b *StarTracker) *DifferentialTracker {
	return &DifferentialTracker{A: a, B: b}
}

func (t *DifferentialTracker) Track(img *image.Image) (Point, error) {
	pa, err := t.A.Track(img)
	if err != nil {
		return Point{}, err
	}
	pb, err := t.B.Track(img)
	if err != nil {
		return Point{}, err
	}
	return Point{X: (pa.X + pb.X) / 2, Y: (pa.Y + pb.Y) / 2}, nil
}

// LargeTracker is a StarTracker for widely-separated or extended features
// (spec §4.D.1). NewLargeTracker uses the window and aperture the caller
// passes, with no larger defaults of its own, and it reuses StarTracker's
// centroiding unchanged.
type LargeTracker struct {
	*StarTracker
}

func NewLargeTracker(reference Point, rect image.Rect, k int) *LargeTracker {
	return &LargeTracker{StarTracker: NewStarTracker(reference, rect, k)}
}
