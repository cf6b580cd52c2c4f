package guiding_test

import (
	"testing"

	"github.com/openastro/astrocore/guiding"
	"github.com/openastro/astrocore/image"
)

func starImage(w, h, starX, starY int, peak uint16) *image.Image {
	img := image.NewImage(w, h, image.U16)
	px := make([]uint16, w*h)
	px[starY*w+starX] = peak
	img.SetU16(px)
	return img
}

func TestStarTrackerLocatesCentroid(t *testing.T) {
	img := starImage(20, 20, 12, 14, 60000)
	tr := guiding.NewStarTracker(guiding.Point{X: 10, Y: 12}, image.Rect{Left: 0, Top: 0, Width: 20, Height: 20}, 2)

	got, err := tr.Track(img)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if got.X != 2 || got.Y != 2 {
		t.Fatalf("Track() = %+v, want {2 2} (centroid minus reference)", got)
	}
}

func TestStarTrackerEmptyFieldReturnsZero(t *testing.T) {
	img := image.NewImage(10, 10, image.U16)
	tr := guiding.NewStarTracker(guiding.Point{}, image.Rect{Left: 0, Top: 0, Width: 10, Height: 10}, 1)

	got, err := tr.Track(img)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if got != (guiding.Point{}) {
		t.Fatalf("Track() = %+v, want zero value for a blank field", got)
	}
}

func TestNullTrackerAlwaysZero(t *testing.T) {
	got, err := (guiding.NullTracker{}).Track(starImage(5, 5, 2, 2, 1000))
	if err != nil || got != (guiding.Point{}) {
		t.Fatalf("NullTracker.Track() = %+v, %v; want zero, nil", got, err)
	}
}

func TestDifferentialTrackerAveragesTwoOffsets(t *testing.T) {
	img := starImage(30, 10, 5, 5, 50000)
	a := guiding.NewStarTracker(guiding.Point{X: 5, Y: 5}, image.Rect{Left: 0, Top: 0, Width: 30, Height: 10}, 1)
	b := guiding.NewStarTracker(guiding.Point{X: 7, Y: 5}, image.Rect{Left: 0, Top: 0, Width: 30, Height: 10}, 1)
	dt := guiding.NewDifferentialTracker(a, b)

	got, err := dt.Track(img)
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	want := guiding.Point{X: -1, Y: 0}
	if got != want {
		t.Fatalf("Track() = %+v, want %+v", got, want)
	}
}
