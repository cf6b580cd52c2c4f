package image_test

import (
	"context"
	"testing"

	"github.com/openastro/astrocore/image"
)

// sequenceCcd hands back one pre-built image per exposure, in order, with no
// blocking.
type sequenceCcd struct {
	imgs []*image.Image
	i    int
}

func (c *sequenceCcd) StartExposure(image.Exposure) error { return nil }
func (c *sequenceCcd) Wait(ctx context.Context) error     { return ctx.Err() }
func (c *sequenceCcd) GetImage() (*image.Image, error) {
	img := c.imgs[c.i]
	c.i++
	return img, nil
}
func (c *sequenceCcd) CancelExposure() error { return nil }

func flatU16(w, h int, v uint16) *image.Image {
	img := image.NewImage(w, h, image.U16)
	px := make([]uint16, w*h)
	for i := range px {
		px[i] = v
	}
	img.SetU16(px)
	return img
}

func TestAcquireDarkTakesPerPixelMedian(t *testing.T) {
	// three frames per pixel: 10, 20, 30 -> median 20.
	ccd := &sequenceCcd{imgs: []*image.Image{flatU16(2, 2, 10), flatU16(2, 2, 30), flatU16(2, 2, 20)}}

	var progress [][2]int
	got, err := image.AcquireDark(context.Background(), ccd, image.Exposure{}, 3, func(i, n int) {
		progress = append(progress, [2]int{i, n})
	})
	if err != nil {
		t.Fatalf("AcquireDark() error = %v", err)
	}
	for _, v := range got.U16() {
		if v != 20 {
			t.Fatalf("pixel = %d, want median 20", v)
		}
	}
	if len(progress) != 3 || progress[2] != [2]int{3, 3} {
		t.Fatalf("progress = %v, want 3 calls ending at {3 3}", progress)
	}
}

func TestAcquireFlatNormalizesToUnitMean(t *testing.T) {
	ccd := &sequenceCcd{imgs: []*image.Image{flatU16(2, 2, 100), flatU16(2, 2, 200)}}

	got, err := image.AcquireFlat(context.Background(), ccd, image.Exposure{}, 2, nil)
	if err != nil {
		t.Fatalf("AcquireFlat() error = %v", err)
	}
	// mean of the two frames is a uniform 150 everywhere, so normalizing
	// to unit mean (scaled by 65535) should produce a uniform field again.
	px := got.U16()
	want := px[0]
	for _, v := range px {
		if v != want {
			t.Fatalf("flat is not uniform: got %d and %d", want, v)
		}
	}
	if want == 0 {
		t.Fatal("normalized flat should not be all-zero")
	}
}

func TestAcquireNStopsOnCancellation(t *testing.T) {
	ccd := &sequenceCcd{imgs: []*image.Image{flatU16(1, 1, 1)}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := image.AcquireDark(ctx, ccd, image.Exposure{}, 5, nil); err == nil {
		t.Fatal("expected an error from a pre-cancelled context")
	}
}
