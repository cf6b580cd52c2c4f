package image

import (
	"context"
	"fmt"
	"sort"
)

// ProgressFunc reports (imageno, imagecount) during calibration-frame
// acquisition (spec §4.C CalibrationImageProgress callback).
type ProgressFunc func(imageno, imagecount int)

// AcquireDark takes n exposures with exp and returns the per-pixel median
// (spec §4.C).  Progress is reported through report, which may be nil.
func AcquireDark(ctx context.Context, ccd Exposer, exp Exposure, n int, report ProgressFunc) (*Image, error) {
	frames, err := acquireN(ctx, ccd, exp, n, report)
	if err != nil {
		return nil, err
	}
	return medianU16(frames)
}

// AcquireFlat takes n exposures with exp and returns a mean-normalized flat
// field (spec §4.C).
func AcquireFlat(ctx context.Context, ccd Exposer, exp Exposure, n int, report ProgressFunc) (*Image, error) {
	frames, err := acquireN(ctx, ccd, exp, n, report)
	if err != nil {
		return nil, err
	}
	avg, err := meanFrameU16(frames)
	if err != nil {
		return nil, err
	}
	normalizeFlat(avg)
	return avg, nil
}

func acquireN(ctx context.Context, ccd Exposer, exp Exposure, n int, report ProgressFunc) ([]*Image, error) {
	frames := make([]*Image, 0, n)
	for i := 0; i < n; i++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		if err := ccd.StartExposure(exp); err != nil {
			return nil, fmt.Errorf("calibration frame %d/%d: %w", i+1, n, err)
		}
		if err := ccd.Wait(ctx); err != nil {
			return nil, err
		}
		img, err := ccd.GetImage()
		if err != nil {
			return nil, err
		}
		frames = append(frames, img)
		if report != nil {
			report(i+1, n)
		}
	}
	return frames, nil
}

func medianU16(frames []*Image) (*Image, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to combine")
	}
	w, h := frames[0].Width, frames[0].Height
	out := NewImage(w, h, U16)
	npix := w * h
	col := make([]uint16, len(frames))
	result := make([]uint16, npix)
	bufs := make([][]uint16, len(frames))
	for i, f := range frames {
		bufs[i] = f.U16()
	}
	for p := 0; p < npix; p++ {
		for i := range bufs {
			col[i] = bufs[i][p]
		}
		sort.Slice(col, func(a, b int) bool { return col[a] < col[b] })
		result[p] = col[len(col)/2]
	}
	out.SetU16(result)
	return out, nil
}

func meanFrameU16(frames []*Image) (*Image, error) {
	if len(frames) == 0 {
		return nil, fmt.Errorf("no frames to combine")
	}
	w, h := frames[0].Width, frames[0].Height
	out := NewImage(w, h, U16)
	npix := w * h
	sums := make([]float64, npix)
	for _, f := range frames {
		px := f.U16()
		for p := 0; p < npix; p++ {
			sums[p] += float64(px[p])
		}
	}
	result := make([]uint16, npix)
	n := float64(len(frames))
	for p := range sums {
		result[p] = uint16(sums[p] / n)
	}
	out.SetU16(result)
	return out, nil
}

// normalizeFlat scales the flat so its mean pixel value is 1 (stored
// scaled by 65535/mean since flats are kept as U16).
func normalizeFlat(flat *Image) {
	px := flat.U16()
	mean := meanU16(px)
	if mean <= 0 {
		return
	}
	for i, v := range px {
		px[i] = uint16(clampF(float64(v)*65535/mean, 0, 65535))
	}
	flat.SetU16(px)
}
