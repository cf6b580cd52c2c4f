package fitsfmt_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openastro/astrocore/fitsfmt"
	"github.com/openastro/astrocore/image"
)

func TestEncodeDecodeU16RoundTrip(t *testing.T) {
	img := image.NewImage(4, 3, image.U16)
	px := make([]uint16, 12)
	for i := range px {
		px[i] = uint16(i * 1000)
	}
	img.SetU16(px)
	img.Metadata.Set("FILTER", image.Card{Value: "Ha"})
	img.Metadata.Set("CCD-TEMP", image.Card{Value: -10.5, Typed: true})

	var buf bytes.Buffer
	require.NoError(t, fitsfmt.Encode(&buf, img))

	got, err := fitsfmt.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, img.Width, got.Width)
	require.Equal(t, img.Height, got.Height)
	require.Equal(t, image.U16, got.Kind)
	require.Equal(t, px, got.U16())

	filter, ok := got.Metadata.Get("FILTER")
	require.True(t, ok)
	require.Equal(t, "Ha", filter.Value)

	temp, ok := got.Metadata.Get("CCD-TEMP")
	require.True(t, ok)
	require.InDelta(t, -10.5, temp.Value, 1e-9)
}

func TestEncodeDecodeF32RoundTrip(t *testing.T) {
	img := image.NewImage(2, 2, image.F32)
	require.NoError(t, img.CheckSize())

	var buf bytes.Buffer
	require.NoError(t, fitsfmt.Encode(&buf, img))

	got, err := fitsfmt.Decode(&buf)
	require.NoError(t, err)
	require.Equal(t, image.F32, got.Kind)
	require.Equal(t, img.Width, got.Width)
	require.Equal(t, img.Height, got.Height)
}

func TestEncodeRejectsUnsupportedKind(t *testing.T) {
	img := image.NewImage(2, 2, image.YUYVU8)
	var buf bytes.Buffer
	err := fitsfmt.Encode(&buf, img)
	require.Error(t, err)
}

func TestEncodeRejectsBadBufferSize(t *testing.T) {
	img := image.NewImage(4, 4, image.U16)
	img.Pix = img.Pix[:4]
	var buf bytes.Buffer
	err := fitsfmt.Encode(&buf, img)
	require.Error(t, err)
}
