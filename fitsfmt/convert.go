package fitsfmt

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/astrogo/fitsio"

	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/xerr"
)

// pixelsToStorage converts img's byte buffer into the typed slice fitsio
// expects for the given bitpix, applying the unsigned-storage bias.
// Multi-plane (RGB) samples keep the image's interleaved order; they are
// not rearranged into FITS's planar cube layout (storageToPixels reads
// them back in the same order).
func pixelsToStorage(img *image.Image, bitpix int, bzero float64, planes int) (interface{}, error) {
	n := img.Width * img.Height
	switch bitpix {
	case 8:
		out := make([]byte, n*planes)
		copy(out, img.Pix)
		return out, nil
	case 16:
		u16 := decodeLE16(img.Pix)
		out := make([]int16, len(u16))
		bias := int32(bzero)
		for i, v := range u16 {
			out[i] = int16(int32(v) - bias)
		}
		return out, nil
	case 32:
		out := make([]int32, n)
		for i := range out {
			v := binary.LittleEndian.Uint32(img.Pix[4*i:])
			out[i] = int32(int64(v) - int64(bzero))
		}
		return out, nil
	case -32:
		out := make([]float32, n)
		for i := range out {
			bits := binary.LittleEndian.Uint32(img.Pix[4*i:])
			out[i] = math.Float32frombits(bits)
		}
		return out, nil
	case -64:
		out := make([]float64, n)
		for i := range out {
			bits := binary.LittleEndian.Uint64(img.Pix[8*i:])
			out[i] = math.Float64frombits(bits)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("fitsfmt: unhandled bitpix %d", bitpix)
	}
}

// storageToPixels is the inverse of pixelsToStorage: it reads hdu's pixel
// data into img's byte buffer, switching on img.Kind (set by kindFor, which
// never yields a kind this codec cannot also write).
func storageToPixels(hdu *fitsio.Image, img *image.Image, planes int) error {
	n := img.Width * img.Height
	switch img.Kind {
	case image.U8, image.RGBU8:
		buf := make([]byte, n*planes)
		if err := hdu.Read(&buf); err != nil {
			return fmt.Errorf("reading fits pixel data: %w", err)
		}
		copy(img.Pix, buf)
		return nil
	case image.U16, image.RGBU16:
		buf := make([]int16, n*planes)
		if err := hdu.Read(&buf); err != nil {
			return fmt.Errorf("reading fits pixel data: %w", err)
		}
		encodeLE16Biased(buf, img.Pix)
		return nil
	case image.U32:
		buf := make([]int32, n)
		if err := hdu.Read(&buf); err != nil {
			return fmt.Errorf("reading fits pixel data: %w", err)
		}
		for i, v := range buf {
			binary.LittleEndian.PutUint32(img.Pix[4*i:], uint32(int64(v)+2147483648))
		}
		return nil
	case image.F32:
		buf := make([]float32, n)
		if err := hdu.Read(&buf); err != nil {
			return fmt.Errorf("reading fits pixel data: %w", err)
		}
		for i, v := range buf {
			binary.LittleEndian.PutUint32(img.Pix[4*i:], math.Float32bits(v))
		}
		return nil
	case image.F64:
		buf := make([]float64, n)
		if err := hdu.Read(&buf); err != nil {
			return fmt.Errorf("reading fits pixel data: %w", err)
		}
		for i, v := range buf {
			binary.LittleEndian.PutUint64(img.Pix[8*i:], math.Float64bits(v))
		}
		return nil
	default:
		return fmt.Errorf("%w: fitsfmt cannot decode pixel kind %v", xerr.Unsupported, img.Kind)
	}
}

func decodeLE16(pix []byte) []uint16 {
	out := make([]uint16, len(pix)/2)
	for i := range out {
		out[i] = uint16(pix[2*i]) | uint16(pix[2*i+1])<<8
	}
	return out
}

// encodeLE16Biased reverses the bzero=32768 bias applied on encode and
// writes the result as little-endian uint16 bytes into dst.
func encodeLE16Biased(src []int16, dst []byte) {
	for i, v := range src {
		u := uint16(int32(v) + 32768)
		dst[2*i] = byte(u)
		dst[2*i+1] = byte(u >> 8)
	}
}
