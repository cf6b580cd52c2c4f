// Package fitsfmt encodes and decodes image.Image as FITS files, the wire
// format spec §3/§6 names for persisted exposures.  Grounded on the
// teacher's generichttp/camera/fits.go (WriteFits), generalized from its
// hardcoded 16-bit mono path to the full image.PixelKind set, and
// supplemented with a Decode the teacher never wrote, whose keyword
// skip-list follows original_source/control/lib/image/FITSinfile.cpp.
package fitsfmt

import (
	"fmt"
	"io"

	"github.com/astrogo/fitsio"

	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/xerr"
)

// reservedKeys are the structural FITS keywords FITSinfile.cpp skips when
// recovering application metadata from a header: the mandatory keywords
// (SIMPLE, BITPIX, NAXIS*, PCOUNT, GCOUNT, XTENSION, END) plus the
// BSCALE/BZERO pair this codec uses internally for unsigned pixel storage,
// EXTEND, and every COMMENT card (which covers the two standard comment
// strings fitsio writes into every header).
var reservedKeys = map[string]bool{
	"SIMPLE": true, "BITPIX": true, "PCOUNT": true, "GCOUNT": true,
	"XTENSION": true, "END": true, "BSCALE": true, "BZERO": true,
	"EXTEND": true, "COMMENT": true,
}

func isReserved(key string) bool {
	if reservedKeys[key] {
		return true
	}
	// NAXIS, NAXIS1, NAXIS2, NAXIS3, ...
	return len(key) >= 5 && key[:5] == "NAXIS"
}

// bitpixFor reports the FITS BITPIX code and the unsigned-storage bias
// (BZERO) this codec applies so unsigned pixel data round-trips through
// FITS's signed-only integer types, matching the teacher's bzero=32768
// trick for 16-bit mono widened to every unsigned kind in spec §3.
func bitpixFor(kind image.PixelKind) (bitpix int, bzero float64, planes int, ok bool) {
	switch kind {
	case image.U8:
		return 8, 0, 1, true
	case image.U16:
		return 16, 32768, 1, true
	case image.U32:
		return 32, 2147483648, 1, true
	case image.F32:
		return -32, 0, 1, true
	case image.F64:
		return -64, 0, 1, true
	case image.RGBU8:
		return 8, 0, 3, true
	case image.RGBU16:
		return 16, 32768, 3, true
	default:
		return 0, 0, 0, false
	}
}

// Encode writes img as a single-HDU FITS file to w, translating
// img.Metadata into FITS cards in insertion order.
func Encode(w io.Writer, img *image.Image) error {
	bitpix, bzero, planes, ok := bitpixFor(img.Kind)
	if !ok {
		return fmt.Errorf("%w: fitsfmt cannot encode pixel kind %v", xerr.Unsupported, img.Kind)
	}
	if err := img.CheckSize(); err != nil {
		return err
	}

	f, err := fitsio.Create(w)
	if err != nil {
		return fmt.Errorf("creating fits stream: %w", err)
	}
	defer f.Close()

	dims := []int{img.Width, img.Height}
	if planes > 1 {
		dims = append(dims, planes)
	}
	hdu := fitsio.NewImage(bitpix, dims)
	defer hdu.Close()

	cards := metadataCards(img.Metadata)
	if bzero != 0 {
		cards = append(cards, fitsio.Card{Name: "BZERO", Value: bzero}, fitsio.Card{Name: "BSCALE", Value: 1.0})
	}
	if err := hdu.Header().Append(cards...); err != nil {
		return fmt.Errorf("writing fits header: %w", err)
	}

	data, err := pixelsToStorage(img, bitpix, bzero, planes)
	if err != nil {
		return err
	}
	if err := hdu.Write(data); err != nil {
		return fmt.Errorf("writing fits pixel data: %w", err)
	}
	return f.Write(hdu)
}

// Decode reads a single-HDU FITS file from r into a new image.Image,
// inverting Encode: the unsigned-storage bias is removed and every
// non-reserved header card becomes a Metadata entry.
func Decode(r io.Reader) (*image.Image, error) {
	f, err := fitsio.Open(r)
	if err != nil {
		return nil, fmt.Errorf("opening fits stream: %w", err)
	}
	defer f.Close()

	h, err := f.Get(0)
	if err != nil {
		return nil, fmt.Errorf("reading primary hdu: %w", err)
	}
	hdu, ok := h.(*fitsio.Image)
	if !ok {
		return nil, fmt.Errorf("%w: primary hdu is not an image", xerr.Unsupported)
	}
	axes := hdu.Axes()
	if len(axes) < 2 {
		return nil, fmt.Errorf("%w: fits image has fewer than 2 axes", xerr.Unsupported)
	}
	width, height := axes[0], axes[1]
	planes := 1
	if len(axes) > 2 {
		planes = axes[2]
	}

	kind, ok := kindFor(hdu.Bitpix(), planes)
	if !ok {
		return nil, fmt.Errorf("%w: fitsfmt cannot decode bitpix=%d planes=%d", xerr.Unsupported, hdu.Bitpix(), planes)
	}

	img := image.NewImage(width, height, kind)
	if err := storageToPixels(hdu, img, planes); err != nil {
		return nil, err
	}
	readMetadata(hdu.Header(), img.Metadata)
	return img, nil
}

func kindFor(bitpix, planes int) (image.PixelKind, bool) {
	switch {
	case bitpix == 8 && planes == 1:
		return image.U8, true
	case bitpix == 8 && planes == 3:
		return image.RGBU8, true
	case bitpix == 16 && planes == 1:
		return image.U16, true
	case bitpix == 16 && planes == 3:
		return image.RGBU16, true
	case bitpix == 32 && planes == 1:
		return image.U32, true
	case bitpix == -32:
		return image.F32, true
	case bitpix == -64:
		return image.F64, true
	default:
		return 0, false
	}
}

func metadataCards(m *image.Metadata) []fitsio.Card {
	if m == nil {
		return nil
	}
	keys := m.Keys()
	cards := make([]fitsio.Card, 0, len(keys))
	for _, k := range keys {
		c, _ := m.Get(k)
		cards = append(cards, fitsio.Card{Name: k, Value: c.Value, Comment: c.Comment})
	}
	return cards
}

func readMetadata(h *fitsio.Header, m *image.Metadata) {
	for _, c := range h.Keys() {
		if isReserved(c) {
			continue
		}
		card := h.Get(c)
		if card == nil {
			continue
		}
		m.Set(c, image.Card{Value: card.Value, Comment: card.Comment, Typed: true})
	}
}
