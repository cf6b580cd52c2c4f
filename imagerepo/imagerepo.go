// Package imagerepo implements spec §6's image repository: a filesystem
// directory plus a SQLite database keyed "<basedir>/.files.db", saving
// exposures under unique "XXXXXXXX.fits" filenames. Grounded on persist's
// Table[T]/Adapter[T] glue and banshee-data-velocity.report's use of
// google/uuid for row identity.
package imagerepo

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/openastro/astrocore/fitsfmt"
	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/persist"
	"github.com/openastro/astrocore/xerr"
)

// Repository is the filesystem+database pair spec §6 describes: a base
// directory holding FITS files and a sqlite database ("<basedir>/.files.db")
// holding one row per image plus its ordered metadata.
type Repository struct {
	baseDir string
	db      *persist.DB
	images  *persist.ImageTable
}

// Open opens (creating if necessary) the image repository rooted at
// baseDir, migrating "<baseDir>/.files.db" to the current schema.
func Open(baseDir string) (*Repository, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating repository directory %s: %w", baseDir, err)
	}
	db, err := persist.Open(filepath.Join(baseDir, ".files.db"))
	if err != nil {
		return nil, err
	}
	images, err := persist.NewImageTable(db.DB)
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Repository{baseDir: baseDir, db: db, images: images}, nil
}

// Close releases the repository's database handle.
func (r *Repository) Close() error {
	return r.db.Close()
}

// Save encodes img as FITS, writes it under a newly generated unique
// filename, and records a database row plus one metadata row per key (spec
// §8 invariant 7). observedAt is the observation timestamp; purpose,
// ccdTemperature, and bayer carry the fields spec §6 names explicitly
// outside the generic Metadata bag.
func (r *Repository) Save(img *image.Image, purpose image.Purpose, exposureTime time.Duration, ccdTemperature float64, bayer string, observedAt time.Time) (filename string, err error) {
	filename, path, err := r.reserveFilename()
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	if err := fitsfmt.Encode(f, img); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("encoding %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("closing %s: %w", path, err)
	}

	info, err := os.Stat(path)
	if err != nil {
		os.Remove(path)
		return "", fmt.Errorf("statting %s: %w", path, err)
	}

	rec := &persist.ImageRecord{
		UUID:           uuid.NewString(),
		Filename:       filename,
		Filesize:       info.Size(),
		Width:          img.Width,
		Height:         img.Height,
		Bitdepth:       img.Kind.BytesPerPixel() * 8,
		PixelType:      img.Kind,
		ExposureTime:   exposureTime,
		CcdTemperature: ccdTemperature,
		Purpose:        purpose,
		Bayer:          bayer,
		ObservedAt:     observedAt,
	}
	if _, err := r.images.Add(rec, img.Metadata); err != nil {
		os.Remove(path)
		return "", err
	}
	return filename, nil
}

// Get reads filename's FITS file back into an Image.
func (r *Repository) Get(filename string) (*image.Image, error) {
	if _, err := r.images.ByFilename(filename); err != nil {
		return nil, err
	}
	f, err := os.Open(filepath.Join(r.baseDir, filename))
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", filename, err)
	}
	defer f.Close()
	return fitsfmt.Decode(f)
}

// Exists reports whether filename has both a file and a database row.
func (r *Repository) Exists(filename string) (bool, error) {
	ok, err := r.images.Exists(filename)
	if err != nil || !ok {
		return false, err
	}
	if _, err := os.Stat(filepath.Join(r.baseDir, filename)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Remove deletes filename's file, database row, and cascaded metadata rows
// (spec §6: "removal deletes the file, the image row, and cascades to
// metadata rows").
func (r *Repository) Remove(filename string) error {
	rec, err := r.images.ByFilename(filename)
	if err != nil {
		return err
	}
	if err := r.images.Remove(rec.ID); err != nil {
		return err
	}
	if err := os.Remove(filepath.Join(r.baseDir, filename)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing %s: %w", filename, err)
	}
	return nil
}

// reserveFilename generates a fresh "XXXXXXXX.fits" name (8 random hex
// digits, spec §6's naming rule) and retries on the astronomically
// unlikely collision with an existing file.
func (r *Repository) reserveFilename() (name, path string, err error) {
	for attempt := 0; attempt < 10; attempt++ {
		stem, err := randomHex(4)
		if err != nil {
			return "", "", fmt.Errorf("generating unique filename: %w", err)
		}
		name = stem + ".fits"
		path = filepath.Join(r.baseDir, name)
		if _, statErr := os.Stat(path); os.IsNotExist(statErr) {
			return name, path, nil
		}
	}
	return "", "", fmt.Errorf("%w: could not find an unused filename after 10 attempts", xerr.BadDatabase)
}

func randomHex(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
