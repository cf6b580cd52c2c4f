package persist

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/openastro/astrocore/image"
	"github.com/openastro/astrocore/xerr"
)

// ImageRecord is one row of the image repository's "images" table (spec §6's
// image repository schema: filename, filesize, width, height, bitdepth,
// pixeltype, exposure, ccd temperature, purpose, Bayer pattern, observation
// timestamp, UUID).
type ImageRecord struct {
	ID             int64
	UUID           string
	Filename       string
	Filesize       int64
	Width, Height  int
	Bitdepth       int
	PixelType      image.PixelKind
	ExposureTime   time.Duration
	CcdTemperature float64
	Purpose        image.Purpose
	Bayer          string
	ObservedAt     time.Time
}

type imageAdapter struct{}

func (imageAdapter) TableName() string      { return "images" }
func (imageAdapter) CreateStatement() string { return "" }

var imageColumns = []string{
	"uuid", "filename", "filesize", "width", "height", "bitdepth", "pixeltype",
	"exposure_time_ms", "ccd_temperature", "purpose", "bayer", "observed_at",
}

func (imageAdapter) Columns() []string { return imageColumns }

func (imageAdapter) Values(r *ImageRecord) []any {
	return []any{
		r.UUID, r.Filename, r.Filesize, r.Width, r.Height, r.Bitdepth, int(r.PixelType),
		r.ExposureTime.Milliseconds(), r.CcdTemperature, int(r.Purpose), r.Bayer, r.ObservedAt.Unix(),
	}
}

func (imageAdapter) Scan(row *sql.Rows) (*ImageRecord, error) {
	r := &ImageRecord{}
	var pixelType, purpose int
	var expMS, observedAt int64
	err := row.Scan(&r.ID, &r.UUID, &r.Filename, &r.Filesize, &r.Width, &r.Height, &r.Bitdepth,
		&pixelType, &expMS, &r.CcdTemperature, &purpose, &r.Bayer, &observedAt)
	if err != nil {
		return nil, err
	}
	r.PixelType = image.PixelKind(pixelType)
	r.ExposureTime = time.Duration(expMS) * time.Millisecond
	r.Purpose = image.Purpose(purpose)
	r.ObservedAt = time.Unix(observedAt, 0)
	return r, nil
}

type imageMetadataRow struct {
	ID      int64
	ImageID int64
	Seq     int
	Key     string
	Value   string
	Comment string
	Typed   bool
}

type imageMetadataAdapter struct{}

func (imageMetadataAdapter) TableName() string      { return "image_metadata" }
func (imageMetadataAdapter) CreateStatement() string { return "" }
func (imageMetadataAdapter) Columns() []string {
	return []string{"image_id", "key", "value", "comment", "typed", "seq"}
}

func (imageMetadataAdapter) Values(r *imageMetadataRow) []any {
	return []any{r.ImageID, r.Key, r.Value, r.Comment, r.Typed, r.Seq}
}

func (imageMetadataAdapter) Scan(row *sql.Rows) (*imageMetadataRow, error) {
	r := &imageMetadataRow{}
	err := row.Scan(&r.ID, &r.ImageID, &r.Key, &r.Value, &r.Comment, &r.Typed, &r.Seq)
	return r, err
}

// ImageTable persists ImageRecords and one metadata row per key, cascading
// metadata removal on image removal (spec §6's image repository: "removal
// deletes the file, the image row, and cascades to metadata rows"; §8
// invariant 7: "exactly one metadata row per key").
type ImageTable struct {
	images   *Table[*ImageRecord]
	metadata *Table[*imageMetadataRow]
}

func NewImageTable(db *sql.DB) (*ImageTable, error) {
	images, err := NewTable[*ImageRecord](db, imageAdapter{})
	if err != nil {
		return nil, err
	}
	md, err := NewTable[*imageMetadataRow](db, imageMetadataAdapter{})
	if err != nil {
		return nil, err
	}
	return &ImageTable{images: images, metadata: md}, nil
}

// Add inserts rec and one metadata row per key in m, in insertion order.
func (it *ImageTable) Add(rec *ImageRecord, m *image.Metadata) (int64, error) {
	id, err := it.images.Add(rec)
	if err != nil {
		return 0, err
	}
	if m != nil {
		for seq, key := range m.Keys() {
			c, _ := m.Get(key)
			row := &imageMetadataRow{ImageID: id, Seq: seq, Key: key, Comment: c.Comment, Typed: c.Typed}
			row.Value = formatCardValue(c.Value)
			if _, err := it.metadata.Add(row); err != nil {
				return 0, err
			}
		}
	}
	return id, nil
}

// ByFilename returns the record stored under filename.
func (it *ImageTable) ByFilename(filename string) (*ImageRecord, error) {
	id, ok, err := it.images.ID("filename = ?", filename)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, recordNotFound(filename)
	}
	return it.images.ByID(id)
}

// Exists reports whether filename has a row.
func (it *ImageTable) Exists(filename string) (bool, error) {
	n, err := it.images.Count("filename = ?", filename)
	return n > 0, err
}

// Metadata reconstructs the ordered Metadata for imageID.
func (it *ImageTable) Metadata(imageID int64) (*image.Metadata, error) {
	rows, err := it.metadata.SelectRows("image_id = ? ORDER BY seq ASC", imageID)
	if err != nil {
		return nil, err
	}
	m := image.NewMetadata()
	for _, r := range rows {
		m.Set(r.Key, image.Card{Value: r.Value, Comment: r.Comment, Typed: r.Typed})
	}
	return m, nil
}

// Remove deletes imageID's row and cascades to its metadata.
func (it *ImageTable) Remove(imageID int64) error {
	if _, err := it.metadata.RemoveWhere("image_id = ?", imageID); err != nil {
		return err
	}
	return it.images.Remove(imageID)
}

func recordNotFound(filename string) error {
	return fmt.Errorf("%s: %w", filename, xerr.NotFound)
}

func formatCardValue(v interface{}) string {
	switch t := v.(type) {
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		return fmt.Sprint(v)
	}
}
