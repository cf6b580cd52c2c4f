package persist

import (
	"database/sql"
	"fmt"

	"github.com/openastro/astrocore/xerr"
)

type configRow struct {
	ID                       int64
	Domain, Section, Name    string
	Value                    string
}

type configAdapter struct{}

func (configAdapter) TableName() string      { return "global_config" }
func (configAdapter) CreateStatement() string { return "" }
func (configAdapter) Columns() []string       { return []string{"domain", "section", "name", "value"} }
func (configAdapter) Values(r *configRow) []any {
	return []any{r.Domain, r.Section, r.Name, r.Value}
}
func (configAdapter) Scan(row *sql.Rows) (*configRow, error) {
	r := &configRow{}
	err := row.Scan(&r.ID, &r.Domain, &r.Section, &r.Name, &r.Value)
	return r, err
}

// GlobalConfigTable is the (domain, section, name) -> value key-value store
// of spec §6's "Configuration": read-through to the database with no
// in-memory cache, so external writes are always visible on the next Get.
type GlobalConfigTable struct {
	t *Table[*configRow]
}

func NewGlobalConfigTable(db *sql.DB) (*GlobalConfigTable, error) {
	t, err := NewTable[*configRow](db, configAdapter{})
	if err != nil {
		return nil, err
	}
	return &GlobalConfigTable{t: t}, nil
}

// Get reads the value for (domain, section, name); it always queries the
// database, never a cache, so a write from another process is visible
// immediately.
func (c *GlobalConfigTable) Get(domain, section, name string) (string, error) {
	rows, err := c.t.SelectRows("domain = ? AND section = ? AND name = ?", domain, section, name)
	if err != nil {
		return "", err
	}
	if len(rows) == 0 {
		return "", fmt.Errorf("%s/%s/%s: %w", domain, section, name, xerr.NotFound)
	}
	return rows[0].Value, nil
}

// Set inserts or overwrites the value for (domain, section, name).
func (c *GlobalConfigTable) Set(domain, section, name, value string) error {
	id, ok, err := c.t.ID("domain = ? AND section = ? AND name = ?", domain, section, name)
	if err != nil {
		return err
	}
	row := &configRow{Domain: domain, Section: section, Name: name, Value: value}
	if ok {
		return c.t.Update(id, row)
	}
	_, err = c.t.Add(row)
	return err
}
