package device

import (
	"bufio"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Properties is a dotted-key device property table, loaded from the
// precedence chain described in spec §6: system file, system
// ".d/*.properties" snippets (lexicographic), "./device.properties", then
// $DEVICEPROPERTIES.  Later sources win on key collision.
type Properties map[string]string

// Get returns props[deviceName+"."+key].
func (p Properties) Get(deviceName, key string) (string, bool) {
	v, ok := p[deviceName+"."+key]
	return v, ok
}

// LoadProperties reads the full precedence chain rooted at sysconfdir and
// merges it with ./device.properties and $DEVICEPROPERTIES, in that order.
func LoadProperties(sysconfdir string) (Properties, error) {
	props := Properties{}

	sysFile := filepath.Join(sysconfdir, "device.properties")
	if err := mergeFile(props, sysFile); err != nil {
		return nil, err
	}

	dropDir := filepath.Join(sysconfdir, "device.properties.d")
	entries, err := os.ReadDir(dropDir)
	if err == nil {
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() && strings.HasSuffix(e.Name(), ".properties") {
				names = append(names, e.Name())
			}
		}
		sort.Strings(names)
		for _, n := range names {
			if err := mergeFile(props, filepath.Join(dropDir, n)); err != nil {
				return nil, err
			}
		}
	}

	if err := mergeFile(props, "device.properties"); err != nil {
		return nil, err
	}

	if env := os.Getenv("DEVICEPROPERTIES"); env != "" {
		if err := mergeFile(props, env); err != nil {
			return nil, err
		}
	}

	return props, nil
}

// mergeFile parses "key=value" lines (whitespace tolerant, "#" comments)
// from path into dst.  A missing file is not an error: earlier stages of
// the precedence chain are optional.
func mergeFile(dst Properties, path string) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		idx := strings.Index(line, "=")
		if idx < 0 {
			continue
		}
		key := strings.TrimSpace(line[:idx])
		val := strings.TrimSpace(line[idx+1:])
		dst[key] = val
	}
	return sc.Err()
}
