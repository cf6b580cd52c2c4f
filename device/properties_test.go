package device_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openastro/astrocore/device"
)

func TestLoadPropertiesMergesSysconfAndSnippets(t *testing.T) {
	sysconf := t.TempDir()
	must(t, os.WriteFile(filepath.Join(sysconf, "device.properties"), []byte(
		"ccd0.gain=1.0\nccd0.offset=100\n"), 0o644))

	dropDir := filepath.Join(sysconf, "device.properties.d")
	must(t, os.MkdirAll(dropDir, 0o755))
	must(t, os.WriteFile(filepath.Join(dropDir, "10-local.properties"), []byte(
		"# a comment\nccd0.gain=2.0\n"), 0o644))

	withWorkdir(t, t.TempDir(), func() {
		props, err := device.LoadProperties(sysconf)
		must(t, err)

		if v, ok := props.Get("ccd0", "gain"); !ok || v != "2.0" {
			t.Fatalf("gain = %q, %v; want 2.0, true (snippet should win)", v, ok)
		}
		if v, ok := props.Get("ccd0", "offset"); !ok || v != "100" {
			t.Fatalf("offset = %q, %v; want 100, true", v, ok)
		}
	})
}

func TestLoadPropertiesLocalFileOverridesSysconf(t *testing.T) {
	sysconf := t.TempDir()
	must(t, os.WriteFile(filepath.Join(sysconf, "device.properties"), []byte(
		"mount0.slewrate=2.0\n"), 0o644))

	workdir := t.TempDir()
	must(t, os.WriteFile(filepath.Join(workdir, "device.properties"), []byte(
		"mount0.slewrate=5.0\n"), 0o644))

	withWorkdir(t, workdir, func() {
		props, err := device.LoadProperties(sysconf)
		must(t, err)

		if v, ok := props.Get("mount0", "slewrate"); !ok || v != "5.0" {
			t.Fatalf("slewrate = %q, %v; want 5.0, true", v, ok)
		}
	})
}

func TestLoadPropertiesMissingSysconfIsNotAnError(t *testing.T) {
	withWorkdir(t, t.TempDir(), func() {
		props, err := device.LoadProperties(filepath.Join(t.TempDir(), "does-not-exist"))
		must(t, err)
		if len(props) != 0 {
			t.Fatalf("expected empty properties, got %v", props)
		}
	})
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

func withWorkdir(t *testing.T, dir string, fn func()) {
	t.Helper()
	prev, err := os.Getwd()
	must(t, err)
	must(t, os.Chdir(dir))
	defer os.Chdir(prev)
	fn()
}
