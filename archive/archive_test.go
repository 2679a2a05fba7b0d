package archive

import (
	"archive/tar"
	"compress/gzip"
	"os"
	"path/filepath"
	"sort"
	"testing"
)

func TestCreateTarGzIncludesTopLevelFilesOnly(t *testing.T) {
	src := t.TempDir()
	mustWrite(t, filepath.Join(src, "metrics_stats.csv"), "op,count\nupload,10\n")
	mustWrite(t, filepath.Join(src, "report.html"), "<html></html>")
	if err := os.Mkdir(filepath.Join(src, "subdir"), 0o755); err != nil {
		t.Fatalf("Mkdir: %v", err)
	}
	mustWrite(t, filepath.Join(src, "subdir", "ignored.txt"), "should not appear")

	archivePath := filepath.Join(t.TempDir(), "testrun.tar.gz")
	written, err := CreateTarGz(src, archivePath)
	if err != nil {
		t.Fatalf("CreateTarGz: %v", err)
	}

	sort.Strings(written)
	want := []string{"metrics_stats.csv", "report.html"}
	if len(written) != len(want) {
		t.Fatalf("written = %v, want %v", written, want)
	}
	for i := range want {
		if written[i] != want[i] {
			t.Fatalf("written = %v, want %v", written, want)
		}
	}

	names := readTarNames(t, archivePath)
	sort.Strings(names)
	if len(names) != 2 || names[0] != "metrics_stats.csv" || names[1] != "report.html" {
		t.Fatalf("archive contains %v, want %v", names, want)
	}
}

func mustWrite(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile %s: %v", path, err)
	}
}

func readTarNames(t *testing.T, archivePath string) []string {
	t.Helper()
	f, err := os.Open(archivePath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader: %v", err)
	}
	defer gz.Close()

	tr := tar.NewReader(gz)
	var names []string
	for {
		hdr, err := tr.Next()
		if err != nil {
			break
		}
		names = append(names, hdr.Name)
	}
	return names
}
