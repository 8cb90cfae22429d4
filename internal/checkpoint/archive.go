package checkpoint

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// unzip extracts archive into dir and returns the top-level directory the
// archive unpacked to, if it has a single one.
func unzip(archive, dir string) (string, error) {
	zr, err := zip.OpenReader(archive)
	if err != nil {
		return "", fmt.Errorf("checkpoint: open archive: %w", err)
	}
	defer zr.Close()

	roots := make(map[string]struct{})
	for _, f := range zr.File {
		name := filepath.Clean(f.Name)
		if name == "." || strings.HasPrefix(name, ".."+string(os.PathSeparator)) || filepath.IsAbs(name) {
			return "", fmt.Errorf("checkpoint: archive entry %q escapes extraction dir", f.Name)
		}
		parts := strings.Split(name, string(os.PathSeparator))
		if len(parts) > 0 {
			roots[parts[0]] = struct{}{}
		}

		target := filepath.Join(dir, name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return "", fmt.Errorf("checkpoint: create dir %q: %w", target, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return "", fmt.Errorf("checkpoint: create dir for %q: %w", target, err)
		}
		if err := extractFile(f, target); err != nil {
			return "", err
		}
	}

	if len(roots) == 1 {
		for root := range roots {
			return root, nil
		}
	}
	return "", nil
}

func extractFile(f *zip.File, target string) error {
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("checkpoint: open archive entry %q: %w", f.Name, err)
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("checkpoint: create %q: %w", target, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("checkpoint: extract %q: %w", f.Name, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("checkpoint: close %q: %w", target, err)
	}
	return nil
}
