package data

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// ReadLabels reads the fixed label set, one label per line. Duplicates are
// fatal: the label order defines the class indices for the whole run.
func ReadLabels(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("data: open labels %q: %w", path, err)
	}
	defer f.Close()

	var labels []string
	seen := make(map[string]struct{})
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		label := strings.TrimSpace(sc.Text())
		if label == "" {
			continue
		}
		if _, ok := seen[label]; ok {
			return nil, fmt.Errorf("data: duplicate label %q in %s", label, path)
		}
		seen[label] = struct{}{}
		labels = append(labels, label)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("data: read labels %q: %w", path, err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("data: no labels in %s", path)
	}
	return labels, nil
}
