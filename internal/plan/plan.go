// Package plan parses and formats the study plan subject list.
package plan

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Parse reads one subject label per line, dropping blanks and repeats.
func Parse(text string) []string {
	labels := []string{}
	seen := map[string]struct{}{}
	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		key := strings.ToLower(line)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		labels = append(labels, line)
	}
	return labels
}

// Format renders labels one per line with a trailing newline.
func Format(labels []string) string {
	if len(labels) == 0 {
		return ""
	}
	return strings.Join(labels, "\n") + "\n"
}

// LoadFile reads a plan from the provided file path.
func LoadFile(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	labels := Parse(string(raw))
	if len(labels) == 0 {
		return nil, fmt.Errorf("plan file %s has no subjects", path)
	}
	return labels, nil
}
