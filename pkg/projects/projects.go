// Package projects reads the list of repositories to crawl.
//
// Each non-blank line is either a bare "owner/name" or "<label> → owner/name";
// only the part after the last arrow is used.
package projects

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// Arrow separates a display label from the project id
const Arrow = "→"

// Rejected is a line that did not name a project
type Rejected struct {
	Line int
	Text string
	Err  error
}

// List is the parsed project list
type List struct {
	Projects   []string
	Rejected   []Rejected
	Duplicates int
}

// Validate checks that id has exactly two non-empty parts separated by "/"
func Validate(id string) error {
	parts := strings.Split(id, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("invalid project %q: want owner/name", id)
	}
	if strings.ContainsAny(id, " \t") {
		return fmt.Errorf("invalid project %q: contains whitespace", id)
	}
	return nil
}

// Parse reads a project list, keeping first occurrences in order
func Parse(r io.Reader) (*List, error) {
	list := &List{}
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		id := line
		if i := strings.LastIndex(line, Arrow); i >= 0 {
			id = strings.TrimSpace(line[i+len(Arrow):])
		}

		if err := Validate(id); err != nil {
			list.Rejected = append(list.Rejected, Rejected{Line: lineNo, Text: line, Err: err})
			continue
		}
		if seen[id] {
			list.Duplicates++
			continue
		}
		seen[id] = true
		list.Projects = append(list.Projects, id)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read project list: %w", err)
	}
	return list, nil
}

// LoadFile parses the project list at path
func LoadFile(path string) (*List, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open project list: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// FileName returns the per-project file name, "/" replaced by "_"
func FileName(id string) string {
	return strings.ReplaceAll(id, "/", "_") + ".json"
}
