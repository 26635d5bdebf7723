package display

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// LabelTable maps class ids to display names by position.
type LabelTable struct {
	Names []string
}

// NewLabelTable builds a table from names, NFC-normalized.
func NewLabelTable(names ...string) LabelTable {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = norm.NFC.String(n)
	}
	return LabelTable{Names: out}
}

// Name returns the label for id, or "class_<id>" when the id has no entry.
func (lt LabelTable) Name(id uint32) string {
	if int(id) < len(lt.Names) && lt.Names[id] != "" {
		return lt.Names[id]
	}
	return "class_" + strconv.FormatUint(uint64(id), 10)
}

// Len returns the number of labels.
func (lt LabelTable) Len() int {
	return len(lt.Names)
}

// processLine trims whitespace (including a trailing \r) and the UTF-8 BOM on
// the first line.
func processLine(line string, lineNum int) string {
	if lineNum == 1 {
		line = strings.TrimPrefix(line, "\uFEFF")
	}
	return norm.NFC.String(strings.TrimSpace(line))
}

// ReadLabels reads one label per line. Blank lines keep their index so ids
// stay aligned with the model; trailing blank lines are dropped.
func ReadLabels(r io.Reader) (LabelTable, error) {
	scanner := bufio.NewScanner(r)
	names := make([]string, 0, 80)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		names = append(names, processLine(scanner.Text(), lineNum))
	}
	if err := scanner.Err(); err != nil {
		return LabelTable{}, fmt.Errorf("failed reading labels: %w", err)
	}
	for len(names) > 0 && names[len(names)-1] == "" {
		names = names[:len(names)-1]
	}
	if len(names) == 0 {
		return LabelTable{}, errors.New("label file is empty")
	}
	return LabelTable{Names: names}, nil
}

// LoadLabels loads a newline-separated labels file.
func LoadLabels(path string) (LabelTable, error) {
	if path == "" {
		return LabelTable{}, errors.New("labels path cannot be empty")
	}
	f, err := os.Open(path) //nolint:gosec // G304: Opening user-provided labels file is expected
	if err != nil {
		return LabelTable{}, fmt.Errorf("failed to open labels: %w", err)
	}
	defer func() { _ = f.Close() }()

	lt, err := ReadLabels(f)
	if err != nil {
		return LabelTable{}, fmt.Errorf("%s: %w", path, err)
	}
	return lt, nil
}
