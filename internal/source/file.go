package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spigell/jobscout/internal/listing"
)

// File reads listings from a JSON file holding either an array of
// listings or an object with an items array.
type File struct {
	path string
	name string
	now  func() time.Time
}

// NewFile creates a file collector. The source name defaults to the file
// name without its extension.
func NewFile(path, name string) *File {
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &File{path: path, name: name, now: time.Now}
}

func (f *File) Name() string { return f.name }

func (f *File) Collect(ctx context.Context) ([]*listing.Listing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("read listings file: %w", err)
	}

	doc, err := parseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse listings file %q: %w", f.path, err)
	}

	return decodeItems(doc.Items, f.name, f.now().UTC())
}

func parseDocument(data []byte) (*document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return &document{}, nil
	}

	if data[0] == '[' {
		var items []map[string]any
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, err
		}
		return &document{Items: items}, nil
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}
