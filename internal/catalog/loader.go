package catalog

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/victornm/avidquiz/internal/domain"
)

// File is a JSON lesson file. Lessons without a source get Source.
type File struct {
	Path     string
	Source   string
	Optional bool
}

// LoadFiles reads lessons from each file in order. Missing optional files are skipped.
func LoadFiles(files []File) ([]domain.Lesson, error) {
	var out []domain.Lesson
	for _, f := range files {
		ls, err := LoadFile(f.Path, domain.Source(f.Source))
		if errors.Is(err, fs.ErrNotExist) && f.Optional {
			continue
		}
		if err != nil {
			return nil, err
		}
		out = append(out, ls...)
	}
	return out, nil
}

// LoadFile reads a JSON array of lessons.
func LoadFile(path string, source domain.Source) ([]domain.Lesson, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("catalog: read %s: %w", path, err)
	}

	var ls []domain.Lesson
	if err := json.Unmarshal(b, &ls); err != nil {
		return nil, fmt.Errorf("catalog: decode %s: %w", path, err)
	}

	if source == "" {
		source = domain.SourceLocal
	}
	for i := range ls {
		if ls[i].Source == "" {
			ls[i].Source = source
		}
		if !ls[i].Source.Valid() {
			return nil, fmt.Errorf("catalog: %s: lesson %q has unknown source %q", path, ls[i].Title, ls[i].Source)
		}
	}

	return ls, nil
}
