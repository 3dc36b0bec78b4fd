package csvsource

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"quizsync-service/internal/domain"
)

// DirSource loads question set "name" from "{dir}/{name}.csv".
type DirSource struct {
	dir string
}

func NewDirSource(dir string) *DirSource {
	return &DirSource{dir: dir}
}

func (s *DirSource) LoadQuestionSet(_ context.Context, name string) ([]domain.Question, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %q", domain.ErrQuestionSetNotFound, name)
	}
	f, err := os.Open(filepath.Join(s.dir, name+".csv"))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", domain.ErrQuestionSetNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("open question set: %w", err)
	}
	defer f.Close()

	questions, err := Parse(f)
	if err != nil {
		return nil, fmt.Errorf("parse question set %s: %w", name, err)
	}
	return questions, nil
}
