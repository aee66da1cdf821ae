package render

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/joseph-ayodele/patient-docs/constants"
)

// ErrTemplateNotFound is wrapped when the template resource does not exist.
var ErrTemplateNotFound = errors.New("template not found")

// Template is a read-only handle to a document template. Load returns the full template
// bytes; the renderer never writes back.
type Template interface {
	Name() string
	Load(ctx context.Context) ([]byte, error)
}

// DocTypeOf resolves the document type from the template name's extension.
func DocTypeOf(t Template) constants.DocType {
	return constants.MapExtToDocType(filepath.Ext(t.Name()))
}

// FileTemplate is a template on the local filesystem.
type FileTemplate struct {
	Path string
}

func (f FileTemplate) Name() string { return f.Path }

func (f FileTemplate) Load(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	st, err := os.Stat(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, f.Path)
	}
	if err != nil {
		return nil, err
	}
	if st.IsDir() {
		return nil, fmt.Errorf("template %s is a directory", f.Path)
	}
	return os.ReadFile(f.Path)
}

// Exists reports whether the template file is present and readable as a file.
func (f FileTemplate) Exists() bool {
	st, err := os.Stat(f.Path)
	return err == nil && !st.IsDir()
}

// BytesTemplate is an in-memory template, e.g. an uploaded or embedded file.
type BytesTemplate struct {
	Filename string
	Data     []byte
}

func (b BytesTemplate) Name() string { return b.Filename }

func (b BytesTemplate) Load(context.Context) ([]byte, error) {
	if b.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, b.Filename)
	}
	return b.Data, nil
}
