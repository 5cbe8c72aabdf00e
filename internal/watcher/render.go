package watcher

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	chaterrors "github.com/conneroisu/chatmark/internal/errors"
	"github.com/conneroisu/chatmark/internal/logging"
	"github.com/conneroisu/chatmark/internal/markdown"
	"github.com/conneroisu/chatmark/internal/validation"
)

// OutputPath returns the sibling .html path for a markdown source.
func OutputPath(src string) string {
	return strings.TrimSuffix(src, filepath.Ext(src)) + ".html"
}

// HTMLWriter renders markdown sources into sibling HTML fragments.
type HTMLWriter struct {
	renderer *markdown.Renderer
	logger   logging.Logger
}

// NewHTMLWriter returns a writer using renderer.
func NewHTMLWriter(renderer *markdown.Renderer, logger logging.Logger) *HTMLWriter {
	if logger == nil {
		logger = logging.Discard()
	}
	return &HTMLWriter{renderer: renderer, logger: logger.WithComponent("html-writer")}
}

// RenderFile renders src and replaces its output file atomically. It returns
// the output path.
func (w *HTMLWriter) RenderFile(src string) (string, error) {
	if err := validation.ValidateFileExtension(src, MarkdownExtensions); err != nil {
		return "", err
	}

	op := logging.StartOperation(w.logger, "render_file")
	raw, err := os.ReadFile(src)
	if err != nil {
		err = chaterrors.WrapIO(err, chaterrors.ErrCodeFileNotFound, "cannot read "+src)
		op.EndWithError(context.Background(), err, "source", src)
		return "", err
	}

	out := OutputPath(src)
	if err := writeAtomic(out, []byte(w.renderer.Render(string(raw)))); err != nil {
		err = chaterrors.WrapIO(err, chaterrors.ErrCodeRenderFailed, "cannot write "+out)
		op.EndWithError(context.Background(), err, "source", src)
		return "", err
	}
	op.End(context.Background(), "source", src, "output", out)
	return out, nil
}

// Remove deletes the output belonging to src, if any.
func (w *HTMLWriter) Remove(src string) error {
	out := OutputPath(src)
	if err := os.Remove(out); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return chaterrors.WrapIO(err, chaterrors.ErrCodeRenderFailed, "cannot remove "+out)
	}
	return nil
}

// RenderTree renders every markdown file under root, skipping directories
// rejected by dirFilter. It returns the number of files written.
func (w *HTMLWriter) RenderTree(ctx context.Context, root string, dirFilter FileFilter) (int, error) {
	count := 0
	var errs []error

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			if path != root && dirFilter != nil && !dirFilter(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !MarkdownFilter(path) {
			return nil
		}

		out, err := w.RenderFile(path)
		if err != nil {
			errs = append(errs, err)
			return nil
		}
		count++
		w.logger.Debug(ctx, "Rendered markdown", "source", path, "output", out)
		return nil
	})
	if walkErr != nil {
		errs = append(errs, walkErr)
	}

	return count, errors.Join(errs...)
}

// Handle is a ChangeHandler that keeps outputs in step with their sources.
func (w *HTMLWriter) Handle(ctx context.Context, events []ChangeEvent) error {
	var errs []error

	for _, event := range events {
		if event.Type.Gone() {
			if err := w.Remove(event.Path); err != nil {
				errs = append(errs, err)
				continue
			}
			w.logger.Info(ctx, "Removed rendered output", "source", event.Path)
			continue
		}

		out, err := w.RenderFile(event.Path)
		if err != nil {
			// The source may be gone again by the time the batch is handled.
			if errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, w.Remove(event.Path))
				continue
			}
			errs = append(errs, err)
			continue
		}
		w.logger.Info(ctx, "Rendered markdown", "source", event.Path, "output", out, "event", event.Type.String())
	}

	return errors.Join(errs...)
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chatmark-*.tmp")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
