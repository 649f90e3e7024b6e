package convert

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"

	"github.com/ajitpratap0/strata/pkg/compression"
	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/formats/columnar"
	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// sink is the single-owner output side of one file conversion: one artifact
// per requested format, all fed the same normalized batches. On failure the
// partial artifacts are removed so no corrupt trailer is ever left behind.
type sink struct {
	writers []columnar.Writer
	files   []*os.File
	paths   []string
}

// keepOpen hides the file's Closer from format writers. The parquet writer
// closes its sink when it is a Closer, and the sink must close each handle
// exactly once.
type keepOpen struct {
	io.Writer
}

// OutputPath derives the artifact path for a source file and format.
func OutputPath(source string, cfg config.OutputConfig, format columnar.Format) string {
	base := filepath.Base(compression.TrimExt(source))
	if ext := filepath.Ext(base); ext != "" {
		base = strings.TrimSuffix(base, ext)
	}
	return filepath.Join(cfg.Directory, base+columnar.Extension(format))
}

func openSink(source string, cfg config.OutputConfig, formats []columnar.Format, sch *arrow.Schema, compressionName string) (*sink, error) {
	if len(formats) == 0 {
		return nil, strataerrors.New(strataerrors.ErrorTypeConfig, "no output formats requested")
	}
	if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to create output directory")
	}

	s := &sink{}
	for _, format := range formats {
		path := OutputPath(source, cfg, format)
		flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
		if !cfg.Overwrite {
			flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
		}
		f, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			s.abort()
			return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to create output file")
		}
		w, err := columnar.NewWriter(keepOpen{f}, &columnar.WriterConfig{
			Format:      format,
			Schema:      sch,
			Compression: compressionName,
		})
		if err != nil {
			f.Close()
			os.Remove(path)
			s.abort()
			return nil, err
		}
		s.writers = append(s.writers, w)
		s.files = append(s.files, f)
		s.paths = append(s.paths, path)
	}
	return s, nil
}

func (s *sink) writeBatch(rec arrow.Record) error {
	for _, w := range s.writers {
		if err := w.WriteBatch(rec); err != nil {
			return err
		}
	}
	return nil
}

// close finalizes every artifact.
func (s *sink) close() error {
	var first error
	for i, w := range s.writers {
		if err := w.Close(); err != nil && first == nil {
			first = err
		}
		if err := s.files[i].Close(); err != nil && first == nil {
			first = strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to close output file")
		}
	}
	return first
}

// abort closes and removes every partial artifact.
func (s *sink) abort() {
	for i := range s.writers {
		s.files[i].Close()
		os.Remove(s.paths[i])
	}
}
