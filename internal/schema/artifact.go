package schema

import (
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/ajitpratap0/strata/pkg/jsonutil"
	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// Artifact is the persisted form of a FileSchema. Conversion reads this file
// back so every chunk of a later run is assembled against the same unified
// schema, independent of which records each chunk happens to contain.
type Artifact struct {
	Source      string          `json:"source"`
	Dialect     string          `json:"dialect"`
	GeneratedAt time.Time       `json:"generated_at"`
	Sampled     int64           `json:"sampled_records"`
	Fields      []ArtifactField `json:"fields"`
}

// ArtifactField is one column entry of the artifact, in lexicographic order.
type ArtifactField struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
	Observed int64  `json:"observed"`
}

// NewArtifact snapshots a FileSchema for persistence.
func NewArtifact(source, dialect string, fs *FileSchema) *Artifact {
	art := &Artifact{
		Source:      source,
		Dialect:     dialect,
		GeneratedAt: time.Now().UTC(),
		Sampled:     fs.RecordCount,
	}
	for _, name := range fs.Names() {
		f := fs.Fields[name]
		art.Fields = append(art.Fields, ArtifactField{
			Name:     f.Name,
			Type:     f.Tag.String(),
			Nullable: f.Nullable,
			Observed: f.Observed,
		})
	}
	return art
}

// Schema reconstructs the FileSchema captured by the artifact.
func (a *Artifact) Schema() (*FileSchema, error) {
	fs := &FileSchema{
		Fields:      make(map[string]*FieldSchema, len(a.Fields)),
		RecordCount: a.Sampled,
	}
	for _, f := range a.Fields {
		tag, ok := ParseTag(f.Type)
		if !ok {
			return nil, strataerrors.Newf(strataerrors.ErrorTypeConfig,
				"schema artifact field %q has unknown type %q", f.Name, f.Type)
		}
		fs.Fields[f.Name] = &FieldSchema{
			Name:     f.Name,
			Tag:      tag,
			Type:     f.Type,
			Nullable: f.Nullable,
			Observed: f.Observed,
		}
	}
	return fs, nil
}

// ArtifactPath derives the sidecar artifact path for a source file.
func ArtifactPath(source string) string {
	base := source
	if ext := filepath.Ext(base); ext != "" {
		base = base[:len(base)-len(ext)]
	}
	return base + ".schema.json"
}

// SaveArtifact writes the artifact atomically next to its final path.
func SaveArtifact(path string, a *Artifact) error {
	sort.Slice(a.Fields, func(i, j int) bool { return a.Fields[i].Name < a.Fields[j].Name })
	data, err := jsonutil.MarshalIndent(a, "", "  ")
	if err != nil {
		return strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to encode schema artifact")
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to write schema artifact")
	}
	if err := os.Rename(tmp, path); err != nil {
		return strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to finalize schema artifact")
	}
	return nil
}

// LoadArtifact reads a previously saved artifact. A missing file is an
// ErrorTypeConfig error telling the caller to run a scan first.
func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, strataerrors.Newf(strataerrors.ErrorTypeConfig,
				"schema artifact %s not found; run a scan before converting", path)
		}
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to read schema artifact")
	}
	var a Artifact
	if err := jsonutil.Unmarshal(data, &a); err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeConfig, "failed to decode schema artifact")
	}
	return &a, nil
}
