package schema

import (
	"io"
	"math/rand"
	"sort"
	"time"

	"github.com/ajitpratap0/strata/pkg/config"
	"github.com/ajitpratap0/strata/pkg/jsonvalue"
	"github.com/ajitpratap0/strata/pkg/logger"
	"go.uber.org/zap"
)

// RecordSource yields normalized record objects one at a time. Next returns
// io.EOF when the source is exhausted.
type RecordSource interface {
	Next() (map[string]interface{}, error)
}

// FieldSchema is the unified view of one flattened column.
type FieldSchema struct {
	Name     string   `json:"name"`
	Tag      *TypeTag `json:"-"`
	Type     string   `json:"type"`
	Nullable bool     `json:"nullable"`
	Observed int64    `json:"observed"`
}

// FileSchema is the unified schema of a sampled file. Field order is
// lexicographic by flattened name so inference output is deterministic for a
// given sample.
type FileSchema struct {
	Fields      map[string]*FieldSchema `json:"fields"`
	RecordCount int64                   `json:"sampled_records"`
}

// Names returns the field names in lexicographic order.
func (fs *FileSchema) Names() []string {
	names := make([]string, 0, len(fs.Fields))
	for name := range fs.Fields {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Field retrieves a field schema by flattened name.
func (fs *FileSchema) Field(name string) (*FieldSchema, bool) {
	f, ok := fs.Fields[name]
	return f, ok
}

// Equal reports whether two schemas have the same fields, tags and
// nullability. Observation counts are not compared.
func (fs *FileSchema) Equal(other *FileSchema) bool {
	if other == nil || len(fs.Fields) != len(other.Fields) {
		return false
	}
	for name, f := range fs.Fields {
		o, ok := other.Fields[name]
		if !ok || f.Nullable != o.Nullable || !f.Tag.Equal(o.Tag) {
			return false
		}
	}
	return true
}

// Engine folds record observations into a FileSchema using the Merge lattice.
type Engine struct {
	cfg config.InferenceConfig
	rng *rand.Rand
}

// NewEngine builds an inference engine from the configured sampling policy.
func NewEngine(cfg config.InferenceConfig) *Engine {
	return &Engine{
		cfg: cfg,
		rng: rand.New(rand.NewSource(effectiveSeed(cfg.Seed))),
	}
}

// effectiveSeed resolves the configured sampling seed; zero means time-based.
func effectiveSeed(seed int64) int64 {
	if seed != 0 {
		return seed
	}
	return time.Now().UnixNano()
}

// Infer samples records from src and unifies their types. With the "first"
// strategy it reads at most SampleSize records and stops; with "random" it
// reservoir-samples SampleSize records from the whole source so late records
// have equal weight. A SampleSize of zero or less means no cap.
func (e *Engine) Infer(src RecordSource) (*FileSchema, error) {
	sample, scanned, err := e.collect(src)
	if err != nil {
		return nil, err
	}

	fs := &FileSchema{Fields: make(map[string]*FieldSchema)}
	if len(sample) == 0 {
		logger.Warn("no records available for schema inference, emitting empty schema")
		return fs, nil
	}
	for _, rec := range sample {
		e.observe(fs, rec)
	}
	fs.RecordCount = int64(len(sample))

	// A field absent from some sampled record behaves as null there.
	for _, f := range fs.Fields {
		if f.Observed < fs.RecordCount {
			f.Nullable = true
		}
		f.Type = f.Tag.String()
	}

	logger.Debug("schema inference complete",
		zap.Int("fields", len(fs.Fields)),
		zap.Int64("sampled", fs.RecordCount),
		zap.Int64("scanned", scanned))
	return fs, nil
}

func (e *Engine) collect(src RecordSource) ([]map[string]interface{}, int64, error) {
	limit := e.cfg.SampleSize
	var sample []map[string]interface{}
	var scanned int64
	for {
		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, scanned, err
		}
		scanned++
		switch {
		case limit <= 0 || len(sample) < limit:
			sample = append(sample, rec)
		case e.cfg.Strategy == config.SampleRandom:
			// Reservoir replacement keeps a uniform sample of size limit.
			if j := e.rng.Int63n(scanned); j < int64(limit) {
				sample[j] = rec
			}
		default:
			return sample, scanned, nil
		}
	}
	return sample, scanned, nil
}

func (e *Engine) observe(fs *FileSchema, rec map[string]interface{}) {
	flat := jsonvalue.Flatten(rec)
	for name, v := range flat {
		f, ok := fs.Fields[name]
		if !ok {
			f = &FieldSchema{Name: name, Tag: Null()}
			fs.Fields[name] = f
		}
		f.Observed++
		if v == nil {
			f.Nullable = true
		}
		f.Tag = Merge(f.Tag, Classify(v))
	}
}
