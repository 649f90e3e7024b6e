// Package validator re-checks input records against a persisted schema
// artifact, independently of the conversion write path.
package validator

import (
	"io"

	"github.com/ajitpratap0/strata/internal/schema"
	"github.com/ajitpratap0/strata/pkg/jsonvalue"
)

// Violation describes one record/field disagreement with the artifact.
type Violation struct {
	Record int64  `json:"record"`
	Field  string `json:"field"`
	Reason string `json:"reason"`
	Got    string `json:"got,omitempty"`
	Want   string `json:"want,omitempty"`
}

// Report summarizes a validation pass.
type Report struct {
	Records    int64       `json:"records"`
	Valid      int64       `json:"valid"`
	Violations []Violation `json:"violations,omitempty"`
	Truncated  bool        `json:"truncated,omitempty"`
}

// maxViolations caps the examples retained in a report.
const maxViolations = 100

// Validator checks records against one resolved schema.
type Validator struct {
	fs *schema.FileSchema
}

// New builds a validator from a loaded artifact.
func New(art *schema.Artifact) (*Validator, error) {
	fs, err := art.Schema()
	if err != nil {
		return nil, err
	}
	return &Validator{fs: fs}, nil
}

// Validate consumes a record stream and reports every field whose observed
// type is not covered by the artifact's resolved type, every null in a
// non-nullable field, and every field the artifact does not know.
func (v *Validator) Validate(src schema.RecordSource) (*Report, error) {
	report := &Report{}
	for {
		rec, err := src.Next()
		if err == io.EOF {
			return report, nil
		}
		if err != nil {
			return nil, err
		}
		idx := report.Records
		report.Records++
		if v.checkRecord(report, idx, rec) {
			report.Valid++
		}
	}
}

func (v *Validator) checkRecord(report *Report, idx int64, rec map[string]interface{}) bool {
	flat := jsonvalue.Flatten(rec)
	ok := true
	for _, name := range jsonvalue.SortedKeys(flat) {
		val := flat[name]
		f, known := v.fs.Fields[name]
		if !known {
			ok = false
			v.record(report, Violation{Record: idx, Field: name, Reason: "field not in schema"})
			continue
		}
		if val == nil {
			if !f.Nullable {
				ok = false
				v.record(report, Violation{Record: idx, Field: name, Reason: "null in non-nullable field"})
			}
			continue
		}
		observed := generalizeObjects(schema.Classify(val))
		// A value conforms when widening it into the resolved type is a no-op:
		// the resolved type already covers the observation.
		if !schema.Merge(f.Tag, observed).Equal(f.Tag) {
			ok = false
			v.record(report, Violation{
				Record: idx,
				Field:  name,
				Reason: "type not covered by schema",
				Got:    observed.String(),
				Want:   f.Tag.String(),
			})
		}
	}
	for name, f := range v.fs.Fields {
		if _, present := flat[name]; !present && !f.Nullable {
			ok = false
			v.record(report, Violation{Record: idx, Field: name, Reason: "required field missing"})
		}
	}
	return ok
}

// generalizeObjects strips field maps from observed Object tags. The artifact
// encoding persists objects as the bare word "object", so a declared Object
// covers any observed object shape.
func generalizeObjects(t *schema.TypeTag) *schema.TypeTag {
	if t == nil {
		return t
	}
	switch t.Kind {
	case schema.KindObject:
		return &schema.TypeTag{Kind: schema.KindObject}
	case schema.KindArray:
		return schema.ArrayOf(generalizeObjects(t.Elem))
	default:
		return t
	}
}

func (v *Validator) record(report *Report, violation Violation) {
	if len(report.Violations) >= maxViolations {
		report.Truncated = true
		return
	}
	report.Violations = append(report.Violations, violation)
}
