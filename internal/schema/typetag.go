package schema

import (
	"strings"

	gojson "github.com/goccy/go-json"
)

// Kind identifies a node in the type lattice. Null, Bool, Int, Float, String
// and Array are materializable into output columns; Object is intermediate and
// is either flattened away (top-level fields) or stringified (array elements).
type Kind int

const (
	// KindNull is the bottom of the lattice: it merges with anything without
	// changing it, only marking the field nullable.
	KindNull Kind = iota
	// KindBool is a boolean scalar
	KindBool
	// KindInt is a 64-bit integer scalar
	KindInt
	// KindFloat is a 64-bit float scalar
	KindFloat
	// KindString is the top scalar: any two unequal scalars widen to it
	KindString
	// KindArray is a homogeneous list after element unification
	KindArray
	// KindObject is a nested object; intermediate only
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return "unknown"
	}
}

// TypeTag is one node of the unification lattice. Elem is set for KindArray,
// Fields for KindObject; both are nil otherwise.
type TypeTag struct {
	Kind   Kind
	Elem   *TypeTag
	Fields map[string]*TypeTag
}

var (
	nullTag   = &TypeTag{Kind: KindNull}
	boolTag   = &TypeTag{Kind: KindBool}
	intTag    = &TypeTag{Kind: KindInt}
	floatTag  = &TypeTag{Kind: KindFloat}
	stringTag = &TypeTag{Kind: KindString}
)

// Null returns the shared Null tag.
func Null() *TypeTag { return nullTag }

// Scalar returns the shared tag for a scalar kind.
func Scalar(k Kind) *TypeTag {
	switch k {
	case KindNull:
		return nullTag
	case KindBool:
		return boolTag
	case KindInt:
		return intTag
	case KindFloat:
		return floatTag
	case KindString:
		return stringTag
	default:
		return stringTag
	}
}

// ArrayOf returns an Array tag with the given element tag.
func ArrayOf(elem *TypeTag) *TypeTag {
	if elem == nil {
		elem = nullTag
	}
	return &TypeTag{Kind: KindArray, Elem: elem}
}

// Classify derives the TypeTag of one observed value. Array elements are
// unified recursively so every array observation contributes a single element
// tag; nested objects inside arrays stay as Object tags.
func Classify(v interface{}) *TypeTag {
	switch val := v.(type) {
	case nil:
		return nullTag
	case bool:
		return boolTag
	case gojson.Number:
		// gojson.Number aliases encoding/json.Number, so this arm also covers
		// values decoded by the stdlib streaming decoder and hjson.
		return classifyNumber(string(val))
	case int, int32, int64:
		return intTag
	case float32, float64:
		return floatTag
	case string:
		return stringTag
	case []interface{}:
		elem := nullTag
		for _, item := range val {
			elem = Merge(elem, Classify(item))
		}
		return ArrayOf(elem)
	case map[string]interface{}:
		fields := make(map[string]*TypeTag, len(val))
		for k, item := range val {
			fields[k] = Classify(item)
		}
		return &TypeTag{Kind: KindObject, Fields: fields}
	default:
		return stringTag
	}
}

func classifyNumber(s string) *TypeTag {
	if strings.ContainsAny(s, ".eE") {
		return floatTag
	}
	if _, err := gojson.Number(s).Int64(); err != nil {
		return floatTag
	}
	return intTag
}

// Merge joins two observations under the widening lattice. It is commutative
// and associative, so inference can fold it over a stream without retaining
// raw history:
//
//	Null ∨ X             = X
//	Int ∨ Float          = Float
//	scalar ∨ scalar'     = String          (unequal scalars)
//	Array(a) ∨ Array(b)  = Array(a ∨ b)
//	Array ∨ non-Array    = String
//	Object ∨ Object      = field-wise union
//	Object ∨ non-Object  = String
func Merge(a, b *TypeTag) *TypeTag {
	if a == nil {
		a = nullTag
	}
	if b == nil {
		b = nullTag
	}
	if a.Kind == KindNull {
		return b
	}
	if b.Kind == KindNull {
		return a
	}
	if a.Kind == b.Kind {
		switch a.Kind {
		case KindArray:
			return ArrayOf(Merge(a.Elem, b.Elem))
		case KindObject:
			return mergeObjects(a, b)
		default:
			return a
		}
	}

	// Int widens to Float; every other mixed pair widens to String.
	if (a.Kind == KindInt && b.Kind == KindFloat) || (a.Kind == KindFloat && b.Kind == KindInt) {
		return floatTag
	}
	return stringTag
}

func mergeObjects(a, b *TypeTag) *TypeTag {
	fields := make(map[string]*TypeTag, len(a.Fields)+len(b.Fields))
	for k, tag := range a.Fields {
		fields[k] = tag
	}
	for k, tag := range b.Fields {
		if existing, ok := fields[k]; ok {
			fields[k] = Merge(existing, tag)
		} else {
			fields[k] = tag
		}
	}
	return &TypeTag{Kind: KindObject, Fields: fields}
}

// Equal reports deep equality of two tags.
func (t *TypeTag) Equal(other *TypeTag) bool {
	if t == nil || other == nil {
		return t == other
	}
	if t.Kind != other.Kind {
		return false
	}
	switch t.Kind {
	case KindArray:
		return t.Elem.Equal(other.Elem)
	case KindObject:
		if len(t.Fields) != len(other.Fields) {
			return false
		}
		for k, tag := range t.Fields {
			o, ok := other.Fields[k]
			if !ok || !tag.Equal(o) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// String renders a tag in the artifact encoding: scalars by name,
// arrays as array<elem>, objects as the bare word object.
func (t *TypeTag) String() string {
	if t == nil {
		return "null"
	}
	if t.Kind == KindArray {
		return "array<" + t.Elem.String() + ">"
	}
	return t.Kind.String()
}

// ParseTag parses the artifact encoding produced by String. Object field maps
// are not persisted; "object" round-trips to a field-less Object tag, which is
// sufficient because object-typed values are stringified at assembly time.
func ParseTag(s string) (*TypeTag, bool) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "array<") && strings.HasSuffix(s, ">") {
		elem, ok := ParseTag(s[len("array<") : len(s)-1])
		if !ok {
			return nil, false
		}
		return ArrayOf(elem), true
	}
	switch s {
	case "null":
		return nullTag, true
	case "bool":
		return boolTag, true
	case "int":
		return intTag, true
	case "float":
		return floatTag, true
	case "string":
		return stringTag, true
	case "object":
		return &TypeTag{Kind: KindObject}, true
	default:
		return nil, false
	}
}
