package loader

import (
	"bytes"
	"io"

	"github.com/hjson/hjson-go/v4"
	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/jsonutil"
	"github.com/ajitpratap0/strata/pkg/jsonvalue"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// openEager reads the whole document and parses it with progressively more
// permissive parsers: strict JSON, then Hjson (comments, trailing commas,
// unquoted keys and values), then NDJSON line splitting with a per-line
// relaxed retry. Used only below the eager size threshold.
func openEager(path string) (*Stream, error) {
	rc, err := openProbe(path)
	if err != nil {
		return nil, err
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to read input file")
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return sliceStream(DialectEager, nil), nil
	}

	if v, err := jsonutil.UnmarshalValue(data); err == nil {
		return sliceStream(dialectOf(v), normalizeDocument(v)), nil
	}

	if v, ok := relaxedParse(data); ok {
		logger.Debug("parsed document with relaxed syntax", zap.String("file", path))
		return sliceStream(DialectEager, normalizeDocument(v)), nil
	}

	records, skipped := eagerLines(data)
	if len(records) == 0 {
		return nil, strataerrors.Newf(strataerrors.ErrorTypeDialect,
			"no parse strategy succeeded for %s", path)
	}
	s := sliceStream(DialectNDJSON, records)
	s.skipped = skipped
	return s, nil
}

// relaxedParse attempts an Hjson decode with numbers preserved as Numbers.
func relaxedParse(data []byte) (interface{}, bool) {
	opts := hjson.DefaultDecoderOptions()
	opts.UseJSONNumber = true
	var v interface{}
	if err := hjson.UnmarshalWithOptions(data, &v, opts); err != nil {
		return nil, false
	}
	return v, true
}

// eagerLines splits the document into lines and keeps every line that parses,
// strictly or relaxed, into an object.
func eagerLines(data []byte) ([]map[string]interface{}, int64) {
	var records []map[string]interface{}
	var skipped int64
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		v, err := jsonutil.UnmarshalValue(line)
		if err != nil {
			relaxed, ok := relaxedParse(line)
			if !ok {
				skipped++
				continue
			}
			v = relaxed
		}
		if obj, ok := v.(map[string]interface{}); ok {
			records = append(records, obj)
		} else {
			skipped++
		}
	}
	return records, skipped
}

func dialectOf(v interface{}) Dialect {
	switch doc := v.(type) {
	case []interface{}:
		return DialectArray
	case map[string]interface{}:
		if t, _ := doc["type"].(string); t == "FeatureCollection" {
			return DialectGeoJSON
		}
		for _, key := range containerKeys {
			if arr, ok := doc[key].([]interface{}); ok && len(arr) > 0 {
				return DialectWrapped
			}
		}
		return DialectSingle
	default:
		return DialectEager
	}
}

// normalizeDocument turns a fully parsed document into record objects,
// unwrapping container keys and GeoJSON structures and normalizing row shapes.
func normalizeDocument(v interface{}) []map[string]interface{} {
	switch doc := v.(type) {
	case []interface{}:
		records := make([]map[string]interface{}, 0, len(doc))
		for _, item := range doc {
			records = append(records, jsonvalue.NormalizeElement(item))
		}
		return records
	case map[string]interface{}:
		docType, _ := doc["type"].(string)
		for _, key := range containerKeys {
			arr, ok := doc[key].([]interface{})
			if !ok {
				continue
			}
			if key == "features" && docType == "FeatureCollection" {
				records := make([]map[string]interface{}, 0, len(arr))
				for _, item := range arr {
					feat, ok := item.(map[string]interface{})
					if !ok {
						continue
					}
					props, _ := feat["properties"].(map[string]interface{})
					if props == nil {
						props = map[string]interface{}{}
					}
					records = append(records, props)
				}
				return records
			}
			return normalizeDocument(arr)
		}
		if docType == "Feature" {
			props, _ := doc["properties"].(map[string]interface{})
			if props == nil {
				props = map[string]interface{}{}
			}
			return []map[string]interface{}{props}
		}
		return []map[string]interface{}{doc}
	default:
		return []map[string]interface{}{jsonvalue.NormalizeElement(v)}
	}
}
