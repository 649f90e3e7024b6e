package loader

import (
	"bufio"
	"bytes"
	stdjson "encoding/json"
	"io"
	"unicode"

	"go.uber.org/zap"

	"github.com/ajitpratap0/strata/pkg/jsonutil"
	"github.com/ajitpratap0/strata/pkg/jsonvalue"
	"github.com/ajitpratap0/strata/pkg/logger"
	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// probeLimit bounds how many bytes of the file the line probe will look at.
const probeLimit = 1 << 20

// maxLine bounds a single NDJSON line.
const maxLine = 256 << 20

// openStreaming detects the dialect of a large file and returns a
// bounded-memory stream over it. Detection order: NDJSON line probe, top-level
// array, wrapped container keys, per-line NDJSON re-detection, single object.
func openStreaming(path string) (*Stream, error) {
	lines, err := probeLines(path)
	if err != nil {
		return nil, err
	}
	if len(lines) >= 2 && allParse(lines) {
		return openNDJSON(path)
	}

	first, err := firstByte(path)
	if err != nil {
		return nil, err
	}
	switch first {
	case '[':
		return openArray(path)
	case '{':
		for _, key := range containerKeys {
			st, ok, err := openWrapped(path, key)
			if err != nil {
				return nil, err
			}
			if ok {
				return st, nil
			}
		}
		// No container key matched. A multi-line file is retried as NDJSON
		// with bad lines skipped; a one-line file is one bare record.
		if len(lines) >= 2 {
			return openNDJSON(path)
		}
		return openSingle(path)
	case 0:
		return nil, strataerrors.New(strataerrors.ErrorTypeDialect, "document is empty")
	default:
		return openNDJSON(path)
	}
}

// probeLines returns up to the first three non-empty complete lines within
// probeLimit bytes.
func probeLines(path string) ([][]byte, error) {
	rc, err := openProbe(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data := make([]byte, probeLimit)
	n, err := io.ReadFull(rc, data)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to probe input file")
	}
	data = data[:n]

	truncated := n == probeLimit
	var lines [][]byte
	for _, line := range bytes.Split(data, []byte("\n")) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		lines = append(lines, line)
		if len(lines) == 3 {
			return lines, nil
		}
	}
	// The last fragment of a truncated probe window is not a complete line.
	if truncated && len(lines) > 0 {
		lines = lines[:len(lines)-1]
	}
	return lines, nil
}

func allParse(lines [][]byte) bool {
	for _, line := range lines {
		var v interface{}
		if err := jsonutil.Unmarshal(line, &v); err != nil {
			return false
		}
	}
	return true
}

func firstByte(path string) (byte, error) {
	rc, err := openProbe(path)
	if err != nil {
		return 0, err
	}
	defer rc.Close()

	br := bufio.NewReader(rc)
	for {
		b, err := br.ReadByte()
		if err == io.EOF {
			return 0, nil
		}
		if err != nil {
			return 0, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to read input file")
		}
		if !unicode.IsSpace(rune(b)) {
			return b, nil
		}
	}
}

// openNDJSON streams one record per line, skipping lines that fail to parse.
func openNDJSON(path string) (*Stream, error) {
	rc, err := openProbe(path)
	if err != nil {
		return nil, err
	}
	br := bufio.NewReaderSize(rc, 1<<20)
	st := &Stream{dialect: DialectNDJSON, closer: rc}
	lineNum := 0
	st.next = func() (map[string]interface{}, error) {
		for {
			line, err := readLine(br)
			if err == io.EOF && len(line) == 0 {
				return nil, io.EOF
			}
			if err != nil && err != io.EOF {
				return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeFile, "failed to read input line")
			}
			lineNum++
			line = bytes.TrimSpace(line)
			if len(line) == 0 {
				if err == io.EOF {
					return nil, io.EOF
				}
				continue
			}
			v, perr := jsonutil.UnmarshalValue(line)
			if perr != nil {
				st.skipped++
				logger.Debug("skipping malformed line",
					zap.String("file", path), zap.Int("line", lineNum), zap.Error(perr))
				if err == io.EOF {
					return nil, io.EOF
				}
				continue
			}
			return jsonvalue.NormalizeElement(v), nil
		}
	}
	return st, nil
}

// readLine reads one full line regardless of length, up to maxLine.
func readLine(br *bufio.Reader) ([]byte, error) {
	var buf []byte
	for {
		frag, err := br.ReadSlice('\n')
		buf = append(buf, frag...)
		if err == bufio.ErrBufferFull {
			if len(buf) > maxLine {
				return nil, strataerrors.New(strataerrors.ErrorTypeRecordParse, "input line exceeds size limit")
			}
			continue
		}
		return buf, err
	}
}

// openArray streams the elements of a top-level JSON array one at a time.
func openArray(path string) (*Stream, error) {
	rc, err := openProbe(path)
	if err != nil {
		return nil, err
	}
	dec := stdjson.NewDecoder(bufio.NewReaderSize(rc, 1<<20))
	dec.UseNumber()
	if _, err := dec.Token(); err != nil { // consume '['
		rc.Close()
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeDialect, "failed to open top-level array")
	}
	st := &Stream{dialect: DialectArray, closer: rc}
	st.next = elementStream(dec, false, &st.skipped)
	return st, nil
}

// openWrapped probes one container key and, if it holds a non-empty array,
// returns a stream over its elements. The boolean reports whether the key
// supplied records.
func openWrapped(path, key string) (*Stream, bool, error) {
	rc, err := openProbe(path)
	if err != nil {
		return nil, false, err
	}
	dec := stdjson.NewDecoder(bufio.NewReaderSize(rc, 1<<20))
	dec.UseNumber()

	found, err := seekToArray(dec, key)
	if err != nil || !found {
		rc.Close()
		return nil, false, nil
	}

	dialect := DialectWrapped
	geo := key == "features"
	if geo {
		dialect = DialectGeoJSON
	}
	st := &Stream{dialect: dialect, closer: rc}
	st.next = elementStream(dec, geo, &st.skipped)
	return st, true, nil
}

// seekToArray advances dec through the top-level object until it is positioned
// at the first element of a non-empty array stored under key.
func seekToArray(dec *stdjson.Decoder, key string) (bool, error) {
	tok, err := dec.Token()
	if err != nil {
		return false, err
	}
	if d, ok := tok.(stdjson.Delim); !ok || d != '{' {
		return false, nil
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return false, err
		}
		name, _ := keyTok.(string)
		if name != key {
			if err := skipValue(dec); err != nil {
				return false, err
			}
			continue
		}
		tok, err := dec.Token()
		if err != nil {
			return false, err
		}
		if d, ok := tok.(stdjson.Delim); !ok || d != '[' {
			return false, nil
		}
		return dec.More(), nil
	}
	return false, nil
}

// skipValue consumes exactly one JSON value from the token stream.
func skipValue(dec *stdjson.Decoder) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	d, ok := tok.(stdjson.Delim)
	if !ok || (d != '[' && d != '{') {
		return nil
	}
	depth := 1
	for depth > 0 {
		tok, err = dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(stdjson.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}

// elementStream yields normalized elements from a decoder positioned inside an
// array. With unwrapFeatures set, GeoJSON Feature objects are reduced to their
// property maps.
func elementStream(dec *stdjson.Decoder, unwrapFeatures bool, skipped *int64) func() (map[string]interface{}, error) {
	done := false
	return func() (map[string]interface{}, error) {
		for {
			if done || !dec.More() {
				done = true
				return nil, io.EOF
			}
			var v interface{}
			if err := dec.Decode(&v); err != nil {
				// A malformed element corrupts the decoder's position in the
				// array, so the stream cannot resync past it.
				done = true
				return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeRecordParse, "malformed array element")
			}
			if unwrapFeatures {
				if feat, ok := v.(map[string]interface{}); ok {
					if t, _ := feat["type"].(string); t == "Feature" {
						props, _ := feat["properties"].(map[string]interface{})
						if props == nil {
							props = map[string]interface{}{}
						}
						return props, nil
					}
					*skipped++
					continue
				}
				*skipped++
				continue
			}
			return jsonvalue.NormalizeElement(v), nil
		}
	}
}

// openSingle treats the whole document as one record.
func openSingle(path string) (*Stream, error) {
	rc, err := openProbe(path)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	dec := stdjson.NewDecoder(bufio.NewReaderSize(rc, 1<<20))
	dec.UseNumber()
	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeDialect,
			"document could not be parsed as array, wrapped object, NDJSON or single object")
	}
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, strataerrors.New(strataerrors.ErrorTypeDialect, "single-record document is not an object")
	}
	return sliceStream(DialectSingle, []map[string]interface{}{obj}), nil
}

// sliceStream wraps already-materialized records as a Stream.
func sliceStream(dialect Dialect, records []map[string]interface{}) *Stream {
	pos := 0
	return &Stream{
		dialect: dialect,
		next: func() (map[string]interface{}, error) {
			if pos >= len(records) {
				return nil, io.EOF
			}
			rec := records[pos]
			records[pos] = nil
			pos++
			return rec, nil
		},
	}
}
