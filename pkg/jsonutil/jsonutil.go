// Package jsonutil provides high-performance JSON serialization with object pooling
package jsonutil

import (
	"bytes"
	"errors"
	"io"
	"sync"

	gojson "github.com/goccy/go-json"
)

// pool manages pooled JSON decoders and buffers
type jsonPool struct {
	decoderPool sync.Pool
	bufferPool  sync.Pool
}

var globalPool = &jsonPool{
	decoderPool: sync.Pool{
		New: func() interface{} {
			return &pooledDecoder{}
		},
	},
	bufferPool: sync.Pool{
		New: func() interface{} {
			return bytes.NewBuffer(make([]byte, 0, 4096))
		},
	},
}

// pooledDecoder wraps a JSON decoder
type pooledDecoder struct {
	decoder *gojson.Decoder
}

// GetDecoder gets a pooled JSON decoder. The decoder is configured with
// UseNumber so integral values survive classification without a float round trip.
func GetDecoder(r io.Reader) *gojson.Decoder {
	pd := globalPool.decoderPool.Get().(*pooledDecoder)

	// Always create a new decoder with the specified reader
	pd.decoder = gojson.NewDecoder(r)
	pd.decoder.UseNumber()

	return pd.decoder
}

// PutDecoder returns a decoder to the pool
func PutDecoder(dec *gojson.Decoder) {
	globalPool.decoderPool.Put(&pooledDecoder{decoder: dec})
}

// GetBuffer gets a pooled bytes.Buffer
func GetBuffer() *bytes.Buffer {
	buf := globalPool.bufferPool.Get().(*bytes.Buffer)
	buf.Reset()
	return buf
}

// PutBuffer returns a buffer to the pool
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() > 1024*1024 { // Don't pool very large buffers
		return
	}
	globalPool.bufferPool.Put(buf)
}

// Marshal is a high-performance drop-in replacement for json.Marshal
func Marshal(v interface{}) ([]byte, error) {
	return gojson.Marshal(v)
}

// MarshalIndent is a high-performance drop-in replacement for json.MarshalIndent
func MarshalIndent(v interface{}, prefix, indent string) ([]byte, error) {
	return gojson.MarshalIndent(v, prefix, indent)
}

// Unmarshal is a high-performance drop-in replacement for json.Unmarshal
func Unmarshal(data []byte, v interface{}) error {
	return gojson.Unmarshal(data, v)
}

// UnmarshalValue decodes data into an untyped value, preserving integers
// as gojson.Number instead of collapsing everything to float64. The whole
// input must be one JSON value: trailing content is an error, so NDJSON
// buffers fail here and reach the line-splitting fallback intact.
func UnmarshalValue(data []byte) (interface{}, error) {
	dec := GetDecoder(bytes.NewReader(data))
	defer PutDecoder(dec)

	var v interface{}
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, errors.New("trailing content after JSON value")
	}
	return v, nil
}
