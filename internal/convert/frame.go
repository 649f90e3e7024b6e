package convert

import (
	"bytes"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"github.com/ajitpratap0/strata/pkg/strataerrors"
)

// Batch frames are the message-passing contract between assembly workers and
// the collecting owner: a self-describing Arrow IPC stream holding exactly one
// record batch. Workers never share builders or schema state with the
// collector; the payload is an opaque byte slice.

// EncodeFrame serializes one record batch, schema included.
func EncodeFrame(rec arrow.Record) ([]byte, error) {
	var buf bytes.Buffer
	w := ipc.NewWriter(&buf, ipc.WithSchema(rec.Schema()))
	if err := w.Write(rec); err != nil {
		w.Close()
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to encode batch frame")
	}
	if err := w.Close(); err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to finalize batch frame")
	}
	return buf.Bytes(), nil
}

// DecodeFrame reads the record batch back out of a frame. The caller owns the
// returned record and must release it.
func DecodeFrame(frame []byte) (arrow.Record, error) {
	r, err := ipc.NewReader(bytes.NewReader(frame), ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, strataerrors.Wrap(err, strataerrors.ErrorTypeInternal, "failed to open batch frame")
	}
	defer r.Release()
	if !r.Next() {
		return nil, strataerrors.New(strataerrors.ErrorTypeInternal, "batch frame holds no record")
	}
	rec := r.Record()
	rec.Retain()
	return rec, nil
}
