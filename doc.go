// Package strata converts JSON files of unknown shape into columnar
// artifacts (Parquet, Arrow IPC, Avro OCF, CSV) with a schema inferred
// from the data itself.
//
// Strata handles the messy reality of JSON in the wild:
//   - Mixed dialects: NDJSON, top-level arrays, wrapped containers
//     ({"data": [...]}, {"results": [...]}), GeoJSON feature collections,
//     and single-record objects, detected automatically per file.
//   - Relaxed syntax: files with comments, single quotes, or trailing
//     commas are recovered through a lenient parse fallback.
//   - Inconsistent types: field types observed across records are unified
//     through a merge lattice (int widens to float, mismatches collapse
//     to string) so every record fits one stable schema.
//   - Large inputs: files are converted in fixed-size chunks, sequentially
//     or through a bounded worker pool, with memory reclaimed between
//     chunks.
//
// # Workflow
//
// Scan a file to infer and persist its schema, then convert it:
//
//	strata scan events.ndjson
//	strata convert events.ndjson --format parquet --out output/
//
// The scan step writes events.schema.json next to the input; convert reads
// it back so that every chunk of the file is written against the same
// schema regardless of which records a chunk happens to contain.
//
// # Packages
//
// internal/schema holds the type lattice and inference engine,
// internal/loader the dialect detection and record streaming,
// internal/convert the chunked conversion pipeline, and
// pkg/formats/columnar the output writer boundary over Apache Arrow.
package strata
