package convert

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ajitpratap0/strata/pkg/config"
)

// workerPool runs CPU-bound batch assembly for groups of chunks. Chunks are
// submitted one group at a time; the pool blocks until the whole group has
// returned before the next group is submitted, so parallelism exists within a
// group but never across groups. Results come back positionally, preserving
// submission order without a reordering buffer.
type workerPool struct {
	assembler *Assembler
	workers   int
}

func newWorkerPool(assembler *Assembler, cfg config.ConversionConfig) *workerPool {
	return &workerPool{assembler: assembler, workers: cfg.Workers}
}

// assembleGroup assembles every chunk of one group and returns the encoded
// batch frames in submission order. Any chunk failure fails the whole group;
// chunks are not retried.
func (p *workerPool) assembleGroup(ctx context.Context, chunks []*Chunk) ([][]byte, error) {
	frames := make([][]byte, len(chunks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.workers)
	for i, chunk := range chunks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			rec, err := p.assembler.Assemble(chunk)
			if err != nil {
				return err
			}
			frame, err := EncodeFrame(rec)
			rec.Release()
			if err != nil {
				return err
			}
			frames[i] = frame
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return frames, nil
}
