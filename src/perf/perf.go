package perf

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"
)

// RequestPerf records timing blocks for one unit of work: a CLI invocation,
// a forum listing, a bulk permission filter.
type RequestPerf struct {
	Name  string
	Start time.Time
	End   time.Time

	mu     sync.Mutex
	Blocks []PerfBlock
}

func MakeNewRequestPerf(name string) *RequestPerf {
	return &RequestPerf{
		Name:  name,
		Start: time.Now(),
	}
}

func (rp *RequestPerf) EndRequest() {
	if rp == nil {
		return
	}
	for rp.EndBlock() {
	}
	rp.End = time.Now()
}

func (rp *RequestPerf) Checkpoint(category, description string) {
	if rp == nil {
		return
	}
	now := time.Now()
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.Blocks = append(rp.Blocks, PerfBlock{
		Start:       now,
		End:         now,
		Category:    category,
		Description: description,
	})
}

// StartBlock opens a block and returns a handle that closes exactly that
// block, which matters when blocks are started from concurrent goroutines.
func (rp *RequestPerf) StartBlock(category, description string) *BlockHandle {
	if rp == nil {
		return &BlockHandle{}
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	rp.Blocks = append(rp.Blocks, PerfBlock{
		Start:       time.Now(),
		Category:    category,
		Description: description,
	})
	return &BlockHandle{
		perf:  rp,
		index: len(rp.Blocks) - 1,
	}
}

// EndBlock closes the most recently opened block that is still open.
func (rp *RequestPerf) EndBlock() bool {
	if rp == nil {
		return false
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	for i := len(rp.Blocks) - 1; i >= 0; i -= 1 {
		if rp.Blocks[i].End.IsZero() {
			rp.Blocks[i].End = time.Now()
			return true
		}
	}
	return false
}

func (rp *RequestPerf) MsFromStart(block *PerfBlock) float64 {
	return float64(block.Start.Sub(rp.Start).Nanoseconds()) / 1000 / 1000
}

// Report writes one line per block.
func (rp *RequestPerf) Report(w io.Writer) {
	if rp == nil {
		return
	}
	rp.mu.Lock()
	defer rp.mu.Unlock()
	fmt.Fprintf(w, "%s (%.3fms)\n", rp.Name, float64(rp.End.Sub(rp.Start).Nanoseconds())/1000/1000)
	for i := range rp.Blocks {
		block := &rp.Blocks[i]
		fmt.Fprintf(w, "  +%8.3fms %8.3fms [%s] %s\n", rp.MsFromStart(block), block.DurationMs(), block.Category, block.Description)
	}
}

type PerfBlock struct {
	Start       time.Time
	End         time.Time
	Category    string
	Description string
}

func (pb *PerfBlock) Duration() time.Duration {
	return pb.End.Sub(pb.Start)
}

func (pb *PerfBlock) DurationMs() float64 {
	return float64(pb.Duration().Nanoseconds()) / 1000 / 1000
}

type BlockHandle struct {
	perf  *RequestPerf
	index int
}

func (h *BlockHandle) End() {
	if h == nil || h.perf == nil {
		return
	}
	h.perf.mu.Lock()
	defer h.perf.mu.Unlock()
	if h.perf.Blocks[h.index].End.IsZero() {
		h.perf.Blocks[h.index].End = time.Now()
	}
}

type perfContextKey struct{}

func AttachPerf(ctx context.Context, rp *RequestPerf) context.Context {
	return context.WithValue(ctx, perfContextKey{}, rp)
}

// ExtractPerf returns the perf record attached to ctx. A nil record is valid
// and ignores everything, so callers never need to check.
func ExtractPerf(ctx context.Context) *RequestPerf {
	rp, _ := ctx.Value(perfContextKey{}).(*RequestPerf)
	return rp
}
