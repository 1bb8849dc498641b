package llir

import (
	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
)

// frame holds the shared state of one function's lowering. Bindings are
// represented as stack slots (one alloca per name, created lazily in
// the entry block) rather than threaded SSA values across blocks —
// the same "every local gets a slot, mem2reg cleans it up later" shape
// an unoptimized C frontend produces, which sidesteps having to merge
// values by hand at every block with more than one predecessor. The
// CFG's own explicit Phi steps still lower to a real `phi` instruction;
// see expr.go.
type frame struct {
	fn      *ir.Func
	entry   *ir.Block
	cur     *ir.Block
	blocks  map[int]*ir.Block // Runa CFG block id -> llvm block
	allocas map[string]*ir.InstAlloca
	tmp     int
}

func newFrame(fn *ir.Func, entry *ir.Block) *frame {
	return &frame{
		fn:      fn,
		entry:   entry,
		cur:     entry,
		blocks:  map[int]*ir.Block{0: entry},
		allocas: make(map[string]*ir.InstAlloca),
	}
}

// slot returns the alloca backing name, creating it in the entry block
// on first use. Insts and the block terminator are separate fields on
// ir.Block, so appending here is safe even after the entry block's own
// terminator has already been set.
func (f *frame) slot(name string, t types.Type) *ir.InstAlloca {
	if a, ok := f.allocas[name]; ok {
		return a
	}
	a := f.entry.NewAlloca(t)
	f.allocas[name] = a
	return a
}

func (f *frame) store(name string, t types.Type, v value.Value) {
	a := f.slot(name, t)
	f.cur.NewStore(v, a)
}

func (f *frame) load(name string, t types.Type) value.Value {
	a := f.slot(name, t)
	return f.cur.NewLoad(t, a)
}
