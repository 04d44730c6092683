package bsp_tree

import (
	"encoding/binary"
	"io"
	"math"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

const maxSplits = 1 << 16

// encoder writes little-endian values and keeps the first error.
type encoder struct {
	w   io.Writer
	buf [8]byte
	err error
}

func (e *encoder) write(p []byte) {
	if e.err != nil {
		return
	}
	_, e.err = e.w.Write(p)
}

func (e *encoder) flag(v bool) {
	if v {
		e.write([]byte{1})
	} else {
		e.write([]byte{0})
	}
}

func (e *encoder) u64(v uint64) {
	binary.LittleEndian.PutUint64(e.buf[:], v)
	e.write(e.buf[:])
}

func (e *encoder) f64(v float64) {
	e.u64(math.Float64bits(v))
}

func (e *encoder) floats(vs []float64) {
	e.u64(uint64(len(vs)))
	for _, v := range vs {
		e.f64(v)
	}
}

func (e *encoder) ints(vs []int) {
	e.u64(uint64(len(vs)))
	for _, v := range vs {
		e.u64(uint64(v))
	}
}

func writeValue[T linalg.Number](e *encoder, v T) {
	if e.err != nil {
		return
	}
	e.err = binary.Write(e.w, binary.LittleEndian, v)
}

// decoder reads what encoder writes. Every failure, truncation included, is
// reported as ErrCorruptTree and sticks.
type decoder struct {
	r       io.Reader
	buf     [8]byte
	err     error
	rootLen int
}

func (d *decoder) fail(format string, args ...any) {
	if d.err == nil {
		d.err = errors.Wrapf(spilltree.ErrCorruptTree, format, args...)
	}
}

func (d *decoder) read(p []byte) bool {
	if d.err != nil {
		return false
	}
	if _, err := io.ReadFull(d.r, p); err != nil {
		d.err = errors.Mark(errors.Wrap(err, "read tree"), spilltree.ErrCorruptTree)
		return false
	}
	return true
}

func (d *decoder) flag() bool {
	if !d.read(d.buf[:1]) {
		return false
	}
	switch d.buf[0] {
	case 0:
		return false
	case 1:
		return true
	default:
		d.fail("presence byte %d", d.buf[0])
		return false
	}
}

func (d *decoder) u64() uint64 {
	if !d.read(d.buf[:]) {
		return 0
	}
	return binary.LittleEndian.Uint64(d.buf[:])
}

func (d *decoder) f64() float64 {
	return math.Float64frombits(d.u64())
}

func (d *decoder) axis(dim int) int {
	axis := d.u64()
	if uint64(max(dim, 1)) <= axis {
		d.fail("axis %d of %d", axis, dim)
		return 0
	}
	return int(axis)
}

func (d *decoder) splits() int {
	splits := d.u64()
	if splits == 1 || maxSplits < splits {
		d.fail("%d splits", splits)
		return 0
	}
	return int(splits)
}

// floats reads a vector that is either empty or dim long.
func (d *decoder) floats(dim int) []float64 {
	n := d.u64()
	if n != 0 && n != uint64(dim) {
		d.fail("vector of %d components, want %d", n, dim)
		return nil
	}

	vs := make([]float64, n)
	for i := range vs {
		vs[i] = d.f64()
	}
	return vs
}

// domain reads at most maxLen root indices.
func (d *decoder) domain(maxLen int) []int {
	n := d.u64()
	if d.err != nil {
		return nil
	}
	if maxLen < 0 || uint64(maxLen) < n {
		d.fail("domain of %d members, at most %d allowed", n, maxLen)
		return nil
	}

	domain := make([]int, n)
	for i := range domain {
		idx := d.u64()
		if uint64(d.rootLen) <= idx {
			d.fail("index %d outside dataset of %d", idx, d.rootLen)
			return nil
		}
		domain[i] = int(idx)
	}
	return domain
}

func readValue[T linalg.Number](d *decoder) (v T) {
	if d.err != nil {
		return v
	}
	if err := binary.Read(d.r, binary.LittleEndian, &v); err != nil {
		d.err = errors.Mark(errors.Wrap(err, "read value"), spilltree.ErrCorruptTree)
	}
	return v
}

// Save writes the tree in preorder: a presence flag, the node's cut plane
// payload, its domain, then its child slots. Leaves carry a zero payload
// and absent child slots.
func (r *BspTree[T]) Save(w io.Writer) error {
	if len(r.Nodes) == 0 {
		return errors.New("save of a tree without nodes")
	}
	leafPayload, err := defaultCutPlane[T](r.Kind)
	if err != nil {
		return err
	}

	e := &encoder{w: w}
	const absent = -1
	stack := []int{0}
	for 0 < len(stack) && e.err == nil {
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if h == absent {
			e.flag(false)
			continue
		}

		node := &r.Nodes[h]
		e.flag(true)
		if node.IsLeaf() {
			leafPayload.encode(e)
		} else {
			node.CutPlane.encode(e)
		}
		e.ints(node.Domain)

		slots := 2
		if r.Kind == KindNSpill {
			slots = len(node.Children)
		}
		for i := slots - 1; 0 <= i; i-- {
			if node.IsLeaf() {
				stack = append(stack, absent)
			} else {
				stack = append(stack, int(node.Children[i]))
			}
		}
	}

	return errors.Wrap(e.err, "save tree")
}

type pendingSlot struct {
	parent int
	child  int
	maxLen int
}

// Load reads a tree written by Save. kind and splits must match the builder
// that produced it and points must be the dataset it was built over.
func Load[T linalg.Number](r io.Reader, kind Kind, splits int, points Points[T]) (*BspTree[T], error) {
	if _, err := defaultCutPlane[T](kind); err != nil {
		return nil, err
	}
	if kind != KindNSpill {
		splits = 2
	}

	d := &decoder{r: r, rootLen: points.RootLen()}
	tree := newBspTree[T](kind, points.Dim(), splits)
	present := []int{}

	stack := []pendingSlot{{parent: -1, maxLen: points.RootLen()}}
	for 0 < len(stack) {
		s := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		ok := d.flag()
		if d.err != nil {
			break
		}
		if !ok {
			if s.parent < 0 {
				d.fail("missing root")
			}
			continue
		}

		cutPlane, _ := defaultCutPlane[T](kind)
		cutPlane.decode(d, tree.Dim)
		domain := d.domain(s.maxLen)
		if d.err != nil {
			break
		}

		slots := 2
		if ns, ok := cutPlane.(*nSpillCutPlane[T]); ok {
			slots = ns.Splits
			if slots != 0 && slots != splits {
				return nil, errors.Wrapf(spilltree.ErrTreeMismatch, "node with %d splits in a %d split tree", slots, splits)
			}
		}

		h := tree.addNode(Node[T]{CutPlane: cutPlane, Domain: domain})
		present = append(present, 0)
		if 0 <= s.parent {
			tree.Nodes[s.parent].Children[s.child] = h
			present[s.parent]++
		}

		if 0 < slots {
			tree.Nodes[h].Children = make([]uint, slots)
		}
		for i := slots - 1; 0 <= i; i-- {
			stack = append(stack, pendingSlot{parent: int(h), child: i, maxLen: len(domain) - 1})
		}
	}
	if d.err != nil {
		return nil, d.err
	}

	for h := range tree.Nodes {
		node := &tree.Nodes[h]
		switch present[h] {
		case 0:
			node.CutPlane = nil
			node.Children = nil
		case len(node.Children):
		default:
			return nil, errors.Wrapf(spilltree.ErrCorruptTree, "node %d has %d of %d children", h, present[h], len(node.Children))
		}
	}

	return tree, nil
}
