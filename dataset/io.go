package dataset

import (
	"encoding/binary"
	"io"

	"github.com/ar90n/spilltree"
	"github.com/ar90n/spilltree/linalg"
	"github.com/cockroachdb/errors"
)

const (
	maxDim          = 1 << 24
	initialCapacity = 1 << 16
)

func readCount(r io.Reader) (uint64, error) {
	var buf [8]byte
	if _, err := io.ReadFull(r, buf[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(buf[:]), nil
}

func writeCount(w io.Writer, n int) error {
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], uint64(n))
	_, err := w.Write(buf[:])
	return err
}

// Load reads a vector file: a u64 count, a u64 width and count*width
// little-endian components.
func Load[T linalg.Number, L comparable](r io.Reader) (*Dataset[T, L], error) {
	if binary.Size(*new(T)) <= 0 {
		return nil, errors.Newf("component type %T has no fixed size", *new(T))
	}

	count, err := readCount(r)
	if err != nil {
		return nil, errors.Wrap(err, "read vector count")
	}
	dim, err := readCount(r)
	if err != nil {
		return nil, errors.Wrap(err, "read vector width")
	}
	if maxDim < dim {
		return nil, errors.Newf("vector width %d exceeds %d", dim, maxDim)
	}

	vectors := make([][]T, 0, min(count, initialCapacity))
	for i := uint64(0); i < count; i++ {
		v := make([]T, dim)
		if err := binary.Read(r, binary.LittleEndian, v); err != nil {
			return nil, errors.Wrapf(err, "read vector %d of %d", i, count)
		}
		vectors = append(vectors, v)
	}

	return newDataset[T, L](vectors, int(dim)), nil
}

// Label reads a label file, a u64 count followed by count labels, and
// attaches them to the view's domain in order.
func (d *Dataset[T, L]) Label(r io.Reader) error {
	if d.root.labeled {
		return spilltree.ErrAlreadyLabeled
	}
	if binary.Size(*new(L)) <= 0 {
		return errors.Newf("label type %T has no fixed size", *new(L))
	}

	count, err := readCount(r)
	if err != nil {
		return errors.Wrap(err, "read label count")
	}
	if count != uint64(len(d.domain)) {
		return errors.Wrapf(spilltree.ErrLabelCountMismatch, "%d labels for %d vectors", count, len(d.domain))
	}

	labels := make([]L, count)
	if err := binary.Read(r, binary.LittleEndian, labels); err != nil {
		return errors.Wrap(err, "read labels")
	}

	return d.SetLabels(labels)
}

// WriteVectors writes vectors in the layout read by Load.
func WriteVectors[T linalg.Number](w io.Writer, vectors [][]T) error {
	dim := 0
	if 0 < len(vectors) {
		dim = len(vectors[0])
	}

	if err := writeCount(w, len(vectors)); err != nil {
		return errors.Wrap(err, "write vector count")
	}
	if err := writeCount(w, dim); err != nil {
		return errors.Wrap(err, "write vector width")
	}
	for i, v := range vectors {
		if len(v) != dim {
			return errors.Wrapf(spilltree.ErrDimensionMismatch, "vector %d has %d components, want %d", i, len(v), dim)
		}
		if err := binary.Write(w, binary.LittleEndian, v); err != nil {
			return errors.Wrapf(err, "write vector %d", i)
		}
	}

	return nil
}

// WriteLabels writes labels in the layout read by Label.
func WriteLabels[L comparable](w io.Writer, labels []L) error {
	if err := writeCount(w, len(labels)); err != nil {
		return errors.Wrap(err, "write label count")
	}
	return errors.Wrap(binary.Write(w, binary.LittleEndian, labels), "write labels")
}
