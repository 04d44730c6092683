package spilltree

import "github.com/cockroachdb/errors"

var (
	ErrDimensionMismatch   = errors.New("dimension mismatch")
	ErrRankOutOfRange      = errors.New("rank out of range")
	ErrUnlabeled           = errors.New("dataset is not labeled")
	ErrAlreadyLabeled      = errors.New("dataset is already labeled")
	ErrLabelCountMismatch  = errors.New("label count does not match dataset size")
	ErrDegeneratePartition = errors.New("degenerate partition")
	ErrCorruptTree         = errors.New("corrupt tree")
	ErrTreeMismatch        = errors.New("tree does not match dataset")
	ErrInvalidParameter    = errors.New("invalid parameter")
	ErrUnknownKind         = errors.New("unknown tree kind")
	ErrEmptyDomain         = errors.New("empty domain")
	ErrIndexOutOfRange     = errors.New("index out of range")
)
