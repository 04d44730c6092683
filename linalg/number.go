package linalg

import "golang.org/x/exp/constraints"

// Number is a vector component type.
type Number interface {
	constraints.Integer | constraints.Float
}
