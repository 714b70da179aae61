// Package pool provides bucketed sync.Pool instances for coefficient and
// sample scratch buffers. Buffers are organized by element count to
// minimize waste; quantizer instances hold them for their lifetime and
// return them on Close.
package pool

import "sync"

// Size classes, in elements. The largest class covers the double-width
// coefficient scratch of a 32x32 transform.
var sizes = [5]int{16, 64, 256, 1024, 2048}

// bucketIndex returns the pool index for a given element count.
func bucketIndex(n int) int {
	for i, sz := range sizes {
		if n <= sz {
			return i
		}
	}
	return len(sizes) - 1
}

type slicePool[T any] struct {
	pools [5]sync.Pool
}

func newSlicePool[T any]() *slicePool[T] {
	p := &slicePool[T]{}
	for i := range p.pools {
		sz := sizes[i]
		p.pools[i] = sync.Pool{
			New: func() any {
				s := make([]T, sz)
				return &s
			},
		}
	}
	return p
}

func (p *slicePool[T]) get(n int) []T {
	idx := bucketIndex(n)
	sp := p.pools[idx].Get().(*[]T)
	s := (*sp)[:n]
	for i := range s {
		var zero T
		s[i] = zero
	}
	return s
}

func (p *slicePool[T]) put(s []T) {
	if cap(s) == 0 {
		return
	}
	s = s[:cap(s)]
	idx := bucketIndex(len(s))
	if sizes[idx] != len(s) {
		// Foreign slice; let it be collected.
		return
	}
	p.pools[idx].Put(&s)
}

var (
	coeff  = newSlicePool[int32]()
	sample = newSlicePool[int16]()
)

// GetCoeff returns a zeroed int32 slice of n elements.
func GetCoeff(n int) []int32 { return coeff.get(n) }

// PutCoeff returns a slice obtained from GetCoeff.
func PutCoeff(s []int32) { coeff.put(s) }

// GetSample returns a zeroed int16 slice of n elements.
func GetSample(n int) []int16 { return sample.get(n) }

// PutSample returns a slice obtained from GetSample.
func PutSample(s []int16) { sample.put(s) }
