package dsp

// cvt16to32ShlGo widens a strided int16 block into a contiguous int32 block,
// shifting each sample left. Used by the transform-skip forward path.
func cvt16to32ShlGo(dst []int32, src []int16, stride, shift, size int) {
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			dst[i*size+j] = int32(src[i*stride+j]) << shift
		}
	}
}

// cvt32to16ShrGo narrows a contiguous int32 block into a strided int16 block
// with rounding. Used by the transform-skip inverse path.
func cvt32to16ShrGo(dst []int16, src []int32, stride, shift, size int) {
	round := int32(1) << (shift - 1)
	for i := 0; i < size; i++ {
		for j := 0; j < size; j++ {
			dst[i*stride+j] = int16((src[i*size+j] + round) >> shift)
		}
	}
}

func makeBlockFill(size int) func(dst []int16, stride int, val int16) {
	return func(dst []int16, stride int, val int16) {
		for i := 0; i < size; i++ {
			row := dst[i*stride : i*stride+size]
			for j := range row {
				row[j] = val
			}
		}
	}
}

func makeSquareCopyPS(size int) func(dst []int16, dstStride int, src []byte, srcStride int) {
	return func(dst []int16, dstStride int, src []byte, srcStride int) {
		for i := 0; i < size; i++ {
			for j := 0; j < size; j++ {
				dst[i*dstStride+j] = int16(src[i*srcStride+j])
			}
		}
	}
}
