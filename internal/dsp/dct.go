package dsp

// Integer core transforms (H.265 8.6). The transform matrices are built from
// 32 table magnitudes: 64 for the DC row and the integer approximations of
// 64*sqrt(2)*cos(j*pi/64) for j = 1..31; every matrix entry is one of these
// values with a sign given by the folded cosine angle. The matrices are expanded from that table at
// init rather than spelled out as 32x32 literals.

// bitDepth is the sample bit depth the kernels are built for.
const bitDepth = 8

// cosTable[j] = standard value for 64*sqrt(2)*cos(j*pi/64), j in [1,32];
// cosTable[0] is the DC-row value 64.
var cosTable = [33]int{
	64, 90, 90, 90, 89, 88, 87, 85, 83, 82, 80, 78, 75, 73, 70, 67,
	64, 61, 57, 54, 50, 46, 43, 38, 36, 31, 25, 22, 18, 13, 9, 4,
	0,
}

// Transform matrices, generated by init. tN[k][n] is the k-th basis row.
var (
	t4  [4][4]int
	t8  [8][8]int
	t16 [16][16]int
	t32 [32][32]int
)

// dstMat is the 4x4 alternative transform for intra luma 4x4 blocks.
var dstMat = [4][4]int{
	{29, 55, 74, 84},
	{74, 74, 0, -74},
	{84, -29, -74, 55},
	{55, -84, 74, -29},
}

// transEntry returns the (k, n) entry of the N-point core transform matrix.
// The angle k*(2n+1)*pi/(2N) maps to t*pi/64 with t = k*(2n+1)*32/N.
func transEntry(k, n, n32Scale int) int {
	t := (k * (2*n + 1) * n32Scale) % 128
	if t > 64 {
		t = 128 - t
	}
	if t > 32 {
		return -cosTable[64-t]
	}
	return cosTable[t]
}

func init() {
	for k := 0; k < 4; k++ {
		for n := 0; n < 4; n++ {
			t4[k][n] = transEntry(k, n, 8)
		}
	}
	for k := 0; k < 8; k++ {
		for n := 0; n < 8; n++ {
			t8[k][n] = transEntry(k, n, 4)
		}
	}
	for k := 0; k < 16; k++ {
		for n := 0; n < 16; n++ {
			t16[k][n] = transEntry(k, n, 2)
		}
	}
	for k := 0; k < 32; k++ {
		for n := 0; n < 32; n++ {
			t32[k][n] = transEntry(k, n, 1)
		}
	}
}

// fwdPass1 transforms the rows of the strided int16 source and stores the
// result transposed: tmp[k*n+j] holds frequency k of spatial row j.
func fwdPass1(src []int16, srcStride int, tmp []int32, row func(k int) []int, n, shift int) {
	add := 1 << (shift - 1)
	for k := 0; k < n; k++ {
		m := row(k)
		for j := 0; j < n; j++ {
			sum := add
			for i := 0; i < n; i++ {
				sum += m[i] * int(src[j*srcStride+i])
			}
			tmp[k*n+j] = int32(sum >> shift)
		}
	}
}

// fwdPass2 is the second (vertical) stage; same transposed-store layout, so
// the final block lands in raster order with vertical frequency major.
func fwdPass2(tmp []int32, dst []int32, row func(k int) []int, n, shift int) {
	add := 1 << (shift - 1)
	for k := 0; k < n; k++ {
		m := row(k)
		for j := 0; j < n; j++ {
			sum := add
			for i := 0; i < n; i++ {
				sum += m[i] * int(tmp[j*n+i])
			}
			dst[k*n+j] = int32(sum >> shift)
		}
	}
}

func fwdDct(src []int16, dst []int32, srcStride int, row func(k int) []int, log2n int) {
	n := 1 << log2n
	shift1 := log2n + bitDepth - 9
	shift2 := log2n + 6
	var tmp [MaxTrSize * MaxTrSize]int32
	fwdPass1(src, srcStride, tmp[:n*n], row, n, shift1)
	fwdPass2(tmp[:n*n], dst, row, n, shift2)
}

func dct4(src []int16, dst []int32, srcStride int) {
	fwdDct(src, dst, srcStride, func(k int) []int { return t4[k][:] }, 2)
}

func dct8(src []int16, dst []int32, srcStride int) {
	fwdDct(src, dst, srcStride, func(k int) []int { return t8[k][:] }, 3)
}

func dct16(src []int16, dst []int32, srcStride int) {
	fwdDct(src, dst, srcStride, func(k int) []int { return t16[k][:] }, 4)
}

func dct32(src []int16, dst []int32, srcStride int) {
	fwdDct(src, dst, srcStride, func(k int) []int { return t32[k][:] }, 5)
}

// fastForwardDst transforms the four rows of block and stores transposed,
// like the DCT passes but with the DST-VII factorization.
func fastForwardDst(block, coeff []int32, shift int) {
	add := 1 << (shift - 1)
	for i := 0; i < 4; i++ {
		b0 := int(block[4*i+0])
		b1 := int(block[4*i+1])
		b2 := int(block[4*i+2])
		b3 := int(block[4*i+3])

		c0 := b0 + b3
		c1 := b1 + b3
		c2 := b0 - b1
		c3 := 74 * b2

		coeff[i] = int32((29*c0 + 55*c1 + c3 + add) >> shift)
		coeff[4+i] = int32((74*(b0+b1-b3) + add) >> shift)
		coeff[8+i] = int32((29*c2 + 55*c0 - c3 + add) >> shift)
		coeff[12+i] = int32((55*c2 - 29*c1 + c3 + add) >> shift)
	}
}

func dst4(src []int16, dst []int32, srcStride int) {
	shift1 := bitDepth - 7
	const shift2 = 8

	var block, coef [16]int32
	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			block[4*i+j] = int32(src[i*srcStride+j])
		}
	}
	fastForwardDst(block[:], coef[:], shift1)
	fastForwardDst(coef[:], dst[:16], shift2)
}
