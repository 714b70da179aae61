package dsp

// Transform sizes handled by the kernels. MaxTrSize is the largest
// transform the encoder codes; MaxTrDynamicRange bounds the magnitude of
// intermediate transform products.
const (
	MaxTrSize         = 32
	MaxTrDynamicRange = 15
)

// Kernel indices for the transform dispatch tables.
const (
	DST4x4 = iota
	DCT4x4
	DCT8x8
	DCT16x16
	DCT32x32
	NumTr
)

// Transform function variables for dispatch.
// These are set to pure-Go implementations by Init() and can be overridden
// by platform-specific SIMD implementations in the future.
var (
	// Forward transforms: residual (int16, strided) -> coefficients (int32, raster).
	Dct [NumTr]func(src []int16, dst []int32, srcStride int)

	// Inverse transforms: coefficients (int32, raster) -> residual (int16, strided).
	Idct [NumTr]func(src []int32, dst []int16, dstStride int)

	// Forward quantization. Returns the number of nonzero levels.
	Quant  func(coef []int32, quantCoeff []int32, deltaU []int32, qCoef []int16, qBits, add, numCoeff int) int
	NQuant func(coef []int32, quantCoeff []int32, scaledCoef []int32, qCoef []int16, qBits, add, numCoeff int) int

	// Dequantization, flat and scaling-list paths.
	DequantNormal  func(qCoef []int16, coef []int32, num, scale, shift int)
	DequantScaling func(qCoef []int16, deQuantCoef []int32, coef []int32, num, per, shift int)

	// Conversions for the transform-skip path.
	Cvt16to32Shl func(dst []int32, src []int16, stride, shift, size int)
	Cvt32to16Shr func(dst []int16, src []int32, stride, shift, size int)

	// BlockFill fills a strided int16 block with a constant (DC-only decode),
	// indexed by sizeIdx = log2TrSize - 2.
	BlockFill [4]func(dst []int16, stride int, val int16)

	// SquareCopyPS widens a pixel block to int16 (psy-rdoq source transform),
	// indexed by sizeIdx.
	SquareCopyPS [4]func(dst []int16, dstStride int, src []byte, srcStride int)

	// CountNonZero counts nonzero coefficients; used by invariant checks.
	CountNonZero func(coef []int16, num int) int
)

// Init wires the pure-Go kernel implementations into the dispatch tables.
// Safe to call more than once.
func Init() {
	Dct[DST4x4] = dst4
	Dct[DCT4x4] = dct4
	Dct[DCT8x8] = dct8
	Dct[DCT16x16] = dct16
	Dct[DCT32x32] = dct32

	Idct[DST4x4] = idst4
	Idct[DCT4x4] = idct4
	Idct[DCT8x8] = idct8
	Idct[DCT16x16] = idct16
	Idct[DCT32x32] = idct32

	Quant = quantGo
	NQuant = nquantGo
	DequantNormal = dequantNormalGo
	DequantScaling = dequantScalingGo

	Cvt16to32Shl = cvt16to32ShlGo
	Cvt32to16Shr = cvt32to16ShrGo
	CountNonZero = countNonZeroGo

	for i := 0; i < 4; i++ {
		size := 4 << i
		BlockFill[i] = makeBlockFill(size)
		SquareCopyPS[i] = makeSquareCopyPS(size)
	}
}

func init() {
	Init()
}
