package hevc

// Scaling-list bundle. Owned by the caller and borrowed immutably by a
// Quant instance for its lifetime. Matrices are indexed by
// [sizeIdx][listType][rem], sizeIdx = log2TrSize-2, with six list types
// (intra/inter x {Y, U, V}).

// NumListTypes is the number of scaling-list types.
const NumListTypes = 6

// quantScales[rem] / invQuantScales[rem] are the six flat-list forward and
// inverse quantizer scales; each step of rem scales by 2^(1/6).
var (
	quantScales    = [6]int{26214, 23302, 20560, 18396, 16384, 14564}
	invQuantScales = [6]int{40, 45, 51, 57, 64, 72}
)

// ScalingList holds the pre-computed quantizer matrices the core consumes.
type ScalingList struct {
	// Enabled selects the scaling-list dequant path; when false the flat
	// invQuantScales path is used instead.
	Enabled bool

	// QuantCoef and DequantCoef are the per-coefficient forward and inverse
	// multipliers.
	QuantCoef   [4][NumListTypes][6][]int32
	DequantCoef [4][NumListTypes][6][]int32

	// ErrScale pre-folds the distortion normalization RDOQ applies to the
	// squared quantizer error of each coefficient.
	ErrScale [4][NumListTypes][6][]float64
}

// NewFlatScalingList builds the default bundle: every matrix entry carries
// the flat scale for its rem, so list-indexed and flat paths agree.
func NewFlatScalingList() *ScalingList {
	s := &ScalingList{}
	for sizeIdx := 0; sizeIdx < 4; sizeIdx++ {
		log2TrSize := sizeIdx + 2
		numCoeff := 1 << uint(2*log2TrSize)
		transformShift := MaxTrDynamicRange - BitDepth - log2TrSize

		for listType := 0; listType < NumListTypes; listType++ {
			for rem := 0; rem < 6; rem++ {
				quant := make([]int32, numCoeff)
				dequant := make([]int32, numCoeff)
				errScale := make([]float64, numCoeff)

				qScale := int32(quantScales[rem])
				iqScale := int32(invQuantScales[rem] << 4)

				// 2^ScaleBits, de-scaled by the squared transform gain and
				// the bit-depth headroom, normalized per quantCoef^2.
				scale := float64(int64(1)<<ScaleBits) / float64(int64(1)<<uint(2*transformShift))
				scale /= float64(int64(1) << uint(2*(BitDepth-8)))

				for i := 0; i < numCoeff; i++ {
					quant[i] = qScale
					dequant[i] = iqScale
					errScale[i] = scale / float64(qScale) / float64(qScale)
				}

				s.QuantCoef[sizeIdx][listType][rem] = quant
				s.DequantCoef[sizeIdx][listType][rem] = dequant
				s.ErrScale[sizeIdx][listType][rem] = errScale
			}
		}
	}
	return s
}

// scalingListType combines the prediction class and channel into the list
// index: intra lists 0..2, inter lists 3..5.
func scalingListType(intra bool, ch Channel) int {
	if intra {
		return int(ch)
	}
	return 3 + int(ch)
}
