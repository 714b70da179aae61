package hevc

import "github.com/deepteams/hevc/internal/dsp"

// BitDepth is the sample bit depth this build of the core is compiled for.
const BitDepth = 8

// QpBdOffset extends the QP range for higher bit depths.
const QpBdOffset = 6 * (BitDepth - 8)

// Transform and quantizer scaling constants.
const (
	MaxTrSize         = dsp.MaxTrSize
	MaxTrDynamicRange = dsp.MaxTrDynamicRange
	QuantShift        = 14
	QuantIQuantShift  = 20
	ScaleBits         = 15
)

// IEPRate is the cost of one bypass-coded (equiprobable) bin, in 1/32768-bit
// units like every other rate in the estimator tables.
const IEPRate = 1 << 15

// Coefficient-group geometry. Coefficients are grouped in 4x4 coding groups;
// a 32x32 block has 64 of them.
const (
	SBHThreshold    = 4
	C1FlagNumber    = 8
	Log2ScanSetSize = 4
	ScanSetSize     = 16
	MLSCGSize       = 4
	MLSGrpNum       = 64
)

// CoefRemainBinReduction caps the unary prefix of coeff_abs_level_remaining.
const CoefRemainBinReduction = 3

// goRiceRange[r] is the largest remainder symbol coded without the
// exp-Golomb escape at Rice parameter r.
var goRiceRange = [5]uint32{7, 14, 26, 46, 78}

// Channel identifies the plane a transform block belongs to.
type Channel int

const (
	ChannelY Channel = iota
	ChannelU
	ChannelV
)

// SliceType of the owning slice; only the intra/inter distinction matters to
// the quantizer rounding offset.
type SliceType int

const (
	SliceB SliceType = iota
	SliceP
	SliceI
)

// Chroma subsampling formats.
const (
	Csp400 = iota
	Csp420
	Csp422
	Csp444
)

// Coefficient scan types.
const (
	ScanDiag = iota
	ScanHor
	ScanVer
)
