package hevc

// CABAC bit-cost estimator tables. The entropy coder owns and refreshes
// these from its context state before each block; the quantizer only reads
// them. All entries are rates in 1/32768-bit units (IEPRate = one bypass
// bin). Context counts follow the residual-coding context layout; tables
// hold the currently selected channel's contexts.

const (
	numSigCGFlagCtx = 2
	numSigFlagCtx   = 42
	numOneFlagCtx   = 24
	numAbsFlagCtx   = 6
	numQtCbfCtx     = 5
	numQtRootCbfCtx = 1
)

// EstBitsSbac carries the per-syntax bit-rate estimates RDOQ consumes.
type EstBitsSbac struct {
	SignificantCoeffGroupBits [numSigCGFlagCtx][2]int
	SignificantBits           [numSigFlagCtx][2]int
	LastXBits                 [10]int
	LastYBits                 [10]int
	GreaterOneBits            [numOneFlagCtx][2]int
	LevelAbsBits              [numAbsFlagCtx][2]int
	BlockCbpBits              [numQtCbfCtx][2]int
	BlockRootCbpBits          [numQtRootCbfCtx][2]int
}

// NewUniformEstBits fills every context with the equiprobable estimate:
// one bit per bin, regardless of bin value. Useful as a neutral stand-in
// when no trained context state is available (and in tests).
func NewUniformEstBits() *EstBitsSbac {
	eb := &EstBitsSbac{}
	for i := range eb.SignificantCoeffGroupBits {
		eb.SignificantCoeffGroupBits[i] = [2]int{IEPRate, IEPRate}
	}
	for i := range eb.SignificantBits {
		eb.SignificantBits[i] = [2]int{IEPRate, IEPRate}
	}
	for i := range eb.LastXBits {
		eb.LastXBits[i] = (i + 1) * IEPRate
		eb.LastYBits[i] = (i + 1) * IEPRate
	}
	for i := range eb.GreaterOneBits {
		eb.GreaterOneBits[i] = [2]int{IEPRate, IEPRate}
	}
	for i := range eb.LevelAbsBits {
		eb.LevelAbsBits[i] = [2]int{IEPRate, IEPRate}
	}
	for i := range eb.BlockCbpBits {
		eb.BlockCbpBits[i] = [2]int{IEPRate, IEPRate}
	}
	for i := range eb.BlockRootCbpBits {
		eb.BlockRootCbpBits[i] = [2]int{IEPRate, IEPRate}
	}
	return eb
}
