package hevc

import (
	"errors"
	"math"

	"github.com/deepteams/hevc/internal/dsp"
	"github.com/deepteams/hevc/internal/pool"
)

// Quant turns residual blocks into quantized coefficient blocks and back.
// One instance is driven by exactly one thread at a time; scratch buffers
// are owned exclusively and reused across calls. The scaling-list bundle
// and estimator tables are borrowed and never written.
type Quant struct {
	useRDOQ      bool
	psyRdoqScale int64 // 8.8 fixed point, 0 disables the psy bias

	scalingList *ScalingList
	estBits     *EstBitsSbac
	nr          *NoiseReduction

	qpParam [3]QPParam

	lambda2       float64 // selected per channel at RDOQ entry
	lumaLambda2   float64
	chromaLambda2 float64

	// Scratch: forward-transformed residual, forward-transformed source
	// (psy-rdoq only), and the short buffer feeding the source transform.
	resiDctCoeff []int32
	fencDctCoeff []int32
	fencShortBuf []int16
	coeffScratch []int32
}

// NewQuant allocates a quantizer bound to a scaling-list bundle.
func NewQuant(useRDOQ bool, psyScale float64, scalingList *ScalingList) (*Quant, error) {
	if scalingList == nil {
		return nil, errors.New("hevc: nil scaling list")
	}
	q := &Quant{
		useRDOQ:      useRDOQ,
		psyRdoqScale: int64(psyScale * 256.0),
		scalingList:  scalingList,
	}
	q.coeffScratch = pool.GetCoeff(2 * MaxTrSize * MaxTrSize)
	q.resiDctCoeff = q.coeffScratch[:MaxTrSize*MaxTrSize]
	q.fencDctCoeff = q.coeffScratch[MaxTrSize*MaxTrSize:]
	q.fencShortBuf = pool.GetSample(MaxTrSize * MaxTrSize)
	return q, nil
}

// Close releases the scratch buffers. The instance must not be used after.
func (q *Quant) Close() {
	if q.coeffScratch != nil {
		pool.PutCoeff(q.coeffScratch)
		pool.PutSample(q.fencShortBuf)
		q.coeffScratch = nil
		q.resiDctCoeff = nil
		q.fencDctCoeff = nil
		q.fencShortBuf = nil
	}
}

// SetEstBits points the quantizer at the entropy coder's current bit-cost
// estimates. Required before RDOQ.
func (q *Quant) SetEstBits(eb *EstBitsSbac) { q.estBits = eb }

// SetNoiseReduction attaches externally owned denoising state; nil detaches.
func (q *Quant) SetNoiseReduction(nr *NoiseReduction) { q.nr = nr }

// SetLambda caches the squared Lagrangian multipliers RDOQ weighs rate with.
func (q *Quant) SetLambda(lumaLambda2, chromaLambda2 float64) {
	q.lumaLambda2 = lumaLambda2
	q.chromaLambda2 = chromaLambda2
}

func (q *Quant) selectLambda(ch Channel) {
	if ch == ChannelY {
		q.lambda2 = q.lumaLambda2
	} else {
		q.lambda2 = q.chromaLambda2
	}
}

// quant is the non-RDOQ forward path: dead-zone quantization followed by
// sign-bit hiding when the slice enables it.
func (q *Quant) quant(cu CodingUnit, qCoef []int16, log2TrSize uint32, ch Channel, absPartIdx uint32) int {
	var deltaU [MaxTrSize * MaxTrSize]int32

	listType := scalingListType(cu.IsIntra(absPartIdx), ch)
	rem := q.qpParam[ch].Rem
	per := q.qpParam[ch].Per
	quantCoeff := q.scalingList.QuantCoef[log2TrSize-2][listType][rem]

	transformShift := MaxTrDynamicRange - BitDepth - int(log2TrSize)
	qbits := QuantShift + per + transformShift
	add := 85 << uint(qbits-9)
	if cu.SliceType() == SliceI {
		add = 171 << uint(qbits-9)
	}
	numCoeff := 1 << (log2TrSize * 2)

	numSig := dsp.Quant(q.resiDctCoeff, quantCoeff, deltaU[:], qCoef, qbits, add, numCoeff)

	if numSig >= 2 && cu.SignHideEnabled() {
		cp := GetTUEntropyCodingParameters(cu, absPartIdx, log2TrSize, ch == ChannelY)
		return q.signBitHidingHDQ(qCoef, deltaU[:], numSig, &cp)
	}
	return numSig
}

// signBitHidingHDQ forces the parity of each coding group's absolute level
// sum to match the sign of its first nonzero coefficient, choosing the +-1
// adjustment that minimizes distortion. No rate is considered.
func (q *Quant) signBitHidingHDQ(qCoef []int16, deltaU []int32, numSig int, cp *TUEntropyCodingParameters) int {
	lastCG := true

	for subSet := (1 << (cp.Log2TrSizeCG * 2)) - 1; subSet >= 0; subSet-- {
		subPos := subSet << Log2ScanSetSize

		n := ScanSetSize - 1
		for ; n >= 0; n-- {
			if qCoef[cp.Scan[n+subPos]] != 0 {
				break
			}
		}
		if n < 0 {
			continue
		}
		lastNZPosInCG := n

		for n = 0; ; n++ {
			if qCoef[cp.Scan[n+subPos]] != 0 {
				break
			}
		}
		firstNZPosInCG := n

		if lastNZPosInCG-firstNZPosInCG >= SBHThreshold {
			signbit := 1
			if qCoef[cp.Scan[subPos+firstNZPosInCG]] > 0 {
				signbit = 0
			}
			absSum := 0
			for n = firstNZPosInCG; n <= lastNZPosInCG; n++ {
				absSum += int(qCoef[cp.Scan[n+subPos]])
			}

			if signbit != absSum&1 {
				minCostInc := math.MaxInt32
				minPos := -1
				finalChange := 0
				curCost := math.MaxInt32
				curChange := 0

				start := ScanSetSize - 1
				if lastCG {
					start = lastNZPosInCG
				}
				for n = start; n >= 0; n-- {
					blkPos := cp.Scan[n+subPos]
					if qCoef[blkPos] != 0 {
						if deltaU[blkPos] > 0 {
							curCost = -int(deltaU[blkPos])
							curChange = 1
						} else if n == firstNZPosInCG && abs16(qCoef[blkPos]) == 1 {
							curCost = math.MaxInt32
						} else {
							curCost = int(deltaU[blkPos])
							curChange = -1
						}
					} else if n < firstNZPosInCG {
						thisSignBit := 0
						if q.resiDctCoeff[blkPos] < 0 {
							thisSignBit = 1
						}
						if thisSignBit != signbit {
							curCost = math.MaxInt32
						} else {
							curCost = -int(deltaU[blkPos])
							curChange = 1
						}
					} else {
						curCost = -int(deltaU[blkPos])
						curChange = 1
					}

					if curCost < minCostInc {
						minCostInc = curCost
						finalChange = curChange
						minPos = int(blkPos)
					}
				}

				if minPos >= 0 {
					if qCoef[minPos] == 32767 || qCoef[minPos] == -32768 {
						finalChange = -1
					}

					if qCoef[minPos] == 0 {
						numSig++
					} else if finalChange == -1 && abs16(qCoef[minPos]) == 1 {
						numSig--
					}

					if q.resiDctCoeff[minPos] >= 0 {
						qCoef[minPos] += int16(finalChange)
					} else {
						qCoef[minPos] -= int16(finalChange)
					}
				}
			}
		}

		lastCG = false
	}

	return numSig
}

func abs16(v int16) int {
	if v < 0 {
		return -int(v)
	}
	return int(v)
}

// TransformNxN runs the forward path for one transform block: bypass copy,
// transform-skip upshift, or DCT/DST, then RDOQ or dead-zone quantization.
// fenc is only read when psy-rdoq is active on luma. Returns the number of
// nonzero coefficients in coeff.
func (q *Quant) TransformNxN(cu CodingUnit, fenc []byte, fencStride int, residual []int16, stride int, coeff []int16,
	log2TrSize uint32, ch Channel, absPartIdx uint32, useTransformSkip, curUseRDOQ bool) int {

	trSize := 1 << log2TrSize
	if cu.TransquantBypass(absPartIdx) {
		numSig := 0
		for k := 0; k < trSize; k++ {
			for j := 0; j < trSize; j++ {
				coeff[k*trSize+j] = residual[k*stride+j]
				if residual[k*stride+j] != 0 {
					numSig++
				}
			}
		}
		return numSig
	}

	if useTransformSkip {
		shift := MaxTrDynamicRange - BitDepth - int(log2TrSize)
		if shift >= 0 {
			dsp.Cvt16to32Shl(q.resiDctCoeff, residual, stride, shift, trSize)
		} else {
			// BitDepth > 13
			shift = -shift
			offset := 1 << (shift - 1)
			for j := 0; j < trSize; j++ {
				for k := 0; k < trSize; k++ {
					q.resiDctCoeff[j*trSize+k] = int32((int(residual[j*stride+k]) + offset) >> shift)
				}
			}
		}
	} else {
		sizeIdx := int(log2TrSize) - 2
		useDST := sizeIdx == 0 && ch == ChannelY && cu.IsIntra(absPartIdx)
		index := dsp.DCT4x4 + sizeIdx
		if useDST {
			index = dsp.DST4x4
		}

		if q.psyRdoqScale != 0 && ch == ChannelY {
			dsp.SquareCopyPS[sizeIdx](q.fencShortBuf, trSize, fenc, fencStride)
			dsp.Dct[index](q.fencShortBuf, q.fencDctCoeff, trSize)
		}

		dsp.Dct[index](residual, q.resiDctCoeff, stride)

		if q.nr != nil && q.nr.Enabled && !useDST {
			denoiseDct(q.resiDctCoeff, q.nr.ResidualSum[sizeIdx][:], q.nr.Offset[sizeIdx][:], 16<<uint(sizeIdx*2))
			q.nr.Count[sizeIdx]++
		}
	}

	if q.useRDOQ && curUseRDOQ {
		return q.rdoQuant(cu, coeff, log2TrSize, ch, absPartIdx)
	}
	return q.quant(cu, coeff, log2TrSize, ch, absPartIdx)
}

// InvtransformNxN reconstructs the residual for one block: dequantization
// followed by the inverse transform, with fast paths for transform-quant
// bypass, transform skip, and DC-only blocks.
func (q *Quant) InvtransformNxN(transQuantBypass bool, residual []int16, stride int, coeff []int16,
	log2TrSize uint32, ch Channel, bIntra, useTransformSkip bool, numSig int) {

	if transQuantBypass {
		trSize := 1 << log2TrSize
		for k := 0; k < trSize; k++ {
			for j := 0; j < trSize; j++ {
				residual[k*stride+j] = coeff[k*trSize+j]
			}
		}
		return
	}

	rem := q.qpParam[ch].Rem
	per := q.qpParam[ch].Per
	transformShift := MaxTrDynamicRange - BitDepth - int(log2TrSize)
	shift := QuantIQuantShift - QuantShift - transformShift
	numCoeff := 1 << (log2TrSize * 2)

	if q.scalingList.Enabled {
		listType := scalingListType(bIntra, ch)
		dequantCoef := q.scalingList.DequantCoef[log2TrSize-2][listType][rem]
		dsp.DequantScaling(coeff, dequantCoef, q.resiDctCoeff, numCoeff, per, shift)
	} else {
		scale := invQuantScales[rem] << uint(per)
		dsp.DequantNormal(coeff, q.resiDctCoeff, numCoeff, scale, shift)
	}

	if useTransformSkip {
		trSize := 1 << log2TrSize
		shift = transformShift
		if shift > 0 {
			dsp.Cvt32to16Shr(residual, q.resiDctCoeff, stride, shift, trSize)
		} else {
			// BitDepth >= 13
			shift = -shift
			for j := 0; j < trSize; j++ {
				for k := 0; k < trSize; k++ {
					residual[j*stride+k] = int16(q.resiDctCoeff[j*trSize+k]) << uint(shift)
				}
			}
		}
		return
	}

	sizeIdx := int(log2TrSize) - 2
	useDST := sizeIdx == 0 && ch == ChannelY && bIntra

	if numSig == 1 && coeff[0] != 0 && !useDST {
		const shift1st = 7
		const add1st = 1 << (shift1st - 1)
		shift2nd := 12 - (BitDepth - 8)
		add2nd := 1 << uint(shift2nd-1)

		dcVal := (((int(q.resiDctCoeff[0])*64+add1st)>>shift1st)*64 + add2nd) >> uint(shift2nd)
		dsp.BlockFill[sizeIdx](residual, stride, int16(dcVal))
		return
	}

	index := dsp.DCT4x4 + sizeIdx
	if useDST {
		index = dsp.DST4x4
	}
	dsp.Idct[index](q.resiDctCoeff, residual, stride)
}
