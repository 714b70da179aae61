package hevc

import (
	"math"
	"math/bits"

	"github.com/deepteams/hevc/internal/dsp"
)

// Rate-distortion optimized quantization. The engine minimizes
// distortion + lambda2*rate jointly over each coefficient's level, the set
// of coding groups kept nonzero, and the last-significant position, then
// applies the RDO form of sign-bit hiding.

// coeffGroupRDStats accumulates per-CG cost terms during the reverse scan.
type coeffGroupRDStats struct {
	nnzBeforePos0     int
	codedLevelAndDist float64 // distortion and level cost only
	uncodedDist       float64 // all-zero coded block distortion
	sigCost           float64
	sigCost0          float64
}

// getICRate estimates the rate of an absolute level given the running
// greater-one/greater-two state, without the IEP sign bin. diffLevel is
// level - baseLevel; negative means the level is covered by the flag bins
// alone.
func getICRate(absLevel uint32, diffLevel int32, greaterOneBits, levelAbsBits *[2]int, absGoRice, c1c2Idx uint32) int {
	if absLevel == 0 {
		return 0
	}
	rate := 0

	if diffLevel < 0 {
		if absLevel == 2 {
			rate += greaterOneBits[1] + levelAbsBits[0]
		} else {
			rate += greaterOneBits[0]
		}
	} else {
		symbol := uint32(diffLevel)
		maxVlc := goRiceRange[absGoRice]

		if symbol > maxVlc {
			// exp-Golomb escape
			absLevel = symbol - maxVlc
			egs := (bits.Len32(absLevel)-1)*2 + 1
			rate += egs << 15
			symbol = maxVlc + 1
		}

		prefLen := (symbol >> absGoRice) + 1
		numBins := prefLen + absGoRice
		if numBins > 8 {
			numBins = 8
		}
		rate += int(numBins) << 15

		if c1c2Idx&1 != 0 {
			rate += greaterOneBits[1]
		}
		if c1c2Idx == 3 {
			rate += levelAbsBits[1]
		}
	}
	return rate
}

// getICRateCost is the candidate-level rate used inside the level search;
// unlike getICRate it includes the sign bin and models the truncated-Rice
// prefix explicitly.
func getICRateCost(absLevel uint32, diffLevel int32, greaterOneBits, levelAbsBits *[2]int, absGoRice, c1c2Idx uint32) int {
	rate := IEPRate

	if diffLevel < 0 {
		if absLevel == 2 {
			rate += greaterOneBits[1] + levelAbsBits[0]
		} else {
			rate += greaterOneBits[0]
		}
	} else {
		symbol := uint32(diffLevel)
		if (symbol >> absGoRice) < CoefRemainBinReduction {
			length := symbol >> absGoRice
			rate += int(length+1+absGoRice) << 15
		} else {
			length := uint32(0)
			symbol = (symbol >> absGoRice) - CoefRemainBinReduction
			if symbol != 0 {
				length = uint32(bits.Len32(symbol+1) - 1)
			}
			rate += int(CoefRemainBinReduction+length+absGoRice+1+length) << 15
		}
		if c1c2Idx&1 != 0 {
			rate += greaterOneBits[1]
		}
		if c1c2Idx == 3 {
			rate += levelAbsBits[1]
		}
	}
	return rate
}

// signApply gives x the sign of y.
func signApply(x, y int) int {
	if y < 0 {
		return -x
	}
	return x
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

// rdoQuant runs the full RDOQ decision chain for one transform block and
// returns the number of nonzero coefficients written to dstCoeff.
func (q *Quant) rdoQuant(cu CodingUnit, dstCoeff []int16, log2TrSize uint32, ch Channel, absPartIdx uint32) int {
	trSize := uint32(1) << log2TrSize
	transformShift := MaxTrDynamicRange - BitDepth - int(log2TrSize)
	listType := scalingListType(cu.IsIntra(absPartIdx), ch)

	rem := q.qpParam[ch].Rem
	per := q.qpParam[ch].Per
	qbits := QuantShift + per + transformShift
	add := 1 << (qbits - 1) // symmetric rounding for the prepass
	qCoef := q.scalingList.QuantCoef[log2TrSize-2][listType][rem]

	numCoeff := 1 << (log2TrSize * 2)
	var scaledCoeff [MaxTrSize * MaxTrSize]int32
	numSig := dsp.NQuant(q.resiDctCoeff, qCoef, scaledCoeff[:], dstCoeff, qbits, add, numCoeff)
	if numSig == 0 {
		return 0
	}

	// Cost comparisons below rely on float64 semantics; Go rounds every
	// operation to double, so no FPU-state barrier is needed here.
	q.selectLambda(ch)

	// unquant constants for psy-rdoq
	unquantShift := QuantIQuantShift - QuantShift - transformShift
	unquantRound := (1 << unquantShift) - 1
	unquantScale := invQuantScales[rem] << uint(per)
	scaleBits := ScaleBits - 2*transformShift

	errScale := q.scalingList.ErrScale[log2TrSize-2][listType][rem]
	isLuma := ch == ChannelY
	usePsy := q.psyRdoqScale != 0 && isLuma

	blockUncodedCost := 0.0
	var costCoeff, costSig, costCoeff0 [MaxTrSize * MaxTrSize]float64
	var rateIncUp, rateIncDown, sigRateDelta, deltaU [MaxTrSize * MaxTrSize]int32

	const cgSize = 1 << MLSCGSize
	var costCoeffGroupSig [MLSGrpNum]float64
	sigCoeffGroupFlag64 := uint64(0)
	ctxSet := uint32(0)
	c1 := 1
	c2 := 0
	baseCost := 0.0
	lastScanPos := -1
	goRiceParam := uint32(0)
	c1Idx := 0
	c2Idx := 0
	cgLastScanPos := -1

	cp := GetTUEntropyCodingParameters(cu, absPartIdx, log2TrSize, isLuma)
	cgNum := 1 << (cp.Log2TrSizeCG * 2)

	var rdStats coeffGroupRDStats

	for cgScanPos := cgNum - 1; cgScanPos >= 0; cgScanPos-- {
		cgBlkPos := uint32(cp.ScanCG[cgScanPos])
		cgPosY := cgBlkPos >> cp.Log2TrSizeCG
		cgPosX := cgBlkPos - (cgPosY << cp.Log2TrSizeCG)
		cgBlkPosMask := uint64(1) << cgBlkPos
		rdStats = coeffGroupRDStats{}

		patternSigCtx := calcPatternSigCtx(sigCoeffGroupFlag64, cgPosX, cgPosY, cp.Log2TrSizeCG)

		for scanPosinCG := cgSize - 1; scanPosinCG >= 0; scanPosinCG-- {
			scanPos := (cgScanPos << MLSCGSize) + scanPosinCG
			blkPos := uint32(cp.Scan[scanPos])
			scaleFactor := errScale[blkPos]
			levelDouble := int(scaledCoeff[blkPos])
			maxAbsLevel := abs16(dstCoeff[blkPos])

			// cost of coding this coefficient as zero: pure L2 distortion
			costCoeff0[scanPos] = float64(int64(levelDouble)*int64(levelDouble)) * scaleFactor
			blockUncodedCost += costCoeff0[scanPos]

			if maxAbsLevel > 0 && lastScanPos < 0 {
				// first nonzero in reverse scan becomes the provisional last
				lastScanPos = scanPos
				if scanPos < ScanSetSize || !isLuma {
					ctxSet = 0
				} else {
					ctxSet = 2
				}
				cgLastScanPos = cgScanPos
			}

			if lastScanPos >= 0 {
				c1c2Idx := uint32(0)
				if c1Idx < C1FlagNumber {
					c1c2Idx = 1
				}
				if c2Idx == 0 {
					c1c2Idx += 2
				}
				baseLevel := [4]uint32{1, 2, 1, 3}[c1c2Idx]

				level := uint32(0)
				oneCtx := 4*ctxSet + uint32(c1)
				absCtx := ctxSet + uint32(c2)
				greaterOneBits := &q.estBits.GreaterOneBits[oneCtx]
				levelAbsBits := &q.estBits.LevelAbsBits[absCtx]

				// Two-candidate level search shared by the last-position and
				// interior cases; curCostSig is the significance-flag rate.
				codedLevel := func(curCostSig int) uint32 {
					err1 := int64(levelDouble) - (int64(maxAbsLevel) << uint(qbits))
					err2 := float64(err1 * err1)
					minAbsLevel := maxAbsLevel - 1
					if minAbsLevel < 1 {
						minAbsLevel = 1
					}
					signCoef := int(q.resiDctCoeff[blkPos])
					predictedCoef := int(q.fencDctCoeff[blkPos]) - signCoef
					best := uint32(0)
					for lvl := maxAbsLevel; lvl >= minAbsLevel; lvl-- {
						rateCost := getICRateCost(uint32(lvl), int32(lvl)-int32(baseLevel), greaterOneBits, levelAbsBits, goRiceParam, c1c2Idx)
						curCost := err2*scaleFactor + q.lambda2*float64(curCostSig+rateCost)

						psyValue := 0.0
						if usePsy && blkPos != 0 {
							unquantAbsLevel := (lvl*unquantScale + unquantRound) >> uint(unquantShift)
							reconCoef := absInt(unquantAbsLevel+signApply(predictedCoef, signCoef)) << uint(scaleBits)
							psyValue = float64((q.psyRdoqScale * int64(reconCoef)) >> 8)
						}

						if curCost-psyValue < costCoeff[scanPos] {
							best = uint32(lvl)
							costCoeff[scanPos] = curCost - psyValue
							costSig[scanPos] = q.lambda2 * float64(curCostSig)
						}
						if lvl > minAbsLevel {
							err3 := 2 * err1 * (int64(1) << uint(qbits))
							err4 := (int64(1) << uint(qbits)) * (int64(1) << uint(qbits))
							err2 += float64(err3 + err4)
						}
					}
					return best
				}

				costCoeff[scanPos] = math.MaxFloat64
				if scanPos == lastScanPos {
					// the last coefficient is known nonzero and carries no
					// significance flag
					level = codedLevel(0)
					sigRateDelta[blkPos] = 0
				} else {
					ctxSig := getSigCtxInc(patternSigCtx, log2TrSize, trSize, blkPos, isLuma, cp.FirstSignificanceMapContext)
					if maxAbsLevel < 3 {
						costSig[scanPos] = q.lambda2 * float64(q.estBits.SignificantBits[ctxSig][0])
						costCoeff[scanPos] = costCoeff0[scanPos] + costSig[scanPos]
					}
					if maxAbsLevel != 0 {
						level = codedLevel(q.estBits.SignificantBits[ctxSig][1])
					} else {
						level = 0
					}
					sigRateDelta[blkPos] = int32(q.estBits.SignificantBits[ctxSig][1] - q.estBits.SignificantBits[ctxSig][0])
				}

				deltaU[blkPos] = int32((levelDouble - (int(level) << uint(qbits))) >> uint(qbits-8))
				dstCoeff[blkPos] = int16(level)
				baseCost += costCoeff[scanPos]

				// record rate deltas for sign hiding at the end
				if level > 0 {
					rateNow := getICRate(level, int32(level)-int32(baseLevel), greaterOneBits, levelAbsBits, goRiceParam, c1c2Idx)
					rateIncUp[blkPos] = int32(getICRate(level+1, int32(level+1)-int32(baseLevel), greaterOneBits, levelAbsBits, goRiceParam, c1c2Idx) - rateNow)
					rateIncDown[blkPos] = int32(getICRate(level-1, int32(level-1)-int32(baseLevel), greaterOneBits, levelAbsBits, goRiceParam, c1c2Idx) - rateNow)
				} else {
					rateIncUp[blkPos] = int32(greaterOneBits[0])
					rateIncDown[blkPos] = 0
				}

				// update the running CABAC estimation state
				if level >= baseLevel && goRiceParam < 4 && level > (uint32(3)<<goRiceParam) {
					goRiceParam++
				}
				if level > 0 {
					c1Idx++
				}
				if level > 1 {
					c1 = 0
					if c2 < 2 {
						c2++
					}
					c2Idx++
				} else if c1 > 0 && c1 < 3 && level == 1 {
					c1++
				}

				// context set for the next (lower-frequency) coding group
				if scanPos%ScanSetSize == 0 && scanPos > 0 {
					c2 = 0
					goRiceParam = 0
					c1Idx = 0
					c2Idx = 0
					if scanPos == ScanSetSize || !isLuma {
						ctxSet = 0
					} else {
						ctxSet = 2
					}
					if c1 == 0 {
						ctxSet++
					}
					c1 = 1
				}
			} else {
				// nothing to code yet; all-zero prefix of the reverse scan
				costCoeff[scanPos] = 0
				baseCost += costCoeff0[scanPos]
			}

			rdStats.sigCost += costSig[scanPos]
			if scanPosinCG == 0 {
				rdStats.sigCost0 = costSig[scanPos]
			}
			if dstCoeff[blkPos] != 0 {
				sigCoeffGroupFlag64 |= cgBlkPosMask
				rdStats.codedLevelAndDist += costCoeff[scanPos] - costSig[scanPos]
				rdStats.uncodedDist += costCoeff0[scanPos]
				if scanPosinCG != 0 {
					rdStats.nnzBeforePos0++
				}
			}
		}

		// decide whether the whole coding group codes cheaper as zero
		if cgLastScanPos >= 0 {
			costCoeffGroupSig[cgScanPos] = 0
			if cgScanPos != 0 {
				if sigCoeffGroupFlag64&cgBlkPosMask == 0 {
					ctxSig := getSigCoeffGroupCtxInc(sigCoeffGroupFlag64, cgPosX, cgPosY, cp.Log2TrSizeCG)
					baseCost += q.lambda2*float64(q.estBits.SignificantCoeffGroupBits[ctxSig][0]) - rdStats.sigCost
					costCoeffGroupSig[cgScanPos] = q.lambda2 * float64(q.estBits.SignificantCoeffGroupBits[ctxSig][0])
				} else if cgScanPos < cgLastScanPos {
					// the last CG is handled with the last position below
					if rdStats.nnzBeforePos0 == 0 {
						baseCost -= rdStats.sigCost0
						rdStats.sigCost -= rdStats.sigCost0
					}
					costZeroCG := baseCost

					ctxSig := getSigCoeffGroupCtxInc(sigCoeffGroupFlag64, cgPosX, cgPosY, cp.Log2TrSizeCG)
					baseCost += q.lambda2 * float64(q.estBits.SignificantCoeffGroupBits[ctxSig][1])
					costZeroCG += q.lambda2 * float64(q.estBits.SignificantCoeffGroupBits[ctxSig][0])
					costCoeffGroupSig[cgScanPos] = q.lambda2 * float64(q.estBits.SignificantCoeffGroupBits[ctxSig][1])

					// zeroing trades the coded levels for their uncoded
					// distortion and drops every significance flag in the CG
					costZeroCG += rdStats.uncodedDist
					costZeroCG -= rdStats.codedLevelAndDist
					costZeroCG -= rdStats.sigCost

					if costZeroCG < baseCost {
						sigCoeffGroupFlag64 &^= cgBlkPosMask
						baseCost = costZeroCG
						costCoeffGroupSig[cgScanPos] = q.lambda2 * float64(q.estBits.SignificantCoeffGroupBits[ctxSig][0])

						for scanPosinCG := cgSize - 1; scanPosinCG >= 0; scanPosinCG-- {
							scanPos := cgScanPos*cgSize + scanPosinCG
							blkPos := cp.Scan[scanPos]
							if dstCoeff[blkPos] != 0 {
								costCoeff[scanPos] = costCoeff0[scanPos]
								costSig[scanPos] = 0
							}
							dstCoeff[blkPos] = 0
						}
					}
				}
			} else {
				sigCoeffGroupFlag64 |= cgBlkPosMask
			}
		}
	}

	if lastScanPos < 0 {
		return 0
	}

	var bestCost float64
	if !cu.IsIntra(absPartIdx) && isLuma && cu.TransformIdx(absPartIdx) == 0 {
		bestCost = blockUncodedCost + q.lambda2*float64(q.estBits.BlockRootCbpBits[0][0])
		baseCost += q.lambda2 * float64(q.estBits.BlockRootCbpBits[0][1])
	} else {
		ctxCbf := cu.CbfCtx(ch, cu.TransformIdx(absPartIdx))
		bestCost = blockUncodedCost + q.lambda2*float64(q.estBits.BlockCbpBits[ctxCbf][0])
		baseCost += q.lambda2 * float64(q.estBits.BlockCbpBits[ctxCbf][1])
	}

	// move the last-significant position forward while it pays
	bestLastIdx := 0
	foundLast := false
	for cgScanPos := cgLastScanPos; cgScanPos >= 0 && !foundLast; cgScanPos-- {
		cgBlkPos := cp.ScanCG[cgScanPos]
		baseCost -= costCoeffGroupSig[cgScanPos]

		if sigCoeffGroupFlag64&(uint64(1)<<cgBlkPos) == 0 {
			continue
		}
		for scanPosinCG := cgSize - 1; scanPosinCG >= 0; scanPosinCG-- {
			scanPos := cgScanPos*cgSize + scanPosinCG
			if scanPos > lastScanPos {
				continue
			}
			blkPos := uint32(cp.Scan[scanPos])
			if dstCoeff[blkPos] != 0 {
				posY := blkPos >> log2TrSize
				posX := blkPos - (posY << log2TrSize)
				var costLast float64
				if cp.ScanType == ScanVer {
					costLast = q.lambda2 * float64(q.getRateLast(posY, posX))
				} else {
					costLast = q.lambda2 * float64(q.getRateLast(posX, posY))
				}
				totalCost := baseCost + costLast - costSig[scanPos]

				if totalCost < bestCost {
					bestLastIdx = scanPos + 1
					bestCost = totalCost
				}
				if dstCoeff[blkPos] > 1 {
					foundLast = true
					break
				}
				baseCost -= costCoeff[scanPos]
				baseCost += costCoeff0[scanPos]
			} else {
				baseCost -= costSig[scanPos]
			}
		}
	}

	// recount nonzeros and restore the DCT coefficient signs
	numSig = 0
	for pos := 0; pos < bestLastIdx; pos++ {
		blkPos := cp.Scan[pos]
		level := dstCoeff[blkPos]
		if level != 0 {
			numSig++
		}
		if q.resiDctCoeff[blkPos] < 0 {
			dstCoeff[blkPos] = -level
		}
	}
	for pos := bestLastIdx; pos <= lastScanPos; pos++ {
		dstCoeff[cp.Scan[pos]] = 0
	}

	if cu.SignHideEnabled() && numSig >= 2 {
		// the scaling list is ignored in this optimization
		invQuant := int64(invQuantScales[rem]) << uint(per)
		rdFactor := int64(float64(invQuant*invQuant)/(q.lambda2*16) + 0.5)

		lastCG := true
		for subSet := cgLastScanPos; subSet >= 0; subSet-- {
			subPos := subSet << Log2ScanSetSize

			n := ScanSetSize - 1
			for ; n >= 0; n-- {
				if dstCoeff[cp.Scan[n+subPos]] != 0 {
					break
				}
			}
			if n < 0 {
				continue
			}
			lastNZPosInCG := n

			for n = 0; ; n++ {
				if dstCoeff[cp.Scan[n+subPos]] != 0 {
					break
				}
			}
			firstNZPosInCG := n

			if lastNZPosInCG-firstNZPosInCG >= SBHThreshold {
				signbit := 1
				if dstCoeff[cp.Scan[subPos+firstNZPosInCG]] > 0 {
					signbit = 0
				}
				absSum := 0
				for n = firstNZPosInCG; n <= lastNZPosInCG; n++ {
					absSum += int(dstCoeff[cp.Scan[n+subPos]])
				}

				if signbit != absSum&1 {
					minCostInc := int64(math.MaxInt64)
					curCost := int64(math.MaxInt64)
					minPos := -1
					finalChange := 0
					curChange := 0

					start := ScanSetSize - 1
					if lastCG {
						start = lastNZPosInCG
					}
					for n = start; n >= 0; n-- {
						blkPos := cp.Scan[n+subPos]
						if dstCoeff[blkPos] != 0 {
							costUp := rdFactor*int64(-deltaU[blkPos]) + int64(rateIncUp[blkPos])
							costDown := rdFactor*int64(deltaU[blkPos]) + int64(rateIncDown[blkPos])
							if abs16(dstCoeff[blkPos]) == 1 {
								costDown -= int64(IEPRate + int(sigRateDelta[blkPos]))
							}
							if lastCG && lastNZPosInCG == n && abs16(dstCoeff[blkPos]) == 1 {
								costDown -= 4 * IEPRate
							}

							if costUp < costDown {
								curCost = costUp
								curChange = 1
							} else {
								curChange = -1
								if n == firstNZPosInCG && abs16(dstCoeff[blkPos]) == 1 {
									curCost = math.MaxInt64
								} else {
									curCost = costDown
								}
							}
						} else {
							curCost = rdFactor*int64(-absInt(int(deltaU[blkPos]))) + IEPRate + int64(rateIncUp[blkPos]) + int64(sigRateDelta[blkPos])
							curChange = 1

							if n < firstNZPosInCG {
								thisSignBit := 0
								if q.resiDctCoeff[blkPos] < 0 {
									thisSignBit = 1
								}
								if thisSignBit != signbit {
									curCost = math.MaxInt64
								}
							}
						}

						if curCost < minCostInc {
							minCostInc = curCost
							finalChange = curChange
							minPos = int(blkPos)
						}
					}

					if minPos >= 0 {
						if dstCoeff[minPos] == 32767 || dstCoeff[minPos] == -32768 {
							finalChange = -1
						}

						if dstCoeff[minPos] == 0 {
							numSig++
						} else if finalChange == -1 && abs16(dstCoeff[minPos]) == 1 {
							numSig--
						}

						if q.resiDctCoeff[minPos] >= 0 {
							dstCoeff[minPos] += int16(finalChange)
						} else {
							dstCoeff[minPos] -= int16(finalChange)
						}
					}
				}
			}
			lastCG = false
		}
	}

	return numSig
}
