package hevc

// Context derivation for the significance maps and the last-position rate.

// ctxIndMap4x4 is the fixed significance context layout for 4x4 blocks.
var ctxIndMap4x4 = [16]uint32{
	0, 1, 4, 5,
	2, 3, 4, 5,
	6, 6, 8, 8,
	7, 7, 8, 8,
}

// sigCtxTable is indexed [patternSigCtx][posX mod 4][posY mod 4] for blocks
// larger than 4x4.
var sigCtxTable = [4][4][4]uint32{
	{
		{2, 1, 1, 0},
		{1, 1, 0, 0},
		{1, 0, 0, 0},
		{0, 0, 0, 0},
	},
	{
		{2, 1, 0, 0},
		{2, 1, 0, 0},
		{2, 1, 0, 0},
		{2, 1, 0, 0},
	},
	{
		{2, 2, 2, 2},
		{1, 1, 1, 1},
		{0, 0, 0, 0},
		{0, 0, 0, 0},
	},
	{
		{2, 2, 2, 2},
		{2, 2, 2, 2},
		{2, 2, 2, 2},
		{2, 2, 2, 2},
	},
}

// calcPatternSigCtx packs the significance of the right and below CG
// neighbors into two bits; these steer the in-CG significance contexts.
func calcPatternSigCtx(sigCoeffGroupFlag64 uint64, cgPosX, cgPosY, log2TrSizeCG uint32) uint32 {
	if log2TrSizeCG == 0 {
		return 0
	}
	trSizeCG := uint32(1) << log2TrSizeCG
	sigPos := uint32(sigCoeffGroupFlag64 >> (1 + (cgPosY << log2TrSizeCG) + cgPosX))

	sigRight := uint32(0)
	if cgPosX != trSizeCG-1 {
		sigRight = sigPos & 1
	}
	sigLower := uint32(0)
	if cgPosY != trSizeCG-1 {
		sigLower = (sigPos >> (trSizeCG - 2)) & 2
	}
	return sigRight + sigLower
}

// getSigCtxInc derives the context index of one significance flag. DC has
// its own context; 4x4 blocks use the fixed map; larger blocks combine the
// neighbor pattern with the in-CG position, and luma positions outside the
// top-left CG shift up by 3.
func getSigCtxInc(patternSigCtx, log2TrSize, trSize, blkPos uint32, isLuma bool, firstSignificanceMapContext uint32) uint32 {
	if blkPos == 0 {
		return 0
	}
	if log2TrSize == 2 {
		return ctxIndMap4x4[blkPos]
	}

	posY := blkPos >> log2TrSize
	posX := blkPos & (trSize - 1)

	cnt := sigCtxTable[patternSigCtx][blkPos&3][posY&3]
	offset := firstSignificanceMapContext + cnt

	if isLuma && (posX|posY) >= 4 {
		return 3 + offset
	}
	return offset
}

// getSigCoeffGroupCtxInc derives the context of the coded-sub-block flag
// from the right and below CG neighbors.
func getSigCoeffGroupCtxInc(sigCoeffGroupFlag64 uint64, cgPosX, cgPosY, log2TrSizeCG uint32) uint32 {
	trSizeCG := uint32(1) << log2TrSizeCG
	sigPos := uint32(sigCoeffGroupFlag64 >> (1 + (cgPosY << log2TrSizeCG) + cgPosX))

	sigRight := uint32(0)
	if cgPosX != trSizeCG-1 {
		sigRight = sigPos
	}
	sigLower := uint32(0)
	if cgPosY != trSizeCG-1 {
		sigLower = sigPos >> (trSizeCG - 1)
	}
	return (sigRight | sigLower) & 1
}

// groupIdx buckets a last-position coordinate for the prefix code.
var groupIdx = [32]uint32{
	0, 1, 2, 3, 4, 4, 5, 5, 6, 6, 6, 6, 7, 7, 7, 7,
	8, 8, 8, 8, 8, 8, 8, 8, 9, 9, 9, 9, 9, 9, 9, 9,
}

// getRateLast is the cost of signaling the last significant position at
// (posx, posy): the context-coded prefixes plus the bypass suffix bins.
func (q *Quant) getRateLast(posx, posy uint32) int {
	ctxX := groupIdx[posx]
	ctxY := groupIdx[posy]
	cost := q.estBits.LastXBits[ctxX] + q.estBits.LastYBits[ctxY]
	if posx > 2 {
		cost += IEPRate * int((ctxX-2)>>1)
	}
	if posy > 2 {
		cost += IEPRate * int((ctxY-2)>>1)
	}
	return cost
}
