package hevc

// QPParam splits a scaled QP into the per-6 step and its remainder. Each
// increment of 6 in QP doubles the quantization step, so per feeds shifts
// and rem indexes the six scale tables.
type QPParam struct {
	Per int
	Rem int
}

// Set derives (per, rem) from a scaled QP (source QP plus QpBdOffset).
func (qp *QPParam) Set(qpScaled int) {
	qp.Per = qpScaled / 6
	qp.Rem = qpScaled % 6
}

// chromaScale maps a clipped chroma QP to the coded chroma QP for 4:2:0
// (H.265 Table 8-9). Identity below 30, saturating toward qp-6 above 43.
var chromaScale = [58]int{
	0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15,
	16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29,
	29, 30, 31, 32, 33, 33, 34, 34, 35, 35, 36, 36, 37, 37,
	38, 39, 40, 41, 42, 43, 44, 45, 46, 47, 48, 49, 50, 51,
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SetQPForBlock derives the per-channel QP parameters for a coding unit:
// luma directly from the CU QP, chroma through the PPS offsets and the
// 4:2:0 remap table.
func (q *Quant) SetQPForBlock(cu CodingUnit, absPartIdx uint32) {
	qpy := cu.QP(absPartIdx)
	chFmt := cu.ChromaFormat()

	q.qpParam[ChannelY].Set(qpy + QpBdOffset)
	q.setChromaQP(qpy, ChannelU, cu.ChromaQPOffset(ChannelU), chFmt)
	q.setChromaQP(qpy, ChannelV, cu.ChromaQPOffset(ChannelV), chFmt)
}

func (q *Quant) setChromaQP(qpy int, ch Channel, chromaQPOffset, chFmt int) {
	qp := clamp(qpy+chromaQPOffset, -QpBdOffset, 57)
	if qp >= 30 {
		if chFmt == Csp420 {
			qp = chromaScale[qp]
		} else if qp > 51 {
			qp = 51
		}
	}
	q.qpParam[ch].Set(qp + QpBdOffset)
}
