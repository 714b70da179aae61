package hevc

// CodingUnit supplies the per-block metadata the core needs from the
// encoder's CU/TU bookkeeping. The quantizer never mutates it.
type CodingUnit interface {
	// IsIntra reports whether the partition is intra predicted.
	IsIntra(absPartIdx uint32) bool
	// QP is the luma QP of the partition.
	QP(absPartIdx uint32) int
	// ChromaFormat returns the Csp* subsampling of the frame.
	ChromaFormat() int
	// IntraDir is the intra prediction direction used for scan selection.
	IntraDir(isLuma bool, absPartIdx uint32) uint32
	// TransquantBypass reports lossless coding for the partition.
	TransquantBypass(absPartIdx uint32) bool
	// TransformIdx is the depth of the TU within the CU.
	TransformIdx(absPartIdx uint32) uint32
	// CbfCtx is the context index for the coded-block-flag of the channel.
	CbfCtx(ch Channel, trIdx uint32) uint32

	SliceType() SliceType
	SignHideEnabled() bool
	ChromaQPOffset(ch Channel) int
}

// BlockInfo is a plain-data CodingUnit for callers that drive the core
// block by block without a full CU tree.
type BlockInfo struct {
	Intra          bool
	QPY            int
	ChromaFmt      int
	LumaIntraDir   uint32
	ChromaIntraDir uint32
	Bypass         bool
	TrIdx          uint32
	CbfContext     uint32
	Slice          SliceType
	SignHide       bool
	CbQPOffset     int
	CrQPOffset     int
}

func (b *BlockInfo) IsIntra(uint32) bool          { return b.Intra }
func (b *BlockInfo) QP(uint32) int                { return b.QPY }
func (b *BlockInfo) ChromaFormat() int            { return b.ChromaFmt }
func (b *BlockInfo) TransquantBypass(uint32) bool { return b.Bypass }
func (b *BlockInfo) TransformIdx(uint32) uint32   { return b.TrIdx }
func (b *BlockInfo) SliceType() SliceType         { return b.Slice }
func (b *BlockInfo) SignHideEnabled() bool        { return b.SignHide }

func (b *BlockInfo) IntraDir(isLuma bool, _ uint32) uint32 {
	if isLuma {
		return b.LumaIntraDir
	}
	return b.ChromaIntraDir
}

func (b *BlockInfo) CbfCtx(Channel, uint32) uint32 { return b.CbfContext }

func (b *BlockInfo) ChromaQPOffset(ch Channel) int {
	if ch == ChannelV {
		return b.CrQPOffset
	}
	return b.CbQPOffset
}
