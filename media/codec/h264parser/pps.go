package h264parser

import (
	"bytes"
	"math/bits"

	"github.com/polw1/mp4ff/common/errs"
	bitio "github.com/polw1/mp4ff/utils/bits"
)

// PPSInfo holds a decoded picture parameter set (ITU-T H.264 7.3.2.2).
type PPSInfo struct {
	PicParameterSetID                     uint
	SeqParameterSetID                     uint
	EntropyCodingModeFlag                 bool
	BottomFieldPicOrderInFramePresentFlag bool

	NumSliceGroupsMinus1          uint
	SliceGroupMapType             uint
	RunLengthMinus1               []uint
	TopLeft                       []uint
	BottomRight                   []uint
	SliceGroupChangeDirectionFlag bool
	SliceGroupChangeRateMinus1    uint
	PicSizeInMapUnitsMinus1       uint
	SliceGroupID                  []uint32

	NumRefIdxL0DefaultActiveMinus1 uint
	NumRefIdxL1DefaultActiveMinus1 uint
	WeightedPredFlag               bool
	WeightedBipredIdc              uint
	PicInitQpMinus26               int
	PicInitQsMinus26               int
	ChromaQpIndexOffset            int

	DeblockingFilterControlPresentFlag bool
	ConstrainedIntraPredFlag           bool
	RedundantPicCntPresentFlag         bool

	// Tail fields, present only when more RBSP data remains.
	Transform8x8ModeFlag        bool
	PicScalingMatrixPresentFlag bool
	PicScalingLists             []ScalingList
	SecondChromaQpIndexOffset   int
}

// CeilLog2 returns the number of bits needed to represent the value v-1,
// i.e. ceil(log2(v)), and 0 for v <= 1.
func CeilLog2(v uint) uint {
	if v <= 1 {
		return 0
	}
	return uint(32 - bits.LeadingZeros32(uint32(v-1)))
}

// ParsePPS decodes a PPS NAL unit including its header byte. The three
// tail fields after redundant_pic_cnt_present_flag are read only when the
// unescaped payload has bits left, which changes how slices referencing
// this PPS must be parsed.
func ParsePPS(nalu []byte) (*PPSInfo, error) {
	if len(nalu) < 1 || GetNaluType(nalu[0]) != NALU_PPS {
		return nil, errs.Wrapf(errs.ErrUnsupported, "h264parser: not a PPS NAL unit")
	}
	rbsp := RemoveEmulationBytes(nalu[1:])
	totalBits := len(rbsp) * 8
	r := bitio.NewReader(bytes.NewReader(rbsp))

	pps := &PPSInfo{}
	pps.PicParameterSetID = r.ReadExpGolomb()
	pps.SeqParameterSetID = r.ReadExpGolomb()
	pps.EntropyCodingModeFlag = r.ReadFlag()
	pps.BottomFieldPicOrderInFramePresentFlag = r.ReadFlag()
	pps.NumSliceGroupsMinus1 = r.ReadExpGolomb()

	if pps.NumSliceGroupsMinus1 > 0 {
		pps.SliceGroupMapType = r.ReadExpGolomb()
		switch pps.SliceGroupMapType {
		case 0:
			for i := uint(0); i <= pps.NumSliceGroupsMinus1; i++ {
				pps.RunLengthMinus1 = append(pps.RunLengthMinus1, r.ReadExpGolomb())
				if r.AccError() != nil {
					break
				}
			}
		case 2:
			for i := uint(0); i <= pps.NumSliceGroupsMinus1; i++ {
				pps.TopLeft = append(pps.TopLeft, r.ReadExpGolomb())
				pps.BottomRight = append(pps.BottomRight, r.ReadExpGolomb())
				if r.AccError() != nil {
					break
				}
			}
		case 3, 4, 5:
			pps.SliceGroupChangeDirectionFlag = r.ReadFlag()
			pps.SliceGroupChangeRateMinus1 = r.ReadExpGolomb()
		case 6:
			pps.PicSizeInMapUnitsMinus1 = r.ReadExpGolomb()
			if r.AccError() != nil {
				return nil, errs.Wrapf(r.AccError(), "h264parser: parse PPS")
			}
			nrBits := CeilLog2(pps.NumSliceGroupsMinus1 + 1)
			nrEntries := pps.PicSizeInMapUnitsMinus1 + 1
			if uint64(nrEntries)*uint64(nrBits) > uint64(totalBits) {
				return nil, errs.Wrapf(errs.ErrMalformed, "h264parser: slice group map larger than PPS")
			}
			for i := uint(0); i < nrEntries; i++ {
				pps.SliceGroupID = append(pps.SliceGroupID, r.Read(int(nrBits)))
			}
		}
	}

	pps.NumRefIdxL0DefaultActiveMinus1 = r.ReadExpGolomb()
	pps.NumRefIdxL1DefaultActiveMinus1 = r.ReadExpGolomb()
	pps.WeightedPredFlag = r.ReadFlag()
	pps.WeightedBipredIdc = uint(r.Read(2))
	pps.PicInitQpMinus26 = r.ReadSignedGolomb()
	pps.PicInitQsMinus26 = r.ReadSignedGolomb()
	pps.ChromaQpIndexOffset = r.ReadSignedGolomb()
	pps.DeblockingFilterControlPresentFlag = r.ReadFlag()
	pps.ConstrainedIntraPredFlag = r.ReadFlag()
	pps.RedundantPicCntPresentFlag = r.ReadFlag()

	if r.NrBitsRead() < totalBits {
		pps.Transform8x8ModeFlag = r.ReadFlag()
		if r.NrBitsRead() < totalBits {
			pps.PicScalingMatrixPresentFlag = r.ReadFlag()
			if pps.PicScalingMatrixPresentFlag {
				nrScalingLists := 6
				if pps.Transform8x8ModeFlag {
					// assumes chroma_format_idc != 3
					nrScalingLists += 2
				}
				pps.PicScalingLists = make([]ScalingList, nrScalingLists)
				for i := 0; i < nrScalingLists; i++ {
					if !r.ReadFlag() {
						continue
					}
					size := 16
					if i >= 6 {
						size = 64
					}
					pps.PicScalingLists[i] = readScalingList(r, size)
				}
			}
			if r.NrBitsRead() < totalBits {
				pps.SecondChromaQpIndexOffset = r.ReadSignedGolomb()
			}
		}
	}

	if r.AccError() != nil {
		return nil, errs.Wrapf(r.AccError(), "h264parser: parse PPS")
	}
	return pps, nil
}
