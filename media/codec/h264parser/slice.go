package h264parser

import (
	"bytes"

	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits"
)

// SliceType is the slice type after reduction modulo 5. Raw values 5-9
// signal that all slices of the picture share the type and are otherwise
// equivalent to 0-4.
type SliceType uint

const (
	SLICE_P  SliceType = 0
	SLICE_B  SliceType = 1
	SLICE_I  SliceType = 2
	SLICE_SP SliceType = 3
	SLICE_SI SliceType = 4
)

func (s SliceType) String() string {
	switch s {
	case SLICE_P:
		return "P"
	case SLICE_B:
		return "B"
	case SLICE_I:
		return "I"
	case SLICE_SP:
		return "SP"
	case SLICE_SI:
		return "SI"
	}
	return ""
}

// SliceHeader holds a decoded slice header (ITU-T H.264 7.3.3). Parsing a
// slice header needs the SPS and PPS it references, so the caller provides
// read-only lookup maps keyed by parameter set id.
type SliceHeader struct {
	SliceType      SliceType
	SliceTypeValue uint

	FirstMbInSlice    uint
	PicParameterSetID uint
	ColourPlaneID     uint
	FrameNum          uint
	FieldPicFlag      bool
	BottomFieldFlag   bool
	IDRPicID          uint

	PicOrderCntLsb          uint
	DeltaPicOrderCntBottom  int
	DeltaPicOrderCnt        [2]int
	RedundantPicCnt         uint
	DirectSpatialMvPredFlag bool

	NumRefIdxActiveOverrideFlag bool
	NumRefIdxL0ActiveMinus1     uint
	NumRefIdxL1ActiveMinus1     uint

	ModificationL0 []RefPicListModification
	ModificationL1 []RefPicListModification

	LumaLog2WeightDenom   uint
	ChromaLog2WeightDenom uint

	NoOutputOfPriorPicsFlag       bool
	LongTermReferenceFlag         bool
	AdaptiveRefPicMarkingModeFlag bool

	CabacInitIDC               uint
	SliceQPDelta               int
	SPForSwitchFlag            bool
	SliceQSDelta               int
	DisableDeblockingFilterIDC uint
	SliceAlphaC0OffsetDiv2     int
	SliceBetaOffsetDiv2        int
	SliceGroupChangeCycle      uint

	// Size is the slice header length rounded up to whole bytes,
	// including the NAL header byte.
	Size uint
}

// RefPicListModification is one reference picture list reordering
// instruction.
type RefPicListModification struct {
	ModificationOfPicNumsIDC uint
	Value                    uint
}

// ParseSliceHeader decodes the slice header of an IDR or non-IDR NAL unit.
// spsMap and ppsMap are treated as read-only; the referenced PPS and the
// SPS it names must both be present.
func ParseSliceHeader(nalu []byte, spsMap map[uint]*SPSInfo, ppsMap map[uint]*PPSInfo) (*SliceHeader, error) {
	if len(nalu) <= 1 {
		return nil, errs.Wrapf(errs.ErrTruncated, "h264parser: slice NAL unit")
	}
	naluType := GetNaluType(nalu[0])
	switch naluType {
	case NALU_NON_IDR, NALU_IDR:
	default:
		return nil, errs.Wrapf(errs.ErrUnsupported, "h264parser: nal_unit_type %d has no slice header", naluType)
	}
	nalRefIdc := uint(nalu[0] >> 5 & 0x3)

	r := bits.NewEBSPReader(bytes.NewReader(nalu[1:]))
	sh := &SliceHeader{}

	sh.FirstMbInSlice = r.ReadExpGolomb()
	sh.SliceTypeValue = r.ReadExpGolomb()
	if sh.SliceTypeValue > 9 {
		return nil, errs.Wrapf(errs.ErrMalformed, "h264parser: slice_type %d", sh.SliceTypeValue)
	}
	sh.SliceType = SliceType(sh.SliceTypeValue % 5)
	sh.PicParameterSetID = r.ReadExpGolomb()
	if r.AccError() != nil {
		return nil, errs.Wrapf(r.AccError(), "h264parser: parse slice header")
	}

	pps, ok := ppsMap[sh.PicParameterSetID]
	if !ok {
		return nil, errs.Wrapf(errs.ErrNotFound, "h264parser: pps %d", sh.PicParameterSetID)
	}
	sps, ok := spsMap[pps.SeqParameterSetID]
	if !ok {
		return nil, errs.Wrapf(errs.ErrNotFound, "h264parser: sps %d", pps.SeqParameterSetID)
	}

	if sps.SeparateColourPlaneFlag {
		sh.ColourPlaneID = uint(r.Read(2))
	}
	sh.FrameNum = uint(r.Read(int(sps.Log2MaxFrameNumMinus4) + 4))
	if !sps.FrameMbsOnlyFlag {
		sh.FieldPicFlag = r.ReadFlag()
		if sh.FieldPicFlag {
			sh.BottomFieldFlag = r.ReadFlag()
		}
	}
	if naluType == NALU_IDR {
		sh.IDRPicID = r.ReadExpGolomb()
	}

	switch sps.PicOrderCntType {
	case 0:
		sh.PicOrderCntLsb = uint(r.Read(int(sps.Log2MaxPicOrderCntLsbMinus4) + 4))
		if pps.BottomFieldPicOrderInFramePresentFlag && !sh.FieldPicFlag {
			sh.DeltaPicOrderCntBottom = r.ReadSignedGolomb()
		}
	case 1:
		if !sps.DeltaPicOrderAlwaysZeroFlag {
			sh.DeltaPicOrderCnt[0] = r.ReadSignedGolomb()
			if pps.BottomFieldPicOrderInFramePresentFlag && !sh.FieldPicFlag {
				sh.DeltaPicOrderCnt[1] = r.ReadSignedGolomb()
			}
		}
	}

	if pps.RedundantPicCntPresentFlag {
		sh.RedundantPicCnt = r.ReadExpGolomb()
	}

	if sh.SliceType == SLICE_B {
		sh.DirectSpatialMvPredFlag = r.ReadFlag()
	}

	sh.NumRefIdxL0ActiveMinus1 = pps.NumRefIdxL0DefaultActiveMinus1
	sh.NumRefIdxL1ActiveMinus1 = pps.NumRefIdxL1DefaultActiveMinus1
	if sh.SliceType == SLICE_P || sh.SliceType == SLICE_SP || sh.SliceType == SLICE_B {
		sh.NumRefIdxActiveOverrideFlag = r.ReadFlag()
		if sh.NumRefIdxActiveOverrideFlag {
			sh.NumRefIdxL0ActiveMinus1 = r.ReadExpGolomb()
			if sh.SliceType == SLICE_B {
				sh.NumRefIdxL1ActiveMinus1 = r.ReadExpGolomb()
			}
		}
	}

	if sh.SliceType != SLICE_I && sh.SliceType != SLICE_SI {
		sh.ModificationL0 = readRefPicListModification(r)
	}
	if sh.SliceType == SLICE_B {
		sh.ModificationL1 = readRefPicListModification(r)
	}

	if (pps.WeightedPredFlag && (sh.SliceType == SLICE_P || sh.SliceType == SLICE_SP)) ||
		(pps.WeightedBipredIdc == 1 && sh.SliceType == SLICE_B) {
		readPredWeightTable(r, sh, sps.ChromaArrayType())
	}

	if nalRefIdc != 0 {
		if naluType == NALU_IDR {
			sh.NoOutputOfPriorPicsFlag = r.ReadFlag()
			sh.LongTermReferenceFlag = r.ReadFlag()
		} else {
			sh.AdaptiveRefPicMarkingModeFlag = r.ReadFlag()
			if sh.AdaptiveRefPicMarkingModeFlag {
				if err := readMemoryManagementControlOps(r); err != nil {
					return nil, err
				}
			}
		}
	}

	if pps.EntropyCodingModeFlag && sh.SliceType != SLICE_I && sh.SliceType != SLICE_SI {
		sh.CabacInitIDC = r.ReadExpGolomb()
	}
	sh.SliceQPDelta = r.ReadSignedGolomb()
	if sh.SliceType == SLICE_SP || sh.SliceType == SLICE_SI {
		if sh.SliceType == SLICE_SP {
			sh.SPForSwitchFlag = r.ReadFlag()
		}
		sh.SliceQSDelta = r.ReadSignedGolomb()
	}
	if pps.DeblockingFilterControlPresentFlag {
		sh.DisableDeblockingFilterIDC = r.ReadExpGolomb()
		if sh.DisableDeblockingFilterIDC != 1 {
			sh.SliceAlphaC0OffsetDiv2 = r.ReadSignedGolomb()
			sh.SliceBetaOffsetDiv2 = r.ReadSignedGolomb()
		}
	}
	if pps.NumSliceGroupsMinus1 > 0 &&
		pps.SliceGroupMapType >= 3 && pps.SliceGroupMapType <= 5 {
		picSizeInMapUnits := (sps.PicWidthInMbsMinus1 + 1) * (sps.PicHeightInMapUnitsMinus1 + 1)
		nrBits := CeilLog2(picSizeInMapUnits/(pps.SliceGroupChangeRateMinus1+1) + 1)
		sh.SliceGroupChangeCycle = uint(r.Read(int(nrBits)))
	}

	if r.AccError() != nil {
		return nil, errs.Wrapf(r.AccError(), "h264parser: parse slice header")
	}
	sh.Size = uint(1 + (r.NrBitsRead()+7)/8)
	return sh, nil
}

func readRefPicListModification(r *bits.EBSPReader) []RefPicListModification {
	if !r.ReadFlag() { // ref_pic_list_modification_flag
		return nil
	}
	var mods []RefPicListModification
	for {
		idc := r.ReadExpGolomb()
		if idc == 3 || r.AccError() != nil {
			break
		}
		mod := RefPicListModification{ModificationOfPicNumsIDC: idc}
		switch idc {
		case 0, 1:
			mod.Value = r.ReadExpGolomb() // abs_diff_pic_num_minus1
		case 2:
			mod.Value = r.ReadExpGolomb() // long_term_pic_num
		case 4, 5:
			mod.Value = r.ReadExpGolomb() // abs_diff_view_idx_minus1
		}
		mods = append(mods, mod)
	}
	return mods
}

func readPredWeightTable(r *bits.EBSPReader, sh *SliceHeader, chromaArrayType uint) {
	sh.LumaLog2WeightDenom = r.ReadExpGolomb()
	if chromaArrayType != 0 {
		sh.ChromaLog2WeightDenom = r.ReadExpGolomb()
	}
	readWeights := func(count uint) {
		for i := uint(0); i <= count; i++ {
			if r.AccError() != nil {
				return
			}
			if r.ReadFlag() { // luma_weight_flag
				r.ReadSignedGolomb() // luma_weight
				r.ReadSignedGolomb() // luma_offset
			}
			if chromaArrayType != 0 {
				if r.ReadFlag() { // chroma_weight_flag
					for j := 0; j < 2; j++ {
						r.ReadSignedGolomb() // chroma_weight
						r.ReadSignedGolomb() // chroma_offset
					}
				}
			}
		}
	}
	readWeights(sh.NumRefIdxL0ActiveMinus1)
	if sh.SliceType == SLICE_B {
		readWeights(sh.NumRefIdxL1ActiveMinus1)
	}
}

func readMemoryManagementControlOps(r *bits.EBSPReader) error {
	for {
		if r.AccError() != nil {
			return nil
		}
		mmco := r.ReadExpGolomb()
		switch mmco {
		case 0:
			return nil
		case 1:
			r.ReadExpGolomb() // difference_of_pic_nums_minus1
		case 2:
			r.ReadExpGolomb() // long_term_pic_num
		case 3:
			r.ReadExpGolomb() // difference_of_pic_nums_minus1
			r.ReadExpGolomb() // long_term_frame_idx
		case 4:
			r.ReadExpGolomb() // max_long_term_frame_idx_plus1
		case 5:
			// empties the reference picture buffer, no operands
		case 6:
			r.ReadExpGolomb() // long_term_frame_idx
		default:
			return errs.Wrapf(errs.ErrMalformed, "h264parser: memory_management_control_operation %d", mmco)
		}
	}
}
