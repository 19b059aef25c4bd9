package h264parser

import (
	"bytes"

	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits"
)

// ScalingList holds the 16 or 64 decoded entries of a 4x4 or 8x8 scaling
// list.
type ScalingList []int

// SPSInfo holds a decoded sequence parameter set (ITU-T H.264 7.3.2.1).
type SPSInfo struct {
	Profile              uint8
	ProfileCompatibility uint8
	Level                uint8
	ParameterSetID       uint

	ChromaFormatIDC                 uint
	SeparateColourPlaneFlag         bool
	BitDepthLumaMinus8              uint
	BitDepthChromaMinus8            uint
	QpprimeYZeroTransformBypassFlag bool
	SeqScalingMatrixPresentFlag     bool
	SeqScalingLists                 []ScalingList

	Log2MaxFrameNumMinus4          uint
	PicOrderCntType                uint
	Log2MaxPicOrderCntLsbMinus4    uint
	DeltaPicOrderAlwaysZeroFlag    bool
	OffsetForNonRefPic             int
	OffsetForTopToBottomField      int
	RefFramesInPicOrderCntCycle    []int
	NumRefFrames                   uint
	GapsInFrameNumValueAllowedFlag bool

	PicWidthInMbsMinus1       uint
	PicHeightInMapUnitsMinus1 uint
	FrameMbsOnlyFlag          bool
	MbAdaptiveFrameFieldFlag  bool
	Direct8x8InferenceFlag    bool

	FrameCroppingFlag     bool
	FrameCropLeftOffset   uint
	FrameCropRightOffset  uint
	FrameCropTopOffset    uint
	FrameCropBottomOffset uint

	// Width and Height are the luma dimensions after cropping.
	Width  uint
	Height uint

	NrBytesBeforeVUI int
	NrBytesRead      int

	VUI *VUIParameters
}

// VUIParameters holds the video usability information of an SPS
// (ITU-T H.264 E.1.1). Only the fields up to the sample aspect ratio are
// filled when the SPS was parsed without the full VUI.
type VUIParameters struct {
	SampleAspectRatioWidth  uint
	SampleAspectRatioHeight uint

	OverscanInfoPresentFlag bool
	OverscanAppropriateFlag bool

	VideoSignalTypePresentFlag bool
	VideoFormat                uint
	VideoFullRangeFlag         bool
	ColourDescriptionFlag      bool
	ColourPrimaries            uint
	TransferCharacteristics    uint
	MatrixCoefficients         uint

	ChromaLocInfoPresentFlag       bool
	ChromaSampleLocTypeTopField    uint
	ChromaSampleLocTypeBottomField uint

	TimingInfoPresentFlag bool
	NumUnitsInTick        uint
	TimeScale             uint
	FixedFrameRateFlag    bool

	NalHrdParametersPresentFlag bool
	NalHrdParameters            *HrdParameters
	VclHrdParametersPresentFlag bool
	VclHrdParameters            *HrdParameters
	LowDelayHrdFlag             bool

	PicStructPresentFlag bool

	BitstreamRestrictionFlag           bool
	MotionVectorsOverPicBoundariesFlag bool
	MaxBytesPerPicDenom                uint
	MaxBitsPerMbDenom                  uint
	Log2MaxMvLengthHorizontal          uint
	Log2MaxMvLengthVertical            uint
	MaxNumReorderFrames                uint
	MaxDecFrameBuffering               uint
}

// HrdParameters holds a hypothetical reference decoder block
// (ITU-T H.264 E.1.2).
type HrdParameters struct {
	CpbCountMinus1                     uint
	BitRateScale                       uint
	CpbSizeScale                       uint
	CpbEntries                         []CpbEntry
	InitialCpbRemovalDelayLengthMinus1 uint
	CpbRemovalDelayLengthMinus1        uint
	DpbOutputDelayLengthMinus1         uint
	TimeOffsetLength                   uint
}

// CpbEntry is one coded picture buffer entry of an HRD block.
type CpbEntry struct {
	BitRateValueMinus1 uint
	CpbSizeValueMinus1 uint
	CbrFlag            bool
}

// The 16-entry sample aspect ratio table of ITU-T H.264 Table E-1.
var sarTable = [][2]uint{
	{1, 1}, {12, 11}, {10, 11}, {16, 11}, {40, 33}, {24, 11}, {20, 11},
	{32, 11}, {80, 33}, {18, 11}, {15, 11}, {64, 33}, {160, 99}, {4, 3},
	{3, 2}, {2, 1},
}

const extendedSAR = 255

// ChromaArrayType returns 0 when the colour planes are coded separately
// and the chroma format otherwise.
func (sps *SPSInfo) ChromaArrayType() uint {
	if sps.SeparateColourPlaneFlag {
		return 0
	}
	return sps.ChromaFormatIDC
}

// FPS returns the frame rate derived from the VUI timing info, or 0 when
// no timing info is present.
func (sps *SPSInfo) FPS() uint {
	if sps.VUI == nil || !sps.VUI.TimingInfoPresentFlag || sps.VUI.NumUnitsInTick == 0 {
		return 0
	}
	fps := sps.VUI.TimeScale / sps.VUI.NumUnitsInTick
	if sps.VUI.FixedFrameRateFlag {
		fps /= 2
	}
	return fps
}

func isHighProfile(profile uint8) bool {
	switch profile {
	case 44, 83, 86, 100, 110, 118, 122, 128, 134, 135, 138, 139, 244:
		return true
	}
	return false
}

// ParseSPS decodes an SPS NAL unit including its header byte. When
// parseBeyondAspectRatio is false, VUI parsing stops after the sample
// aspect ratio, which is enough for building codec strings.
func ParseSPS(nalu []byte, parseBeyondAspectRatio bool) (*SPSInfo, error) {
	if len(nalu) < 1 || GetNaluType(nalu[0]) != NALU_SPS {
		return nil, errs.Wrapf(errs.ErrUnsupported, "h264parser: not an SPS NAL unit")
	}
	rbsp := RemoveEmulationBytes(nalu[1:])
	r := bits.NewReader(bytes.NewReader(rbsp))

	sps := &SPSInfo{}
	sps.Profile = uint8(r.Read(8))
	sps.ProfileCompatibility = uint8(r.Read(8))
	sps.Level = uint8(r.Read(8))
	sps.ParameterSetID = r.ReadExpGolomb()

	sps.ChromaFormatIDC = 1
	if isHighProfile(sps.Profile) {
		sps.ChromaFormatIDC = r.ReadExpGolomb()
		if sps.ChromaFormatIDC > 3 {
			return nil, errs.Wrapf(errs.ErrMalformed, "h264parser: chroma_format_idc %d", sps.ChromaFormatIDC)
		}
		if sps.ChromaFormatIDC == 3 {
			sps.SeparateColourPlaneFlag = r.ReadFlag()
		}
		sps.BitDepthLumaMinus8 = r.ReadExpGolomb()
		sps.BitDepthChromaMinus8 = r.ReadExpGolomb()
		sps.QpprimeYZeroTransformBypassFlag = r.ReadFlag()
		sps.SeqScalingMatrixPresentFlag = r.ReadFlag()
		if sps.SeqScalingMatrixPresentFlag {
			nrScalingLists := 8
			if sps.ChromaFormatIDC == 3 {
				nrScalingLists = 12
			}
			sps.SeqScalingLists = make([]ScalingList, nrScalingLists)
			for i := 0; i < nrScalingLists; i++ {
				if !r.ReadFlag() {
					continue
				}
				size := 16
				if i >= 6 {
					size = 64
				}
				sps.SeqScalingLists[i] = readScalingList(r, size)
			}
		}
	}

	sps.Log2MaxFrameNumMinus4 = r.ReadExpGolomb()
	sps.PicOrderCntType = r.ReadExpGolomb()
	switch sps.PicOrderCntType {
	case 0:
		sps.Log2MaxPicOrderCntLsbMinus4 = r.ReadExpGolomb()
	case 1:
		sps.DeltaPicOrderAlwaysZeroFlag = r.ReadFlag()
		sps.OffsetForNonRefPic = r.ReadSignedGolomb()
		sps.OffsetForTopToBottomField = r.ReadSignedGolomb()
		nrRefFrames := r.ReadExpGolomb()
		if r.AccError() != nil {
			return nil, r.AccError()
		}
		if nrRefFrames > uint(len(rbsp)) {
			return nil, errs.Wrapf(errs.ErrMalformed, "h264parser: num_ref_frames_in_pic_order_cnt_cycle %d", nrRefFrames)
		}
		for i := uint(0); i < nrRefFrames; i++ {
			sps.RefFramesInPicOrderCntCycle = append(sps.RefFramesInPicOrderCntCycle, r.ReadSignedGolomb())
		}
	}

	sps.NumRefFrames = r.ReadExpGolomb()
	sps.GapsInFrameNumValueAllowedFlag = r.ReadFlag()
	sps.PicWidthInMbsMinus1 = r.ReadExpGolomb()
	sps.PicHeightInMapUnitsMinus1 = r.ReadExpGolomb()
	sps.FrameMbsOnlyFlag = r.ReadFlag()
	if !sps.FrameMbsOnlyFlag {
		sps.MbAdaptiveFrameFieldFlag = r.ReadFlag()
	}
	sps.Direct8x8InferenceFlag = r.ReadFlag()

	width := (sps.PicWidthInMbsMinus1 + 1) * 16
	height := (sps.PicHeightInMapUnitsMinus1 + 1) * 16
	if !sps.FrameMbsOnlyFlag {
		height *= 2
	}

	sps.FrameCroppingFlag = r.ReadFlag()
	if sps.FrameCroppingFlag {
		sps.FrameCropLeftOffset = r.ReadExpGolomb()
		sps.FrameCropRightOffset = r.ReadExpGolomb()
		sps.FrameCropTopOffset = r.ReadExpGolomb()
		sps.FrameCropBottomOffset = r.ReadExpGolomb()
	}

	frameMbsOnly := uint(0)
	if sps.FrameMbsOnlyFlag {
		frameMbsOnly = 1
	}
	var cropUnitX, cropUnitY uint
	switch sps.ChromaFormatIDC {
	case 0:
		cropUnitX, cropUnitY = 1, 2-frameMbsOnly
	case 1:
		cropUnitX, cropUnitY = 2, 2*(2-frameMbsOnly)
	case 2:
		cropUnitX, cropUnitY = 2, 2-frameMbsOnly
	default:
		cropUnitX, cropUnitY = 1, 2-frameMbsOnly
	}
	cropX := (sps.FrameCropLeftOffset + sps.FrameCropRightOffset) * cropUnitX
	cropY := (sps.FrameCropTopOffset + sps.FrameCropBottomOffset) * cropUnitY
	if cropX > width || cropY > height {
		return nil, errs.Wrapf(errs.ErrMalformed, "h264parser: frame cropping exceeds picture size")
	}
	sps.Width = width - cropX
	sps.Height = height - cropY

	vuiPresent := r.ReadFlag()
	sps.NrBytesBeforeVUI = r.NrBytesRead()
	if vuiPresent {
		sps.VUI = parseVUI(r, parseBeyondAspectRatio)
	}
	sps.NrBytesRead = r.NrBytesRead()

	if r.AccError() != nil {
		return nil, errs.Wrapf(r.AccError(), "h264parser: parse SPS")
	}
	return sps, nil
}

func parseVUI(r *bits.Reader, parseBeyondAspectRatio bool) *VUIParameters {
	vui := &VUIParameters{}
	if r.ReadFlag() { // aspect_ratio_info_present_flag
		aspectRatioIDC := r.Read(8)
		if aspectRatioIDC == extendedSAR {
			vui.SampleAspectRatioWidth = uint(r.Read(16))
			vui.SampleAspectRatioHeight = uint(r.Read(16))
		} else if aspectRatioIDC >= 1 && aspectRatioIDC <= uint32(len(sarTable)) {
			vui.SampleAspectRatioWidth = sarTable[aspectRatioIDC-1][0]
			vui.SampleAspectRatioHeight = sarTable[aspectRatioIDC-1][1]
		}
	}
	if !parseBeyondAspectRatio {
		return vui
	}

	vui.OverscanInfoPresentFlag = r.ReadFlag()
	if vui.OverscanInfoPresentFlag {
		vui.OverscanAppropriateFlag = r.ReadFlag()
	}

	vui.VideoSignalTypePresentFlag = r.ReadFlag()
	if vui.VideoSignalTypePresentFlag {
		vui.VideoFormat = uint(r.Read(3))
		vui.VideoFullRangeFlag = r.ReadFlag()
		vui.ColourDescriptionFlag = r.ReadFlag()
		if vui.ColourDescriptionFlag {
			vui.ColourPrimaries = uint(r.Read(8))
			vui.TransferCharacteristics = uint(r.Read(8))
			vui.MatrixCoefficients = uint(r.Read(8))
		}
	}

	vui.ChromaLocInfoPresentFlag = r.ReadFlag()
	if vui.ChromaLocInfoPresentFlag {
		vui.ChromaSampleLocTypeTopField = r.ReadExpGolomb()
		vui.ChromaSampleLocTypeBottomField = r.ReadExpGolomb()
	}

	vui.TimingInfoPresentFlag = r.ReadFlag()
	if vui.TimingInfoPresentFlag {
		vui.NumUnitsInTick = uint(r.Read(32))
		vui.TimeScale = uint(r.Read(32))
		vui.FixedFrameRateFlag = r.ReadFlag()
	}

	vui.NalHrdParametersPresentFlag = r.ReadFlag()
	if vui.NalHrdParametersPresentFlag {
		vui.NalHrdParameters = parseHrdParameters(r)
	}
	vui.VclHrdParametersPresentFlag = r.ReadFlag()
	if vui.VclHrdParametersPresentFlag {
		vui.VclHrdParameters = parseHrdParameters(r)
	}
	if vui.NalHrdParametersPresentFlag || vui.VclHrdParametersPresentFlag {
		vui.LowDelayHrdFlag = r.ReadFlag()
	}

	vui.PicStructPresentFlag = r.ReadFlag()

	vui.BitstreamRestrictionFlag = r.ReadFlag()
	if vui.BitstreamRestrictionFlag {
		vui.MotionVectorsOverPicBoundariesFlag = r.ReadFlag()
		vui.MaxBytesPerPicDenom = r.ReadExpGolomb()
		vui.MaxBitsPerMbDenom = r.ReadExpGolomb()
		vui.Log2MaxMvLengthHorizontal = r.ReadExpGolomb()
		vui.Log2MaxMvLengthVertical = r.ReadExpGolomb()
		vui.MaxNumReorderFrames = r.ReadExpGolomb()
		vui.MaxDecFrameBuffering = r.ReadExpGolomb()
	}

	return vui
}

func parseHrdParameters(r *bits.Reader) *HrdParameters {
	hrd := &HrdParameters{}
	hrd.CpbCountMinus1 = r.ReadExpGolomb()
	hrd.BitRateScale = uint(r.Read(4))
	hrd.CpbSizeScale = uint(r.Read(4))
	for i := uint(0); i <= hrd.CpbCountMinus1; i++ {
		if r.AccError() != nil {
			break
		}
		hrd.CpbEntries = append(hrd.CpbEntries, CpbEntry{
			BitRateValueMinus1: r.ReadExpGolomb(),
			CpbSizeValueMinus1: r.ReadExpGolomb(),
			CbrFlag:            r.ReadFlag(),
		})
	}
	hrd.InitialCpbRemovalDelayLengthMinus1 = uint(r.Read(5))
	hrd.CpbRemovalDelayLengthMinus1 = uint(r.Read(5))
	hrd.DpbOutputDelayLengthMinus1 = uint(r.Read(5))
	hrd.TimeOffsetLength = uint(r.Read(5))
	return hrd
}

// readScalingList decodes one scaling list with the delta_scale recurrence.
// When a delta leaves nextScale at zero, the remaining entries repeat
// lastScale without further reads.
func readScalingList(r *bits.Reader, size int) ScalingList {
	list := make(ScalingList, 0, size)
	lastScale := 8
	nextScale := 8
	for i := 0; i < size; i++ {
		if nextScale != 0 {
			delta := r.ReadSignedGolomb()
			nextScale = (lastScale + delta + 256) % 256
		}
		if nextScale == 0 {
			list = append(list, lastScale)
		} else {
			list = append(list, nextScale)
		}
		lastScale = list[len(list)-1]
	}
	return list
}
