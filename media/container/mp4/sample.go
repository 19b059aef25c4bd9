package mp4

import (
	"github.com/polw1/mp4ff/common/errs"
	"github.com/polw1/mp4ff/utils/bits/pio"
)

// Sample is one resolved sample of a track. Bytes borrows from the file
// buffer and stays valid only as long as that buffer does.
type Sample struct {
	// Offset is the absolute file offset of the sample data.
	Offset uint64
	// Size is the sample length in bytes.
	Size uint32
	// Bytes is the sample payload inside the mdat box.
	Bytes []byte
	// Start is the decode time in track timescale units.
	Start uint64
	// Dur is the duration in track timescale units.
	Dur uint32
}

type stscEntry struct {
	firstChunk           uint32
	samplesPerChunk      uint32
	sampleDescriptionIdx uint32
}

// sampleTable is the combined content of the stsz, stco|co64, stsc and
// stts boxes of one track.
type sampleTable struct {
	sampleCount  int
	uniformSize  uint32
	sizes        []uint32 // nil when uniformSize applies
	chunkOffsets []uint64
	stscEntries  []stscEntry
	durations    []uint32
}

func (t *sampleTable) sizeAt(i int) uint32 {
	if t.sizes == nil {
		return t.uniformSize
	}
	return t.sizes[i]
}

// readSampleTable parses the sample tables of an stbl payload. maxSamples
// bounds the declared sample count so that attacker-controlled counts
// cannot drive allocations; callers pass the file size.
func readSampleTable(stbl []byte, maxSamples uint64) (*sampleTable, error) {
	stsz := FindBox(stbl, "stsz")
	if stsz == nil {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: stsz")
	}
	stsc := FindBox(stbl, "stsc")
	if stsc == nil {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: stsc")
	}
	stts := FindBox(stbl, "stts")
	if stts == nil {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: stts")
	}
	// stco wins over co64 when both are present
	stco := FindBox(stbl, "stco")
	co64 := false
	if stco == nil {
		stco = FindBox(stbl, "co64")
		co64 = true
	}
	if stco == nil {
		return nil, errs.Wrapf(errs.ErrNotFound, "mp4: stco/co64")
	}

	t := &sampleTable{}

	// stsz: uniform size or one 32-bit size per sample
	if len(stsz) < 12 {
		return nil, errs.Wrapf(errs.ErrTruncated, "mp4: stsz")
	}
	p := 4 // version + flags
	t.uniformSize = pio.U32BE(stsz[p:])
	sampleCount := uint64(pio.U32BE(stsz[p+4:]))
	p += 8
	if sampleCount > maxSamples {
		return nil, errs.Wrapf(errs.ErrMalformed, "mp4: stsz sample count %d", sampleCount)
	}
	t.sampleCount = int(sampleCount)
	if t.uniformSize == 0 {
		if sampleCount*4 > uint64(len(stsz)-p) {
			return nil, errs.Wrapf(errs.ErrMalformed, "mp4: stsz sample count %d", sampleCount)
		}
		t.sizes = make([]uint32, 0, t.sampleCount)
		for i := 0; i < t.sampleCount; i++ {
			t.sizes = append(t.sizes, pio.U32BE(stsz[p:]))
			p += 4
		}
	}

	// stco/co64: absolute chunk offsets
	if len(stco) < 8 {
		return nil, errs.Wrapf(errs.ErrTruncated, "mp4: chunk offsets")
	}
	p = 4
	entryCount := int(pio.U32BE(stco[p:]))
	p += 4
	entrySize := 4
	if co64 {
		entrySize = 8
	}
	if uint64(entryCount)*uint64(entrySize) > uint64(len(stco)-p) {
		return nil, errs.Wrapf(errs.ErrMalformed, "mp4: chunk offset count %d", entryCount)
	}
	t.chunkOffsets = make([]uint64, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		if co64 {
			t.chunkOffsets = append(t.chunkOffsets, pio.U64BE(stco[p:]))
		} else {
			t.chunkOffsets = append(t.chunkOffsets, uint64(pio.U32BE(stco[p:])))
		}
		p += entrySize
	}

	// stsc: run-length chunk-to-sample mapping
	if len(stsc) < 8 {
		return nil, errs.Wrapf(errs.ErrTruncated, "mp4: stsc")
	}
	p = 4
	entryCount = int(pio.U32BE(stsc[p:]))
	p += 4
	if uint64(entryCount)*12 > uint64(len(stsc)-p) {
		return nil, errs.Wrapf(errs.ErrMalformed, "mp4: stsc entry count %d", entryCount)
	}
	t.stscEntries = make([]stscEntry, 0, entryCount)
	for i := 0; i < entryCount; i++ {
		t.stscEntries = append(t.stscEntries, stscEntry{
			firstChunk:           pio.U32BE(stsc[p:]),
			samplesPerChunk:      pio.U32BE(stsc[p+4:]),
			sampleDescriptionIdx: pio.U32BE(stsc[p+8:]),
		})
		p += 12
	}

	// stts: expand (count, delta) pairs to one duration per sample
	sttsEntries, err := parseSttsEntries(stts)
	if err != nil {
		return nil, err
	}
	t.durations = make([]uint32, 0, t.sampleCount)
	for _, e := range sttsEntries {
		count, delta := e[0], e[1]
		if uint64(len(t.durations))+uint64(count) > sampleCount {
			return nil, errs.Wrapf(errs.ErrMalformed, "mp4: stts has more samples than stsz")
		}
		for i := uint32(0); i < count; i++ {
			t.durations = append(t.durations, delta)
		}
	}
	if len(t.durations) != t.sampleCount {
		return nil, errs.Wrapf(errs.ErrMalformed, "mp4: stts covers %d of %d samples", len(t.durations), t.sampleCount)
	}

	return t, nil
}

// collectSamples walks the chunks in order and resolves every sample to
// its absolute offset, bytes, decode time and duration. Samples whose
// bytes fall outside the mdat payload are skipped, which keeps interleaved
// files working. Samples are yielded in ascending chunk order and within a
// chunk in ascending order, which is decode order for well-formed files.
func collectSamples(data []byte, mdatStart, mdatEnd int, t *sampleTable) []Sample {
	samples := make([]Sample, 0, t.sampleCount)
	sampleIndex := 0
	decodeTime := uint64(0)
	for i, e := range t.stscEntries {
		nextFirstChunk := uint32(len(t.chunkOffsets)) + 1
		if i+1 < len(t.stscEntries) {
			nextFirstChunk = t.stscEntries[i+1].firstChunk
		}
		for chunk := e.firstChunk; chunk < nextFirstChunk; chunk++ {
			if chunk < 1 || int(chunk) > len(t.chunkOffsets) {
				return samples
			}
			chunkOffset := t.chunkOffsets[chunk-1]
			offsetInChunk := uint64(0)
			for s := uint32(0); s < e.samplesPerChunk; s++ {
				if sampleIndex >= t.sampleCount {
					return samples
				}
				size := t.sizeAt(sampleIndex)
				absolute := chunkOffset + offsetInChunk
				if absolute >= uint64(mdatStart) && absolute+uint64(size) <= uint64(mdatEnd) {
					samples = append(samples, Sample{
						Offset: absolute,
						Size:   size,
						Bytes:  data[absolute : absolute+uint64(size)],
						Start:  decodeTime,
						Dur:    t.durations[sampleIndex],
					})
				}
				offsetInChunk += uint64(size)
				decodeTime += uint64(t.durations[sampleIndex])
				sampleIndex++
			}
		}
	}
	return samples
}
