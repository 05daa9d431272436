package h264decoder

import (
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
)

// sampleRef locates one video sample. Progressive files are read lazily
// through offset and size; fragmented files keep the sample data.
type sampleRef struct {
	ptsMs    int64
	keyframe bool
	offset   uint64
	size     uint32
	data     []byte
}

// trackIndex is the parsed sample table of one H.264 track, in decode order.
type trackIndex struct {
	path       string
	spsPPS     []byte
	samples    []sampleRef
	durationMs int64
}

// gop is the run of samples needed to decode one frame.
type gop struct {
	keyframe int         // Decode index of the first sample
	samples  []sampleRef // From the keyframe through the target, decode order
	ordinal  int         // Output position of the target frame
}

func loadIndex(path string) (*trackIndex, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	mp4File, err := mp4.DecodeFile(f)
	if err != nil {
		return nil, fmt.Errorf("decode mp4: %w", err)
	}

	var idx *trackIndex
	if mp4File.IsFragmented() {
		idx, err = indexFragmented(mp4File)
	} else {
		idx, err = indexProgressive(mp4File)
	}
	if err != nil {
		return nil, err
	}
	idx.path = path
	return idx, nil
}

func indexProgressive(mp4File *mp4.File) (*trackIndex, error) {
	if mp4File.Moov == nil {
		return nil, fmt.Errorf("no moov box found")
	}

	trak, avcC := findH264Track(mp4File.Moov.Traks)
	if trak == nil {
		return nil, ErrNoVideoTrack
	}

	var timescale uint32 = 1000
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		timescale = trak.Mdia.Mdhd.Timescale
	}

	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz == nil {
		return nil, fmt.Errorf("no stsz box found")
	}
	sampleCount := stbl.Stsz.SampleNumber

	syncSamples := make(map[uint32]bool)
	if stbl.Stss != nil {
		for _, sampleNr := range stbl.Stss.SampleNumber {
			syncSamples[sampleNr] = true
		}
	}

	idx := &trackIndex{
		spsPPS:  parameterSets(avcC),
		samples: make([]sampleRef, 0, sampleCount),
	}
	for sampleNr := uint32(1); sampleNr <= sampleCount; sampleNr++ {
		offset, size, err := sampleLocation(stbl, sampleNr)
		if err != nil {
			return nil, fmt.Errorf("sample %d: %w", sampleNr, err)
		}

		var decodeTime uint64
		var dur uint32
		if stbl.Stts != nil {
			decodeTime, dur = stbl.Stts.GetDecodeTime(sampleNr)
		}
		pts := int64(decodeTime)
		if stbl.Ctts != nil {
			pts += int64(stbl.Ctts.GetCompositionTimeOffset(sampleNr))
		}

		ref := sampleRef{
			ptsMs:    pts * 1000 / int64(timescale),
			keyframe: syncSamples[sampleNr] || len(syncSamples) == 0,
			offset:   offset,
			size:     size,
		}
		idx.samples = append(idx.samples, ref)

		if end := int64(decodeTime+uint64(dur)) * 1000 / int64(timescale); end > idx.durationMs {
			idx.durationMs = end
		}
	}

	if len(idx.samples) == 0 {
		return nil, ErrNoVideoTrack
	}
	return idx, nil
}

func indexFragmented(mp4File *mp4.File) (*trackIndex, error) {
	if mp4File.Init == nil || mp4File.Init.Moov == nil {
		return nil, fmt.Errorf("no init segment found")
	}
	moov := mp4File.Init.Moov

	trak, avcC := findH264Track(moov.Traks)
	if trak == nil {
		return nil, ErrNoVideoTrack
	}
	trackID := trak.Tkhd.TrackID

	var timescale uint32 = 1000
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		timescale = trak.Mdia.Mdhd.Timescale
	}

	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	idx := &trackIndex{spsPPS: parameterSets(avcC)}
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			for _, traf := range frag.Moof.Trafs {
				if traf.Tfhd.TrackID != trackID {
					continue
				}

				var baseDecodeTime uint64
				if traf.Tfdt != nil {
					baseDecodeTime = traf.Tfdt.BaseMediaDecodeTime()
				}

				samples, err := frag.GetFullSamples(trex)
				if err != nil {
					return nil, fmt.Errorf("get samples: %w", err)
				}

				currentTime := baseDecodeTime
				for _, sample := range samples {
					pts := int64(currentTime) + int64(sample.CompositionTimeOffset)
					idx.samples = append(idx.samples, sampleRef{
						ptsMs:    pts * 1000 / int64(timescale),
						keyframe: sample.Flags == mp4.SyncSampleFlags,
						data:     sample.Data,
					})
					currentTime += uint64(sample.Dur)
				}

				if end := int64(currentTime) * 1000 / int64(timescale); end > idx.durationMs {
					idx.durationMs = end
				}
			}
		}
	}

	if len(idx.samples) == 0 {
		return nil, ErrNoVideoTrack
	}
	// Fragmented writers do not always flag the first sample.
	idx.samples[0].keyframe = true
	return idx, nil
}

func findH264Track(traks []*mp4.TrakBox) (*mp4.TrakBox, *mp4.AvcCBox) {
	for _, trak := range traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
			continue
		}
		for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
			if avc1, ok := child.(*mp4.VisualSampleEntryBox); ok && avc1.AvcC != nil {
				return trak, avc1.AvcC
			}
		}
	}
	return nil, nil
}

// parameterSets returns the SPS and PPS NAL units in Annex B format.
func parameterSets(avcC *mp4.AvcCBox) []byte {
	var spsPPS []byte
	for _, sps := range avcC.SPSnalus {
		spsPPS = append(spsPPS, 0, 0, 0, 1)
		spsPPS = append(spsPPS, sps...)
	}
	for _, pps := range avcC.PPSnalus {
		spsPPS = append(spsPPS, 0, 0, 0, 1)
		spsPPS = append(spsPPS, pps...)
	}
	return spsPPS
}

// gopFor selects the frame displayed at timestampMs: the sample with the
// latest presentation time not after it. The run starts at the last
// keyframe preceding that sample in decode order.
func (idx *trackIndex) gopFor(timestampMs int64) (gop, error) {
	if timestampMs < 0 || timestampMs >= idx.durationMs {
		return gop{}, ErrTimestampOutOfRange
	}

	target := -1
	for i, s := range idx.samples {
		if s.ptsMs > timestampMs {
			continue
		}
		if target < 0 || s.ptsMs > idx.samples[target].ptsMs {
			target = i
		}
	}
	if target < 0 {
		// Composition offsets can push the first frame past zero.
		target = 0
		for i, s := range idx.samples {
			if s.ptsMs < idx.samples[target].ptsMs {
				target = i
			}
		}
	}

	start := 0
	for i := target; i >= 0; i-- {
		if idx.samples[i].keyframe {
			start = i
			break
		}
	}

	run := idx.samples[start : target+1]
	ordinal := 0
	for _, s := range run {
		if s.ptsMs < idx.samples[target].ptsMs {
			ordinal++
		}
	}
	return gop{keyframe: start, samples: run, ordinal: ordinal}, nil
}

// annexB assembles the Annex B stream of g, with parameter sets in front
// of every keyframe.
func (idx *trackIndex) annexB(g gop) ([]byte, error) {
	var f *os.File
	var out []byte

	for _, s := range g.samples {
		data := s.data
		if data == nil {
			if f == nil {
				var err error
				if f, err = os.Open(idx.path); err != nil {
					return nil, fmt.Errorf("open file: %w", err)
				}
				defer f.Close()
			}
			var err error
			if data, err = readSample(f, s.offset, s.size); err != nil {
				return nil, err
			}
		}

		if s.keyframe {
			out = append(out, idx.spsPPS...)
		}
		out = append(out, avccToAnnexB(data)...)
	}
	return out, nil
}

// sampleLocation returns the byte offset and size of a progressive sample.
func sampleLocation(stbl *mp4.StblBox, sampleNr uint32) (uint64, uint32, error) {
	if stbl.Stsc == nil || stbl.Stsz == nil {
		return 0, 0, fmt.Errorf("missing stsc or stsz box")
	}

	chunkNr, firstSampleInChunk, err := stbl.Stsc.ChunkNrFromSampleNr(int(sampleNr))
	if err != nil {
		return 0, 0, fmt.Errorf("get chunk nr: %w", err)
	}

	var chunkOffset uint64
	if stbl.Stco != nil {
		chunkOffset, err = stbl.Stco.GetOffset(chunkNr)
		if err != nil {
			return 0, 0, fmt.Errorf("get chunk offset: %w", err)
		}
	} else if stbl.Co64 != nil {
		if chunkNr < 1 || chunkNr > len(stbl.Co64.ChunkOffset) {
			return 0, 0, fmt.Errorf("chunk nr out of range")
		}
		chunkOffset = stbl.Co64.ChunkOffset[chunkNr-1]
	} else {
		return 0, 0, fmt.Errorf("no stco or co64 box")
	}

	offset := chunkOffset
	for s := uint32(firstSampleInChunk); s < sampleNr; s++ {
		offset += uint64(stbl.Stsz.GetSampleSize(int(s)))
	}
	return offset, stbl.Stsz.GetSampleSize(int(sampleNr)), nil
}

func readSample(r io.ReadSeeker, offset uint64, size uint32) ([]byte, error) {
	if _, err := r.Seek(int64(offset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("seek to sample: %w", err)
	}
	data := make([]byte, size)
	if _, err := io.ReadFull(r, data); err != nil {
		return nil, fmt.Errorf("read sample: %w", err)
	}
	return data, nil
}

// avccToAnnexB converts AVCC format (length-prefixed NALUs) to Annex B format (start code prefixed)
func avccToAnnexB(data []byte) []byte {
	var result []byte
	offset := 0

	for offset+4 <= len(data) {
		naluLen := int(data[offset])<<24 | int(data[offset+1])<<16 |
			int(data[offset+2])<<8 | int(data[offset+3])
		offset += 4

		if offset+naluLen > len(data) {
			break
		}

		result = append(result, 0, 0, 0, 1)
		result = append(result, data[offset:offset+naluLen]...)
		offset += naluLen
	}

	return result
}
