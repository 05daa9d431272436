// Package codecdetect inspects MP4 files: which codec the video track uses,
// its dimensions, duration and average frame rate.
package codecdetect

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Eyevinn/mp4ff/mp4"
	"github.com/user/framecache/pkg/ports"
)

// Codec represents a video codec type.
type Codec string

const (
	CodecH264    Codec = "h264"
	CodecHEVC    Codec = "hevc"
	CodecAV1     Codec = "av1"
	CodecUnknown Codec = "unknown"
)

// ErrNoVideoTrack is returned when a file has no video track.
var ErrNoVideoTrack = errors.New("codecdetect: no video track found")

// DetectFromFile detects the video codec used in an MP4 file.
func DetectFromFile(path string) (Codec, error) {
	info, err := New().Probe(path)
	if err != nil {
		return CodecUnknown, err
	}
	return Codec(info.Codec), nil
}

// DetectFromBytes detects the video codec from MP4 data bytes.
func DetectFromBytes(data []byte) (Codec, error) {
	info, err := ProbeReader(bytes.NewReader(data))
	if err != nil {
		return CodecUnknown, err
	}
	return Codec(info.Codec), nil
}

// Prober implements ports.MediaProber for MP4 files.
type Prober struct{}

// New creates a new Prober.
func New() *Prober {
	return &Prober{}
}

// Probe returns information about the first video track of an MP4 file.
func (p *Prober) Probe(path string) (ports.MediaInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	return ProbeReader(f)
}

// ProbeReader returns information about the first video track read from reader.
func ProbeReader(reader io.ReadSeeker) (ports.MediaInfo, error) {
	mp4File, err := mp4.DecodeFile(reader)
	if err != nil {
		return ports.MediaInfo{}, fmt.Errorf("decode mp4: %w", err)
	}

	// Reset reader position for subsequent reads
	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		return ports.MediaInfo{}, fmt.Errorf("seek: %w", err)
	}

	if mp4File.IsFragmented() {
		return probeFragmented(mp4File)
	}
	return probeProgressive(mp4File)
}

func probeProgressive(mp4File *mp4.File) (ports.MediaInfo, error) {
	if mp4File.Moov == nil {
		return ports.MediaInfo{}, fmt.Errorf("no moov box found")
	}
	trak := findVideoTrack(mp4File.Moov.Traks)
	if trak == nil {
		return ports.MediaInfo{}, ErrNoVideoTrack
	}

	info := describeTrack(trak)
	stbl := trak.Mdia.Minf.Stbl
	if stbl.Stsz != nil {
		info.SampleCount = int(stbl.Stsz.SampleNumber)
	}
	if mdhd := trak.Mdia.Mdhd; mdhd != nil && mdhd.Timescale > 0 {
		info.DurationMs = int64(mdhd.Duration * 1000 / uint64(mdhd.Timescale))
	}
	info.FrameRate = frameRate(info.SampleCount, info.DurationMs)
	return info, nil
}

func probeFragmented(mp4File *mp4.File) (ports.MediaInfo, error) {
	if mp4File.Init == nil || mp4File.Init.Moov == nil {
		return ports.MediaInfo{}, fmt.Errorf("no init segment found")
	}
	moov := mp4File.Init.Moov
	trak := findVideoTrack(moov.Traks)
	if trak == nil {
		return ports.MediaInfo{}, ErrNoVideoTrack
	}

	info := describeTrack(trak)
	info.Fragmented = true

	trackID := trak.Tkhd.TrackID
	var trex *mp4.TrexBox
	if moov.Mvex != nil {
		for _, t := range moov.Mvex.Trexs {
			if t.TrackID == trackID {
				trex = t
				break
			}
		}
	}

	var totalDur uint64
	for _, seg := range mp4File.Segments {
		for _, frag := range seg.Fragments {
			if frag.Moof == nil {
				continue
			}
			samples, err := frag.GetFullSamples(trex)
			if err != nil {
				return ports.MediaInfo{}, fmt.Errorf("get samples: %w", err)
			}
			for _, s := range samples {
				totalDur += uint64(s.Dur)
			}
			info.SampleCount += len(samples)
		}
	}
	if info.Timescale > 0 {
		info.DurationMs = int64(totalDur * 1000 / uint64(info.Timescale))
	}
	info.FrameRate = frameRate(info.SampleCount, info.DurationMs)
	return info, nil
}

func findVideoTrack(traks []*mp4.TrakBox) *mp4.TrakBox {
	for _, trak := range traks {
		if trak.Mdia == nil || trak.Mdia.Hdlr == nil || trak.Mdia.Hdlr.HandlerType != "vide" {
			continue
		}
		if trak.Mdia.Minf == nil || trak.Mdia.Minf.Stbl == nil || trak.Mdia.Minf.Stbl.Stsd == nil {
			continue
		}
		return trak
	}
	return nil
}

func describeTrack(trak *mp4.TrakBox) ports.MediaInfo {
	info := ports.MediaInfo{Codec: string(CodecUnknown), Timescale: 1000}
	if trak.Mdia.Mdhd != nil && trak.Mdia.Mdhd.Timescale > 0 {
		info.Timescale = trak.Mdia.Mdhd.Timescale
	}

	for _, child := range trak.Mdia.Minf.Stbl.Stsd.Children {
		codec := codecFromSampleEntry(child.Type())
		if codec == CodecUnknown {
			continue
		}
		info.Codec = string(codec)
		if vse, ok := child.(*mp4.VisualSampleEntryBox); ok {
			info.Width = int(vse.Width)
			info.Height = int(vse.Height)
		}
		break
	}
	return info
}

func codecFromSampleEntry(boxType string) Codec {
	switch boxType {
	case "avc1", "avc3":
		return CodecH264
	case "hvc1", "hev1":
		return CodecHEVC
	case "av01":
		return CodecAV1
	}
	return CodecUnknown
}

func frameRate(samples int, durationMs int64) float64 {
	if samples == 0 || durationMs <= 0 {
		return 0
	}
	return float64(samples) * 1000 / float64(durationMs)
}

var _ ports.MediaProber = (*Prober)(nil)
