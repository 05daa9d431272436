// Package smartdecoder provides a frame decoder that detects the codec of
// each source and routes it to the most accurate available backend.
package smartdecoder

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/user/framecache/pkg/adapters/codecdetect"
	"github.com/user/framecache/pkg/adapters/ffmpegdecoder"
	"github.com/user/framecache/pkg/adapters/h264decoder"
	"github.com/user/framecache/pkg/ports"
)

// Codec represents the video codec type (re-exported from codecdetect).
type Codec = codecdetect.Codec

const (
	// CodecH264 represents H.264/AVC codec.
	CodecH264 = codecdetect.CodecH264
	// CodecHEVC represents H.265/HEVC codec.
	CodecHEVC = codecdetect.CodecHEVC
	// CodecAV1 represents AV1 codec.
	CodecAV1 = codecdetect.CodecAV1
	// CodecUnknown represents an unknown codec.
	CodecUnknown = codecdetect.CodecUnknown
)

// Backend represents the decoding backend used.
type Backend string

const (
	// BackendMP4 decodes H.264 MP4 samples exactly (h264decoder).
	BackendMP4 Backend = "mp4"
	// BackendFFmpeg seeks with the ffmpeg CLI (ffmpegdecoder).
	BackendFFmpeg Backend = "ffmpeg"
)

// Mode selects how backends are chosen.
const (
	ModeAuto   = "auto"
	ModeMP4    = "mp4"
	ModeFFmpeg = "ffmpeg"
)

// Info contains information about the decoder selected for a source.
type Info struct {
	Codec   Codec
	Backend Backend
	Media   ports.MediaInfo // Zero when the source could not be probed
}

// Options configures the smart decoder behavior.
type Options struct {
	Mode         string // auto, mp4 or ffmpeg (default: auto)
	FFmpegPath   string // Optional custom path to the ffmpeg binary
	PreviewWidth int    // Downscale wider frames to this width; 0 keeps full resolution
}

var (
	// ErrUnsupportedCodec is returned when the codec is not supported.
	ErrUnsupportedCodec = errors.New("smartdecoder: unsupported codec")
	// ErrNoDecoderAvailable is returned when no decoder is available for the codec.
	ErrNoDecoderAvailable = errors.New("smartdecoder: no decoder available")
	// ErrUnknownMode is returned for an unrecognised Options.Mode.
	ErrUnknownMode = errors.New("smartdecoder: unknown decoder mode")
)

// Backends holds the decoders a Decoder can route to. Nil entries are unavailable.
type Backends struct {
	MP4    ports.FrameDecoder
	FFmpeg ports.FrameDecoder
}

// Decoder implements ports.FrameDecoder by dispatching to a backend per source.
// It is safe for concurrent use.
type Decoder struct {
	opts     Options
	backends Backends
	prober   ports.MediaProber
	renderer ports.Renderer
	logger   ports.Logger

	mu    sync.Mutex
	infos map[string]Info
}

// New creates a decoder with the real backends that are available on this
// machine. It fails only when none is.
func New(opts Options, fs ports.FileSystem, renderer ports.Renderer, logger ports.Logger) (*Decoder, error) {
	var backends Backends

	if mp4, err := h264decoder.New(h264decoder.Options{FFmpegPath: opts.FFmpegPath}, fs, logger); err == nil {
		backends.MP4 = mp4
	}
	if ff, err := ffmpegdecoder.New(ffmpegdecoder.Options{FFmpegPath: opts.FFmpegPath}, fs, logger); err == nil {
		backends.FFmpeg = ff
	}
	if backends.MP4 == nil && backends.FFmpeg == nil {
		return nil, ErrNoDecoderAvailable
	}

	return NewWithBackends(opts, backends, codecdetect.New(), renderer, logger)
}

// NewWithBackends creates a decoder over explicit backends.
func NewWithBackends(opts Options, backends Backends, prober ports.MediaProber, renderer ports.Renderer, logger ports.Logger) (*Decoder, error) {
	switch opts.Mode {
	case "":
		opts.Mode = ModeAuto
	case ModeAuto, ModeMP4, ModeFFmpeg:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMode, opts.Mode)
	}

	return &Decoder{
		opts:     opts,
		backends: backends,
		prober:   prober,
		renderer: renderer,
		logger:   logger.WithComponent("decoder"),
		infos:    make(map[string]Info),
	}, nil
}

// DecodeFrame decodes the frame of source at timestampMs with the backend
// selected for source, downscaling it when a preview width is set.
func (d *Decoder) DecodeFrame(ctx context.Context, source string, timestampMs int64) (image.Image, error) {
	info, err := d.Info(source)
	if err != nil {
		return nil, err
	}

	backend := d.backends.FFmpeg
	if info.Backend == BackendMP4 {
		backend = d.backends.MP4
	}

	img, err := backend.DecodeFrame(ctx, source, timestampMs)
	if err != nil {
		return nil, err
	}
	return d.preview(img), nil
}

// Info returns the codec and backend chosen for source. The choice is made
// on first use and remembered.
func (d *Decoder) Info(source string) (Info, error) {
	d.mu.Lock()
	info, ok := d.infos[source]
	d.mu.Unlock()
	if ok {
		return info, nil
	}

	info, err := d.selectBackend(source)
	if err != nil {
		return Info{}, err
	}
	d.logger.Info("Using %s decoder for %s", string(info.Backend), source)

	d.mu.Lock()
	d.infos[source] = info
	d.mu.Unlock()
	return info, nil
}

// Forget drops the remembered selection for source.
func (d *Decoder) Forget(source string) {
	d.mu.Lock()
	delete(d.infos, source)
	d.mu.Unlock()
}

// selectBackend chooses a backend for source.
//
// The selection flow:
//   - ffmpeg mode: always the ffmpeg backend
//   - mp4 mode: the MP4 backend, H.264 only
//   - auto: the MP4 backend for H.264 MP4 files, ffmpeg for everything else
func (d *Decoder) selectBackend(source string) (Info, error) {
	if d.opts.Mode == ModeFFmpeg {
		if d.backends.FFmpeg == nil {
			return Info{}, ErrNoDecoderAvailable
		}
		return Info{Codec: CodecUnknown, Backend: BackendFFmpeg}, nil
	}

	media, err := d.prober.Probe(source)
	if err != nil {
		if d.opts.Mode == ModeAuto && d.backends.FFmpeg != nil {
			d.logger.Debug("Detected %s codec in %s", string(CodecUnknown), source)
			return Info{Codec: CodecUnknown, Backend: BackendFFmpeg}, nil
		}
		return Info{}, err
	}

	codec := Codec(media.Codec)
	d.logger.Debug("Detected %s codec in %s", string(codec), source)
	info := Info{Codec: codec, Media: media}

	if codec == CodecH264 && d.backends.MP4 != nil {
		info.Backend = BackendMP4
		return info, nil
	}
	if d.opts.Mode == ModeMP4 {
		if codec != CodecH264 {
			return Info{}, fmt.Errorf("%w: %s", ErrUnsupportedCodec, codec)
		}
		return Info{}, ErrNoDecoderAvailable
	}
	if d.backends.FFmpeg == nil {
		return Info{}, ErrNoDecoderAvailable
	}
	info.Backend = BackendFFmpeg
	return info, nil
}

func (d *Decoder) preview(img image.Image) image.Image {
	width := d.opts.PreviewWidth
	b := img.Bounds()
	if width <= 0 || b.Dx() <= width {
		return img
	}
	height := max(1, b.Dy()*width/b.Dx())
	return d.renderer.ResizeImage(img, width, height)
}

// DetectCodec detects the codec from a file without creating a decoder.
func DetectCodec(path string) (Codec, error) {
	return codecdetect.DetectFromFile(path)
}

// IsMP4BackendAvailable checks if the sample-accurate H.264 backend can run.
func IsMP4BackendAvailable(ffmpegPath string) bool {
	return h264decoder.IsAvailable(ffmpegPath)
}

// Ensure Decoder implements ports.FrameDecoder
var _ ports.FrameDecoder = (*Decoder)(nil)
