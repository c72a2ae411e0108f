package decoder

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ffmpegChunkFrames is the fixed number of interleaved frames read from the
// ffmpeg pipe per packet.
const ffmpegChunkFrames = 1024

// probedStream is the subset of `ffprobe -show_streams -print_format json`
// this package needs.
type probedStream struct {
	CodecType  string `json:"codec_type"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
}
type probeResult struct {
	Streams []probedStream `json:"streams"`
}

// probeAudioStream shells out to ffprobe (via ffmpeg.Probe, which always
// resolves the ffprobe binary from $PATH) to discover the first audio
// stream's native sample rate and channel count, which the Decoder needs
// before it can build its channel-mixing/resampling chain.
func probeAudioStream(path string) (rate, channels int, err error) {
	raw, err := ffmpeg.Probe(path)
	if err != nil {
		return 0, 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	var res probeResult
	if err := json.Unmarshal([]byte(raw), &res); err != nil {
		return 0, 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	for _, s := range res.Streams {
		if s.CodecType != "audio" {
			continue
		}
		rate, err = strconv.Atoi(s.SampleRate)
		if err != nil {
			return 0, 0, fmt.Errorf("parse sample rate %q: %w", s.SampleRate, err)
		}
		return rate, s.Channels, nil
	}
	return 0, 0, newErr(NoTracks, "no audio stream reported by ffprobe")
}

// ffmpegDecodedBuffer is the pass-through DecodedAudioBuffer: ffmpeg already
// decoded the packet's bytes to interleaved float32 before this package ever
// saw them, so there is nothing left to do but report their shape.
type ffmpegDecodedBuffer struct {
	rate, channels int
	data           []float32
}

func (b *ffmpegDecodedBuffer) Rate() int     { return b.rate }
func (b *ffmpegDecodedBuffer) Channels() int { return b.channels }
func (b *ffmpegDecodedBuffer) Len() int      { return len(b.data) }
func (b *ffmpegDecodedBuffer) CopyInterleaved(dst []float32) int {
	return copy(dst, b.data)
}

// passthroughCodec satisfies the AudioCodec boundary for a demuxer/codec
// pair that has already folded decoding into packet production. Reset is a
// no-op: there is no persistent codec state to discard on seek, since each
// seek tears down and respawns the ffmpeg process (see ffmpegFormatReader.Seek).
type passthroughCodec struct{ rate, channels int }

func (c *passthroughCodec) Decode(p Packet) (DecodedAudioBuffer, error) {
	return &ffmpegDecodedBuffer{rate: c.rate, channels: c.channels, data: p.Data}, nil
}
func (c *passthroughCodec) Reset() {}

// ffmpegFormatReader spawns `ffmpeg -i <path> -f f32le -c:a pcm_f32le
// pipe:1` and reads fixed-size chunks of raw interleaved float32 off its
// stdout pipe. The source's native rate and channel count are passed
// through untouched; Decoder performs its own channel mixing.
type ffmpegFormatReader struct {
	path       string
	ffmpegPath string
	trackID    int
	rate       int
	channels   int
	cleanupFn  func()

	cmd        *exec.Cmd
	pipeReader *io.PipeReader
	framesRead int64 // cumulative frames emitted so far; doubles as the ts
}

// Probe returns a Prober bound to a concrete file on disk and an optional
// ffmpeg binary override (empty uses $PATH). The returned Prober ignores the
// Source argument's byte content in favor of path -- the common case for an
// embedder that already has a filesystem path -- falling back to spooling an
// arbitrary Source through a temp file when it does not expose one.
func Probe(path, ffmpegPath string) Prober {
	return func(src Source) (FormatReader, AudioCodec, error) {
		resolvedPath, cleanup, err := resolvePath(path, src)
		if err != nil {
			return nil, nil, wrapErr(FormatNotFound, err)
		}

		rate, channels, err := probeAudioStream(resolvedPath)
		if err != nil {
			cleanup()
			var de *Error
			if !errors.As(err, &de) {
				de = wrapErr(FormatNotFound, err)
			}
			return nil, nil, de
		}
		if channels > 2 {
			cleanup()
			return nil, nil, newErr(UnsupportedFormat, "audio sources with more than 2 channels are not supported")
		}

		r := &ffmpegFormatReader{path: resolvedPath, ffmpegPath: ffmpegPath, trackID: 0, rate: rate, channels: channels, cleanupFn: cleanup}
		if err := r.spawn(0); err != nil {
			cleanup()
			return nil, nil, wrapErr(UnsupportedCodec, err)
		}
		return r, &passthroughCodec{rate: rate, channels: channels}, nil
	}
}

// resolvePath prefers a Path()-exposing Source (e.g. *FileSource) and falls
// back to spooling an arbitrary io.ReadSeeker into a temp file, since the
// ffmpeg/ffprobe exec pipeline needs a real filesystem path.
func resolvePath(hintPath string, src Source) (string, func(), error) {
	noop := func() {}
	if hintPath != "" {
		return hintPath, noop, nil
	}
	type pather interface{ Path() string }
	if p, ok := src.(pather); ok {
		return p.Path(), noop, nil
	}

	tmp, err := os.CreateTemp("", "goplayback-*."+src.Ext())
	if err != nil {
		return "", noop, err
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", noop, err
	}
	if _, err := io.Copy(tmp, src); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", noop, err
	}
	tmp.Close()
	return tmp.Name(), func() { os.Remove(tmp.Name()) }, nil
}

func (r *ffmpegFormatReader) DefaultAudioTrack() (Track, bool) {
	return Track{ID: r.trackID, SampleRate: r.rate, Channels: r.channels}, true
}

// spawn starts (or restarts, for a seek) the ffmpeg process with stdout
// wired to an io.Pipe: build the node with Input/Output/KwArgs, attach the
// pipe writer via WithOutput, Compile once, run the *exec.Cmd in a
// goroutine.
func (r *ffmpegFormatReader) spawn(startAt time.Duration) error {
	inputArgs := ffmpeg.KwArgs{}
	if startAt > 0 {
		inputArgs["ss"] = fmt.Sprintf("%.3f", startAt.Seconds())
	}
	outputArgs := ffmpeg.KwArgs{
		"f":             "f32le",
		"c:a":           "pcm_f32le",
		"flush_packets": "1",
	}

	pipeReader, pipeWriter := io.Pipe()

	node := ffmpeg.Input(r.path, inputArgs)
	cmd := node.Output("pipe:", outputArgs).WithOutput(pipeWriter).ErrorToStdOut()
	if r.ffmpegPath != "" {
		cmd.SetFfmpegPath(r.ffmpegPath)
	}

	compiled := cmd.Compile()
	r.cmd = compiled
	r.pipeReader = pipeReader

	go func() {
		err := compiled.Run()
		if err != nil && !strings.Contains(err.Error(), "signal: killed") {
			log.Printf("decoder: ffmpeg command finished with error: %v", err)
		}
		pipeWriter.Close()
	}()

	r.framesRead = int64(float64(startAt.Seconds()) * float64(r.rate))
	return nil
}

func (r *ffmpegFormatReader) NextPacket() (Packet, error) {
	frameBytes := r.channels * 4
	buf := make([]byte, ffmpegChunkFrames*frameBytes)
	n, err := io.ReadFull(r.pipeReader, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		if err == io.EOF {
			return Packet{}, io.EOF
		}
		return Packet{}, wrapErr(DecodeError, err)
	}
	// A short final read (io.ErrUnexpectedEOF) still carries valid trailing
	// samples; truncate buf to whole frames so channels stay paired.
	wasPartial := err == io.ErrUnexpectedEOF
	buf = buf[:n-n%frameBytes]

	data := make([]float32, len(buf)/4)
	if readErr := binary.Read(bytes.NewReader(buf), binary.LittleEndian, &data); readErr != nil {
		return Packet{}, wrapErr(DecodeError, readErr)
	}

	ts := r.framesRead
	r.framesRead += int64(len(data) / r.channels)

	p := Packet{TrackID: r.trackID, TS: ts, Data: data}
	if wasPartial {
		log.Printf("decoder: ffmpeg pipe closed mid-chunk, returning final partial packet")
	}
	return p, nil
}

// Seek kills the running ffmpeg process and respawns it with an `-ss`
// input-seek offset, since a raw f32le pipe from an exec'd ffmpeg has no
// native seek capability of its own.
func (r *ffmpegFormatReader) Seek(target time.Duration) (SeekedTo, error) {
	if r.cmd != nil && r.cmd.Process != nil {
		r.cmd.Process.Kill()
		r.cmd.Wait()
	}
	if err := r.spawn(target); err != nil {
		return SeekedTo{}, err
	}
	return SeekedTo{RequiredTS: r.framesRead}, nil
}

func (r *ffmpegFormatReader) Close() error {
	if r.cleanupFn != nil {
		defer r.cleanupFn()
	}
	if r.cmd == nil || r.cmd.Process == nil {
		return nil
	}
	r.cmd.Process.Kill()
	return r.cmd.Wait()
}
