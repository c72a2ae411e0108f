package decoder

import (
	"io"
	"time"
)

// Source is the external byte-source collaborator: a seekable reader plus an
// optional file-extension hint used to seed format detection.
type Source interface {
	io.ReadSeeker
	// Ext returns a filename-extension hint (e.g. "mp3"), or "" if unknown.
	Ext() string
}

// Track describes the default audio track chosen from a probed format.
type Track struct {
	ID         int
	SampleRate int
	Channels   int
}

// Packet is one demuxed chunk of already-decoded interleaved float32 audio,
// tagged with the track it belongs to and its cumulative sample-frame
// timestamp. Real containers expose compressed packets and a separate codec
// decode step; the ffmpeg-backed FormatReader in this package folds both
// together behind the same two-interface boundary (see ffmpeg.go).
type Packet struct {
	TrackID int
	TS      int64
	Data    []float32
}

// SeekedTo is returned by FormatReader.Seek. RequiredTS is the timestamp of
// the requested target; the demuxer may resume at an earlier packet, and
// Decoder.Next drops packets whose ts is before RequiredTS.
type SeekedTo struct {
	RequiredTS int64
}

// FormatReader is the demuxer collaborator: packet reading, default-track
// selection and seeking.
type FormatReader interface {
	DefaultAudioTrack() (Track, bool)
	// NextPacket returns the next packet for any track, or io.EOF at end of
	// stream.
	NextPacket() (Packet, error)
	Seek(target time.Duration) (SeekedTo, error)
	Close() error
}

// DecodedAudioBuffer is a decoded block of interleaved samples at the
// codec's native rate and channel count.
type DecodedAudioBuffer interface {
	Rate() int
	Channels() int
	// Len returns the total number of interleaved samples available.
	Len() int
	// CopyInterleaved copies as many interleaved samples as fit into dst,
	// returning the count copied.
	CopyInterleaved(dst []float32) int
}

// AudioCodec is the codec collaborator: decode and mandatory post-seek reset.
type AudioCodec interface {
	Decode(p Packet) (DecodedAudioBuffer, error)
	Reset()
}

// Prober constructs a FormatReader/AudioCodec pair for a Source. The only
// implementation in this package is the ffmpeg-exec-backed one in ffmpeg.go;
// Decoder never imports ffmpeg-go directly so an embedder can swap the
// collaborator.
type Prober func(src Source) (FormatReader, AudioCodec, error)
