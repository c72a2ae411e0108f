package decoder

import (
	"os"
	"path/filepath"
	"strings"
)

// FileSource adapts an *os.File to the Source interface, exposing its path
// so the ffmpeg-backed Prober can hand ffmpeg/ffprobe the file directly
// instead of spooling through a temporary copy.
type FileSource struct {
	*os.File
}

// OpenFile opens path for reading and wraps it as a Source.
func OpenFile(path string) (*FileSource, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &FileSource{File: f}, nil
}

func (f *FileSource) Ext() string {
	return strings.TrimPrefix(filepath.Ext(f.Name()), ".")
}

// Path returns the underlying filesystem path. Implementing this optional
// interface lets ffmpegFormatReader skip spooling the source to a temp file.
func (f *FileSource) Path() string { return f.File.Name() }
