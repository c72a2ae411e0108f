// Command player is a minimal REPL that exercises
// github.com/richinsley/goplayback/audio end to end: add tracks to a
// playlist, play/pause/seek/adjust volume, and advance to the next track.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/richinsley/goplayback/audio"
	"github.com/richinsley/goplayback/audio/decoder"
	"github.com/richinsley/goplayback/audio/output"
)

func main() {
	ffmpegPath := flag.String("ffmpeg", "", "Path to the ffmpeg executable (ffprobe is resolved from $PATH)")
	gapless := flag.Bool("gapless", true, "Trim leading silence from each track")
	flag.Parse()

	host, err := output.NewPortAudioHost()
	if err != nil {
		log.Fatalf("player: failed to initialize output host: %v", err)
	}

	onDeviceChanged := func() { log.Printf("player: output device changed") }
	onError := func(e output.StreamError) { log.Printf("player: stream error: %v", e) }
	builder := audio.NewOutputBuilder(host, output.DefaultSettings(), onDeviceChanged, onError)

	mgr, err := audio.NewManager(builder, decoder.DefaultResamplerSettings())
	if err != nil {
		log.Fatalf("player: failed to create manager: %v", err)
	}

	p := &player{
		mgr:      mgr,
		settings: decoder.DecoderSettings{EnableGapless: *gapless},
		ffmpeg:   *ffmpegPath,
	}
	defer p.closeCurrent()

	fmt.Println("goplayback REPL. Commands: add <path>, play, pause, seek <seconds>, volume <0..1>, next, stop, quit")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "add":
			if len(args) < 1 {
				fmt.Println("usage: add <path>")
				continue
			}
			p.playlist = append(p.playlist, args[0])
			fmt.Printf("added %q (%d in playlist)\n", args[0], len(p.playlist))
		case "play":
			if p.current == nil {
				if err := p.advance(); err != nil {
					fmt.Println("error:", err)
					continue
				}
			}
			p.current.Resume()
			go p.drive()
		case "pause":
			if p.current != nil {
				p.current.Pause()
			}
		case "seek":
			if p.current == nil || len(args) < 1 {
				fmt.Println("usage: seek <seconds> (playback must be active)")
				continue
			}
			seconds, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if _, err := p.current.Seek(time.Duration(seconds * float64(time.Second))); err != nil {
				fmt.Println("seek error:", err)
			}
		case "volume":
			if len(args) < 1 {
				fmt.Printf("volume = %.2f\n", p.mgr.Volume())
				continue
			}
			v, err := strconv.ParseFloat(args[0], 32)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			p.mgr.SetVolume(float32(v))
			if p.current != nil {
				p.current.SetVolume(float32(v))
			}
		case "next":
			if err := p.advance(); err != nil {
				fmt.Println("error:", err)
				continue
			}
			go p.drive()
		case "stop":
			p.closeCurrent()
			if err := p.mgr.Flush(); err != nil {
				fmt.Println("flush error:", err)
			}
		case "quit", "exit":
			return
		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

// player sequences playback through a playlist of file paths, one
// decoder.Decoder at a time, driven by a background goroutine that calls
// Manager.Write until the track finishes.
type player struct {
	mgr      *audio.Manager
	settings decoder.DecoderSettings
	ffmpeg   string

	playlist []string
	pos      int
	current  *decoder.Decoder
}

func (p *player) closeCurrent() {
	if p.current != nil {
		p.current.Close()
		p.current = nil
	}
}

// advance opens the next playlist entry and resets the pipeline around it.
func (p *player) advance() error {
	if p.pos >= len(p.playlist) {
		return fmt.Errorf("player: playlist exhausted")
	}
	path := p.playlist[p.pos]
	p.pos++

	src, err := decoder.OpenFile(path)
	if err != nil {
		return err
	}
	prober := decoder.Probe(path, p.ffmpeg)

	p.closeCurrent()
	d, err := p.mgr.InitDecoder(src, prober, p.settings)
	if err != nil {
		src.Close()
		return err
	}
	p.current = d
	fmt.Printf("now playing %q\n", path)
	return nil
}

// drive pumps Manager.Write until the current track finishes, then
// advances automatically when more tracks are queued.
func (p *player) drive() {
	if p.current == nil {
		return
	}
	if err := p.mgr.WriteAll(p.current); err != nil {
		log.Printf("player: playback error: %v", err)
		return
	}
	if p.pos < len(p.playlist) {
		if err := p.advance(); err != nil {
			log.Printf("player: advance error: %v", err)
			return
		}
		go p.drive()
	}
}
