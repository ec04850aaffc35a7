// Package audio probes and converts the sound files produced by the
// speech backends. Decoding is header-level only; nothing is played.
package audio

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
)

// Error wraps a failure to decode or convert an audio file.
type Error struct {
	Msg   string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("audio: %s: %v", e.Msg, e.Cause)
	}
	return "audio: " + e.Msg
}

func (e *Error) Unwrap() error { return e.Cause }

// Single-slot memo for Duration. Narrations probe the same file many
// times in a row (tracker construction, subcaption pacing, alignment),
// so remembering the last probe is enough.
var durMemo struct {
	sync.Mutex
	path string
	dur  float64
	ok   bool
}

// Duration returns the playing time of an audio file in seconds. The
// format is picked from the file extension; wav, mp3, flac and ogg
// are supported. The most recent result is memoized per path.
func Duration(path string) (float64, error) {
	durMemo.Lock()
	if durMemo.ok && durMemo.path == path {
		d := durMemo.dur
		durMemo.Unlock()
		return d, nil
	}
	durMemo.Unlock()

	streamer, format, err := decode(path)
	if err != nil {
		return 0, err
	}
	defer streamer.Close()

	d := format.SampleRate.D(streamer.Len()).Seconds()

	durMemo.Lock()
	durMemo.path, durMemo.dur, durMemo.ok = path, d, true
	durMemo.Unlock()
	return d, nil
}

// ConvertToWAV re-encodes an audio file as PCM WAV next to the
// original, returning the new path. A file already carrying a .wav
// extension is returned untouched. With removeOriginal set the source
// file is deleted after a successful conversion.
func ConvertToWAV(path string, removeOriginal bool) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".wav" {
		return path, nil
	}

	streamer, format, err := decode(path)
	if err != nil {
		return "", err
	}
	defer streamer.Close()

	out := strings.TrimSuffix(path, filepath.Ext(path)) + ".wav"
	f, err := os.Create(out)
	if err != nil {
		return "", &Error{Msg: "create " + out, Cause: err}
	}
	if err := wav.Encode(f, streamer, format); err != nil {
		f.Close()
		os.Remove(out)
		return "", &Error{Msg: "encode " + out, Cause: err}
	}
	if err := f.Close(); err != nil {
		return "", &Error{Msg: "close " + out, Cause: err}
	}

	if removeOriginal {
		if err := os.Remove(path); err != nil {
			return "", &Error{Msg: "remove " + path, Cause: err}
		}
	}
	return out, nil
}

func decode(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, &Error{Msg: "open " + path, Cause: err}
	}

	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".wav":
		streamer, format, err = wav.Decode(f)
	case ".mp3":
		streamer, format, err = mp3.Decode(f)
	case ".flac":
		streamer, format, err = flac.Decode(f)
	case ".ogg", ".oga":
		streamer, format, err = vorbis.Decode(f)
	default:
		f.Close()
		return nil, beep.Format{}, &Error{Msg: "unsupported audio format " + ext}
	}
	if err != nil {
		f.Close()
		return nil, beep.Format{}, &Error{Msg: "decode " + path, Cause: err}
	}
	return streamer, format, nil
}

// WriteSilentWAV writes a silent PCM WAV of the given length. Used by
// the mock speech backend and by tests that need real decodable files
// without a synthesis engine.
func WriteSilentWAV(path string, seconds float64, sampleRate int) error {
	if sampleRate <= 0 {
		sampleRate = 22050
	}
	n := int(seconds * float64(sampleRate))
	if n < 1 {
		n = 1
	}
	format := beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: 1,
		Precision:   2,
	}

	f, err := os.Create(path)
	if err != nil {
		return &Error{Msg: "create " + path, Cause: err}
	}
	if err := wav.Encode(f, beep.Silence(n), format); err != nil {
		f.Close()
		os.Remove(path)
		return &Error{Msg: "encode " + path, Cause: err}
	}
	return f.Close()
}
