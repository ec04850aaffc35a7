package speech

import (
	"bytes"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

// ESpeak synthesizes speech with a local espeak-ng (or espeak)
// install. Offline and fast, with the usual robotic timbre; handy for
// drafting scenes before switching to a cloud voice.
type ESpeak struct {
	Voice string // espeak voice name, e.g. "en-gb"
	Speed int    // words per minute, 0 means espeak's default
}

func (e ESpeak) FileExtension() string { return ".wav" }

func (e ESpeak) GenerateSpeech(text, path string) (string, error) {
	binary, err := findESpeak()
	if err != nil {
		return "", err
	}

	args := []string{"-w", path}
	if e.Voice != "" {
		args = append(args, "-v", e.Voice)
	}
	if e.Speed > 0 {
		args = append(args, "-s", strconv.Itoa(e.Speed))
	}
	args = append(args, "--", text)

	cmd := exec.Command(binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s: %w (stderr: %s)", binary, err, strings.TrimSpace(stderr.String()))
	}
	return path, nil
}

func (e ESpeak) Name() string { return "espeak" }

func (e ESpeak) Kwargs() map[string]any {
	return map[string]any{
		"voice": e.Voice,
		"speed": e.Speed,
	}
}

func findESpeak() (string, error) {
	for _, candidate := range []string{"espeak-ng", "espeak"} {
		if path, err := exec.LookPath(candidate); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("espeak executable not found in PATH")
}
