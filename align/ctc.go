package align

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// DefaultCTCBinary is the forced-alignment tool invoked by CTC.
const DefaultCTCBinary = "ctc-forced-aligner"

// DefaultCTCModel is the acoustic model passed to the tool when none
// is configured.
const DefaultCTCModel = "MahmoudAshraf/mms-300m-1130-forced-aligner"

// CTC aligns text to speech with an external CTC forced-alignment
// tool. The tool receives the text on stdin and the audio path,
// language and model as flags, and must print a JSON array with one
// `{"start": <seconds>}` object per character of the text. The model
// internals stay opaque here; only the per-character start times are
// consumed.
type CTC struct {
	Language  string // ISO-639-3 code, required
	ModelID   string // acoustic model, defaults to DefaultCTCModel
	BatchSize int    // inference batch size, defaults to 16
	Binary    string // tool to invoke, defaults to DefaultCTCBinary
	Timeout   time.Duration
}

type ctcSpan struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func (c CTC) AlignChars(text string, offsets []int, audioPath string) ([]float64, error) {
	binary := c.Binary
	if binary == "" {
		binary = DefaultCTCBinary
	}
	model := c.ModelID
	if model == "" {
		model = DefaultCTCModel
	}
	batch := c.BatchSize
	if batch <= 0 {
		batch = 16
	}

	args := []string{
		"--audio_path", audioPath,
		"--language", c.Language,
		"--model", model,
		"--batch_size", strconv.Itoa(batch),
		"--split_size", "char",
		"--output_format", "json",
	}

	log.Debug("running forced aligner", "binary", binary, "audio", audioPath, "language", c.Language)

	ctx := context.Background()
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, binary, args...)
	cmd.Stdin = strings.NewReader(text)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w (stderr: %s)", binary, err, strings.TrimSpace(stderr.String()))
	}

	var spans []ctcSpan
	if err := json.Unmarshal(stdout.Bytes(), &spans); err != nil {
		return nil, fmt.Errorf("%s: unexpected output: %w", binary, err)
	}

	timestamps := make([]float64, len(offsets))
	for i, offset := range offsets {
		switch {
		case offset >= 0 && offset < len(spans):
			timestamps[i] = spans[offset].Start
		case offset == len(spans) && len(spans) > 0:
			// A bookmark at the very end of the text lands one past
			// the last character; use its end time.
			timestamps[i] = spans[len(spans)-1].End
		default:
			return nil, fmt.Errorf("%s: offset %d outside the %d aligned characters", binary, offset, len(spans))
		}
	}
	return timestamps, nil
}

func (c CTC) Name() string { return "ctc" }

func (c CTC) Kwargs() map[string]any {
	model := c.ModelID
	if model == "" {
		model = DefaultCTCModel
	}
	batch := c.BatchSize
	if batch <= 0 {
		batch = 16
	}
	return map[string]any{
		"language":   c.Language,
		"model_id":   model,
		"batch_size": batch,
	}
}
