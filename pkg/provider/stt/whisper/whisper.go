// Package whisper provides whisper.cpp-backed speech-to-text engines.
//
// Two variants implement [stt.Engine]:
//
//   - [NativeEngine] runs inference in-process through the whisper.cpp CGO
//     bindings and needs a local ggml model file.
//   - [ServerEngine] sends each recording to a running whisper-server binary
//     (POST /inference) and parses the segment list from its verbose JSON
//     response.
//
// Both are batch engines: a whole recording is transcribed in one call and
// returned as a list of timed segments.
//
// Usage:
//
//	e, err := whisper.New("http://localhost:8080", whisper.WithLanguage("en"))
//	segments, err := e.Transcribe(ctx, samples, stt.Config{})
package whisper

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/MrWong99/notemate/pkg/audio"
	"github.com/MrWong99/notemate/pkg/provider/stt"
)

const (
	// bitsPerSample is fixed at 16 for the 16-bit signed little-endian PCM
	// audio that whisper.cpp expects.
	bitsPerSample = 16

	// autoLanguage asks whisper.cpp to detect the spoken language.
	autoLanguage = "auto"

	defaultTimeout = 5 * time.Minute
)

// Compile-time assertion that ServerEngine implements stt.Engine.
var _ stt.Engine = (*ServerEngine)(nil)

// Option is a functional option for configuring a ServerEngine.
type Option func(*ServerEngine)

// WithModel sets the model identifier forwarded to the whisper.cpp server
// (e.g., "base.en", "small"). When empty the server uses whichever model it
// was started with. This is the default.
func WithModel(model string) Option {
	return func(e *ServerEngine) {
		e.model = model
	}
}

// WithLanguage sets the language code sent to the whisper.cpp server
// (e.g., "en", "de", "fr"). Defaults to "auto".
func WithLanguage(lang string) Option {
	return func(e *ServerEngine) {
		e.language = lang
	}
}

// WithTimeout bounds a single inference request. Defaults to 5 minutes.
func WithTimeout(d time.Duration) Option {
	return func(e *ServerEngine) {
		e.httpClient.Timeout = d
	}
}

// WithHTTPClient replaces the HTTP client used for inference requests.
func WithHTTPClient(c *http.Client) Option {
	return func(e *ServerEngine) {
		e.httpClient = c
	}
}

// ServerEngine implements stt.Engine backed by a whisper.cpp HTTP server.
// It holds no per-call state and is safe for concurrent use.
type ServerEngine struct {
	serverURL  string
	model      string
	language   string
	httpClient *http.Client
}

// New creates a ServerEngine that connects to the whisper.cpp HTTP server at
// serverURL (e.g., "http://localhost:8080"). serverURL must be non-empty.
func New(serverURL string, opts ...Option) (*ServerEngine, error) {
	if serverURL == "" {
		return nil, errors.New("whisper: serverURL must not be empty")
	}
	e := &ServerEngine{
		serverURL:  strings.TrimRight(serverURL, "/"),
		language:   autoLanguage,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// inferenceResponse is the subset of whisper-server's verbose_json output
// that is consumed. Segment offsets are in seconds.
type inferenceResponse struct {
	Text     string `json:"text"`
	Segments []struct {
		Text  string  `json:"text"`
		Start float64 `json:"start"`
		End   float64 `json:"end"`
	} `json:"segments"`
}

// Transcribe implements stt.Engine. samples must be mono float32 at
// [stt.SampleRate].
func (e *ServerEngine) Transcribe(ctx context.Context, samples []float32, cfg stt.Config) ([]stt.Segment, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("whisper: %w", err)
	}
	if len(samples) == 0 {
		return nil, nil
	}

	lang := cfg.Language
	if lang == "" {
		lang = e.language
	}

	body, contentType, err := e.buildForm(audio.Float32ToPCM16(samples), lang)
	if err != nil {
		return nil, err
	}

	endpoint := e.serverURL + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return nil, fmt.Errorf("whisper: create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("whisper: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("whisper: server returned HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("whisper: read response body: %w", err)
	}

	var result inferenceResponse
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("whisper: parse JSON response: %w", err)
	}

	if len(result.Segments) == 0 {
		if strings.TrimSpace(result.Text) == "" {
			return nil, nil
		}
		return []stt.Segment{{
			Text: result.Text,
			End:  time.Duration(len(samples)) * time.Second / stt.SampleRate,
		}}, nil
	}

	segments := make([]stt.Segment, 0, len(result.Segments))
	for _, s := range result.Segments {
		segments = append(segments, stt.Segment{
			Text:  s.Text,
			Start: seconds(s.Start),
			End:   seconds(s.End),
		})
	}
	return segments, nil
}

// buildForm encodes pcm as a WAV upload plus the optional hint fields.
func (e *ServerEngine) buildForm(pcm []byte, lang string) (*bytes.Buffer, string, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	fw, err := mw.CreateFormFile("file", "audio.wav")
	if err != nil {
		return nil, "", fmt.Errorf("whisper: create form file: %w", err)
	}
	if _, err := fw.Write(encodeWAV(pcm, stt.SampleRate, 1)); err != nil {
		return nil, "", fmt.Errorf("whisper: write wav data: %w", err)
	}

	fields := [][2]string{
		{"response_format", "verbose_json"},
		{"language", lang},
		{"model", e.model},
	}
	for _, f := range fields {
		if f[1] == "" {
			continue
		}
		if err := mw.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("whisper: write %s field: %w", f[0], err)
		}
	}

	if err := mw.Close(); err != nil {
		return nil, "", fmt.Errorf("whisper: close multipart writer: %w", err)
	}
	return &body, mw.FormDataContentType(), nil
}

// ---- helpers ----------------------------------------------------------------

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// encodeWAV wraps raw 16-bit signed little-endian PCM data in a standard
// RIFF/WAV container for a multipart upload.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	bps := bitsPerSample
	byteRate := sampleRate * channels * bps / 8
	blockAlign := channels * bps / 8
	dataSize := len(pcm)

	buf := make([]byte, 44+dataSize)

	// RIFF chunk descriptor
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+dataSize)) // file size - 8
	copy(buf[8:12], "WAVE")

	// fmt sub-chunk
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)                 // sub-chunk size (PCM)
	binary.LittleEndian.PutUint16(buf[20:22], 1)                  // audio format: PCM
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))   // num channels
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate)) // sample rate
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))   // byte rate
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign)) // block align
	binary.LittleEndian.PutUint16(buf[34:36], uint16(bps))        // bits per sample

	// data sub-chunk
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(dataSize))
	copy(buf[44:], pcm)

	return buf
}
