// Package remote provides a recognizer.Provider that calls a phoneme
// recognition server over HTTP.
//
// The server is expected to accept POST <serverURL>/recognize with a
// multipart/form-data body carrying the audio in a "file" field (and an
// optional "model" field), and to answer with JSON:
//
//	{"phonemes": "h ɛ l oʊ"}
//
// Raw PCM input is wrapped in a WAV container before upload.
package remote

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

	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
)

const (
	bitsPerSample   = 16
	defaultFilename = "audio.wav"
	maxResponseSize = 1 << 20
)

var _ recognizer.Provider = (*Provider)(nil)

// Option is a functional option for New.
type Option func(*Provider)

// WithModel sets the model name forwarded in the "model" form field.
func WithModel(model string) Option {
	return func(p *Provider) {
		p.model = model
	}
}

// WithTimeout sets the HTTP client timeout. Default: 30s.
func WithTimeout(d time.Duration) Option {
	return func(p *Provider) {
		p.httpClient.Timeout = d
	}
}

// WithAPIKey sends key as a bearer token.
func WithAPIKey(key string) Option {
	return func(p *Provider) {
		p.apiKey = key
	}
}

// WithHTTPClient replaces the HTTP client entirely.
func WithHTTPClient(c *http.Client) Option {
	return func(p *Provider) {
		p.httpClient = c
	}
}

// Provider implements recognizer.Provider against a remote server.
type Provider struct {
	serverURL  string
	model      string
	apiKey     string
	httpClient *http.Client
}

// New creates a Provider for the server at serverURL.
func New(serverURL string, opts ...Option) (*Provider, error) {
	if serverURL == "" {
		return nil, errors.New("remote recognizer: serverURL must not be empty")
	}
	p := &Provider{
		serverURL:  strings.TrimRight(serverURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

// Recognize uploads audio and returns the phoneme string the server reports.
func (p *Provider) Recognize(ctx context.Context, audio recognizer.Audio) (string, error) {
	if len(audio.Data) == 0 {
		return "", recognizer.ErrNoAudio
	}

	data, filename := audio.Data, audio.Filename
	if audio.PCM != nil {
		data = encodeWAV(audio.Data, audio.PCM.SampleRate, audio.PCM.Channels)
		filename = defaultFilename
	}
	if filename == "" {
		filename = defaultFilename
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("remote recognizer: create form file: %w", err)
	}
	if _, err := fw.Write(data); err != nil {
		return "", fmt.Errorf("remote recognizer: write audio: %w", err)
	}
	if p.model != "" {
		if err := mw.WriteField("model", p.model); err != nil {
			return "", fmt.Errorf("remote recognizer: write model field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("remote recognizer: close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.serverURL+"/recognize", &body)
	if err != nil {
		return "", fmt.Errorf("remote recognizer: create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("remote recognizer: http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("remote recognizer: server returned HTTP %d", resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return "", fmt.Errorf("remote recognizer: read response body: %w", err)
	}
	var result struct {
		Phonemes string `json:"phonemes"`
	}
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", fmt.Errorf("remote recognizer: parse JSON response: %w", err)
	}
	return strings.TrimSpace(result.Phonemes), nil
}

// encodeWAV wraps 16-bit signed little-endian PCM in a RIFF/WAV container.
func encodeWAV(pcm []byte, sampleRate, channels int) []byte {
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}
	byteRate := sampleRate * channels * bitsPerSample / 8
	blockAlign := channels * bitsPerSample / 8

	buf := make([]byte, 44+len(pcm))
	copy(buf[0:4], "RIFF")
	binary.LittleEndian.PutUint32(buf[4:8], uint32(36+len(pcm)))
	copy(buf[8:12], "WAVE")
	copy(buf[12:16], "fmt ")
	binary.LittleEndian.PutUint32(buf[16:20], 16)
	binary.LittleEndian.PutUint16(buf[20:22], 1)
	binary.LittleEndian.PutUint16(buf[22:24], uint16(channels))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(sampleRate))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(byteRate))
	binary.LittleEndian.PutUint16(buf[32:34], uint16(blockAlign))
	binary.LittleEndian.PutUint16(buf[34:36], bitsPerSample)
	copy(buf[36:40], "data")
	binary.LittleEndian.PutUint32(buf[40:44], uint32(len(pcm)))
	copy(buf[44:], pcm)
	return buf
}
