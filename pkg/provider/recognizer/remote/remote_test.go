package remote_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/MrWong99/phonoscore/pkg/provider/recognizer"
	"github.com/MrWong99/phonoscore/pkg/provider/recognizer/remote"
)

type upload struct {
	filename string
	data     []byte
	model    string
	auth     string
}

func newServer(t *testing.T, phonemes string, status int, got *upload) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/recognize" {
			http.Error(w, "not found", http.StatusNotFound)
			return
		}
		f, hdr, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		data, _ := io.ReadAll(f)
		if got != nil {
			*got = upload{filename: hdr.Filename, data: data, model: r.FormValue("model"), auth: r.Header.Get("Authorization")}
		}
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"phonemes": phonemes})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestNew_EmptyServerURL(t *testing.T) {
	t.Parallel()
	if _, err := remote.New(""); err == nil {
		t.Fatal("expected error for empty serverURL")
	}
}

func TestRecognize_UploadsFile(t *testing.T) {
	t.Parallel()
	var got upload
	srv := newServer(t, " h ɛ l oʊ \n", http.StatusOK, &got)

	p, err := remote.New(srv.URL+"/", remote.WithModel("wav2vec2-ipa"), remote.WithAPIKey("k"))
	if err != nil {
		t.Fatal(err)
	}
	phonemes, err := p.Recognize(context.Background(), recognizer.Audio{Data: []byte("webm-bytes"), Filename: "take.webm"})
	if err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if phonemes != "h ɛ l oʊ" {
		t.Errorf("phonemes = %q", phonemes)
	}
	if got.filename != "take.webm" || string(got.data) != "webm-bytes" {
		t.Errorf("upload = %q %q", got.filename, got.data)
	}
	if got.model != "wav2vec2-ipa" {
		t.Errorf("model field = %q", got.model)
	}
	if got.auth != "Bearer k" {
		t.Errorf("authorization = %q", got.auth)
	}
}

func TestRecognize_WrapsPCM(t *testing.T) {
	t.Parallel()
	var got upload
	srv := newServer(t, "a", http.StatusOK, &got)
	p, _ := remote.New(srv.URL)

	pcm := make([]byte, 320)
	if _, err := p.Recognize(context.Background(), recognizer.Audio{
		Data: pcm,
		PCM:  &recognizer.PCMFormat{SampleRate: 16000, Channels: 1},
	}); err != nil {
		t.Fatalf("Recognize: %v", err)
	}
	if len(got.data) != 44+len(pcm) {
		t.Fatalf("uploaded %d bytes, want %d", len(got.data), 44+len(pcm))
	}
	if string(got.data[0:4]) != "RIFF" || string(got.data[8:12]) != "WAVE" {
		t.Error("upload is not a WAV container")
	}
	if got.filename != "audio.wav" {
		t.Errorf("filename = %q", got.filename)
	}
}

func TestRecognize_Errors(t *testing.T) {
	t.Parallel()

	t.Run("no audio", func(t *testing.T) {
		t.Parallel()
		p, _ := remote.New("http://127.0.0.1:1")
		_, err := p.Recognize(context.Background(), recognizer.Audio{})
		if !errors.Is(err, recognizer.ErrNoAudio) {
			t.Fatalf("err = %v, want ErrNoAudio", err)
		}
	})

	t.Run("server error", func(t *testing.T) {
		t.Parallel()
		srv := newServer(t, "", http.StatusInternalServerError, nil)
		p, _ := remote.New(srv.URL)
		if _, err := p.Recognize(context.Background(), recognizer.Audio{Data: []byte{1}}); err == nil {
			t.Fatal("expected error on HTTP 500")
		}
	})

	t.Run("timeout", func(t *testing.T) {
		t.Parallel()
		block := make(chan struct{})
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			<-block
		}))
		t.Cleanup(func() {
			close(block)
			srv.Close()
		})
		p, _ := remote.New(srv.URL, remote.WithTimeout(50*time.Millisecond))
		if _, err := p.Recognize(context.Background(), recognizer.Audio{Data: []byte{1}}); err == nil {
			t.Fatal("expected timeout error")
		}
	})
}
