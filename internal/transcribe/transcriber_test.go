package transcribe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTranscribeSendsAudioWithLanguageHint(t *testing.T) {
	audio := make([]byte, 6000)
	copy(audio, "ID3fake-mp3-bytes")

	var gotPrompt string
	var gotSize int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/audio/transcriptions") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		gotPrompt = r.FormValue("prompt")
		file, _, err := r.FormFile("file")
		if err != nil {
			t.Fatalf("form file: %v", err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			t.Fatalf("read upload: %v", err)
		}
		gotSize = len(data)
		json.NewEncoder(w).Encode(map[string]string{"text": " haan ji, order confirm hai \n"})
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "whisper-1")
	got, err := c.Transcribe(context.Background(), audio)
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if got != "haan ji, order confirm hai" {
		t.Errorf("transcript = %q", got)
	}
	if !strings.Contains(gotPrompt, "Hinglish") {
		t.Errorf("language hint not sent, prompt = %q", gotPrompt)
	}
	if gotSize != len(audio) {
		t.Errorf("uploaded %d bytes, want %d", gotSize, len(audio))
	}
}

func TestTranscribeRejectsEmptyAudio(t *testing.T) {
	c := New("http://stt.invalid", "key", "whisper-1")
	if _, err := c.Transcribe(context.Background(), nil); err == nil {
		t.Fatal("empty audio accepted")
	}
}

func TestTranscribeRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"bad audio"}}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	c := New(srv.URL, "key", "whisper-1")
	if _, err := c.Transcribe(context.Background(), []byte("x")); err == nil {
		t.Fatal("remote failure not surfaced")
	}
}
