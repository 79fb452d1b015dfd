package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/ayusman/handchord/internal/engine"
	"github.com/ayusman/handchord/internal/slot"
)

// fakePlayer is an in-memory Player.
type fakePlayer struct {
	mu          sync.Mutex
	enabled     bool
	instruments []engine.Instrument
	current     int
	switches    int
}

func newFakePlayer() *fakePlayer {
	return &fakePlayer{enabled: true, instruments: engine.DefaultInstruments()}
}

func (p *fakePlayer) Snapshot() engine.Snapshot {
	p.mu.Lock()
	defer p.mu.Unlock()
	snap := engine.Snapshot{Instrument: p.instruments[p.current], Baseline: engine.DefaultBaseline}
	for _, s := range slot.All() {
		snap.Slots = append(snap.Slots, engine.SlotStatus{Slot: s, Name: s.String(), State: engine.Idle})
	}
	return snap
}

func (p *fakePlayer) NextInstrument() engine.Instrument {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.switches++
	p.current = (p.current + 1) % len(p.instruments)
	return p.instruments[p.current]
}

func (p *fakePlayer) Enabled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.enabled
}

func (p *fakePlayer) SetEnabled(enabled bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.enabled = enabled
}

func TestServer_Health(t *testing.T) {
	s := New(Config{})

	t.Run("returns 200 with JSON response", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}

		contentType := rec.Header().Get("Content-Type")
		if contentType != "application/json" {
			t.Errorf("expected Content-Type application/json, got %s", contentType)
		}

		var response map[string]interface{}
		if err := json.NewDecoder(rec.Body).Decode(&response); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}

		if response["status"] != "ok" {
			t.Errorf("expected status 'ok', got %v", response["status"])
		}

		if _, exists := response["uptime"]; !exists {
			t.Error("expected 'uptime' field in response")
		}
	})

	t.Run("only allows GET method", func(t *testing.T) {
		methods := []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch}

		for _, method := range methods {
			req := httptest.NewRequest(method, "/api/health", nil)
			rec := httptest.NewRecorder()

			s.ServeHTTP(rec, req)

			if rec.Code != http.StatusMethodNotAllowed {
				t.Errorf("method %s: expected status %d, got %d", method, http.StatusMethodNotAllowed, rec.Code)
			}
		}
	})
}

func TestServer_NotFound(t *testing.T) {
	s := New(Config{})

	req := httptest.NewRequest(http.MethodGet, "/api/nonexistent", nil)
	rec := httptest.NewRecorder()

	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
	}
}

func TestServer_StaticFiles(t *testing.T) {
	tmpDir := t.TempDir()

	testContent := "<html><body>handchord</body></html>"
	if err := os.WriteFile(filepath.Join(tmpDir, "index.html"), []byte(testContent), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}

	s := New(Config{StaticDir: tmpDir})

	t.Run("serves index.html at root path", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		if rec.Body.String() != testContent {
			t.Errorf("expected body %q, got %q", testContent, rec.Body.String())
		}
	})

	t.Run("returns 404 for non-existent static files", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/nonexistent.html", nil)
		rec := httptest.NewRecorder()

		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusNotFound {
			t.Errorf("expected status %d, got %d", http.StatusNotFound, rec.Code)
		}
	})
}

func TestServer_PlayerRoutesDisabledWithoutPlayer(t *testing.T) {
	s := New(Config{})

	for _, path := range []string{"/api/state", "/api/stream", "/api/events"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusNotFound {
			t.Errorf("GET %s: expected status %d, got %d", path, http.StatusNotFound, rec.Code)
		}
	}
}

func TestServer_State(t *testing.T) {
	p := newFakePlayer()
	hub := NewEventHub()
	s := New(Config{Player: p, Events: hub})

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
	}

	var resp struct {
		Slots []struct {
			Slot  string `json:"slot"`
			State string `json:"state"`
		} `json:"slots"`
		Instrument engine.Instrument `json:"instrument"`
		Enabled    bool              `json:"enabled"`
		Clients    int               `json:"clients"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}

	if len(resp.Slots) != slot.Count {
		t.Errorf("slots = %d, want %d", len(resp.Slots), slot.Count)
	}
	if resp.Slots[0].Slot != "left/thumb" || resp.Slots[0].State != "idle" {
		t.Errorf("first slot = %+v, want left/thumb idle", resp.Slots[0])
	}
	if resp.Instrument != engine.DefaultInstruments()[0] {
		t.Errorf("instrument = %+v", resp.Instrument)
	}
	if !resp.Enabled {
		t.Error("expected enabled")
	}
	if resp.Clients != 0 {
		t.Errorf("clients = %d, want 0", resp.Clients)
	}
}

func TestServer_NextInstrument(t *testing.T) {
	p := newFakePlayer()
	s := New(Config{Player: p})

	t.Run("advances the instrument", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/api/instrument/next", nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("expected status %d, got %d", http.StatusOK, rec.Code)
		}
		var resp struct {
			Instrument engine.Instrument `json:"instrument"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("failed to decode response: %v", err)
		}
		if resp.Instrument != engine.DefaultInstruments()[1] {
			t.Errorf("instrument = %+v, want %+v", resp.Instrument, engine.DefaultInstruments()[1])
		}
		if p.switches != 1 {
			t.Errorf("switches = %d, want 1", p.switches)
		}
	})

	t.Run("rejects GET", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/instrument/next", nil)
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)
		if rec.Code != http.StatusMethodNotAllowed {
			t.Errorf("expected status %d, got %d", http.StatusMethodNotAllowed, rec.Code)
		}
	})
}

func TestServer_Enabled(t *testing.T) {
	p := newFakePlayer()
	s := New(Config{Player: p})

	tests := []struct {
		name        string
		body        string
		wantStatus  int
		wantEnabled bool
	}{
		{"disable", `{"enabled": false}`, http.StatusOK, false},
		{"enable", `{"enabled": true}`, http.StatusOK, true},
		{"missing field", `{}`, http.StatusBadRequest, true},
		{"invalid json", `{enabled`, http.StatusBadRequest, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPut, "/api/enabled", bytes.NewBufferString(tt.body))
			rec := httptest.NewRecorder()
			s.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if p.Enabled() != tt.wantEnabled {
				t.Errorf("enabled = %v, want %v", p.Enabled(), tt.wantEnabled)
			}
		})
	}
}

func TestServer_CORS(t *testing.T) {
	s := New(Config{AllowedOrigins: []string{"http://localhost:3000"}})

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://localhost:3000")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Access-Control-Allow-Origin = %q", got)
		}
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
		req.Header.Set("Origin", "http://evil.example")
		rec := httptest.NewRecorder()
		s.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
			t.Errorf("Access-Control-Allow-Origin = %q, want empty", got)
		}
	})
}

// staticFrames is a FrameSource that always returns the same frame.
type staticFrames struct {
	data []byte
	seq  uint64
}

func (f staticFrames) LatestJPEG() ([]byte, uint64) {
	return f.data, f.seq
}

func TestStreamHandler(t *testing.T) {
	frame := []byte{0xFF, 0xD8, 0xFF, 0xD9}
	h := NewStreamHandler(staticFrames{data: frame, seq: 1})

	ts := httptest.NewServer(h)
	defer ts.Close()

	resp, err := ts.Client().Get(ts.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "multipart/x-mixed-replace") {
		t.Errorf("Content-Type = %q", ct)
	}

	header := "--frame\r\nContent-Type: image/jpeg\r\nContent-Length: 4\r\n\r\n"
	buf := make([]byte, len(header)+len(frame))
	if _, err := io.ReadFull(resp.Body, buf); err != nil {
		t.Fatalf("read error = %v", err)
	}
	if string(buf[:len(header)]) != header {
		t.Errorf("part header = %q", buf[:len(header)])
	}
	if !bytes.Equal(buf[len(header):], frame) {
		t.Errorf("frame = %x, want %x", buf[len(header):], frame)
	}
}

func TestNew(t *testing.T) {
	s := New(Config{StaticDir: "/some/path"})

	if s == nil {
		t.Fatal("expected non-nil server")
	}
	if s.config.StaticDir != "/some/path" {
		t.Errorf("expected StaticDir %q, got %q", "/some/path", s.config.StaticDir)
	}
	if s.router == nil {
		t.Error("expected router to be initialized")
	}
}
