package remote

import (
	"context"
	"errors"
	"image"
	"image/color"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ironsheep/image-deskew/internal/deskew"
	"github.com/ironsheep/image-deskew/internal/handler"
	"github.com/ironsheep/image-deskew/internal/imaging"
)

// createTestImage creates a white page with a black bar rotated ccw degrees.
func createTestImage(ccw float64) *image.Gray {
	const w, h = 120, 90
	img := image.NewGray(image.Rect(0, 0, w, h))
	rad := ccw * math.Pi / 180
	c, s := math.Cos(rad), math.Sin(rad)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			dx, dy := float64(x)+0.5-w/2, float64(y)+0.5-h/2
			u := dx*c - dy*s
			v := dx*s + dy*c
			if math.Abs(u) <= 35 && math.Abs(v) <= 12 {
				img.SetGray(x, y, color.Gray{Y: 0})
			} else {
				img.SetGray(x, y, color.Gray{Y: 255})
			}
		}
	}
	return img
}

func TestNewClient_Configuration(t *testing.T) {
	tests := []struct {
		name     string
		endpoint string
		wantErr  bool
	}{
		{"empty", "", true},
		{"blank", "   ", true},
		{"relative", "/deskew", true},
		{"no scheme", "example.com/deskew", true},
		{"ftp", "ftp://example.com/deskew", true},
		{"no host", "http:///deskew", true},
		{"http", "http://localhost:8080/", false},
		{"https", "https://abc123.execute-api.us-east-1.amazonaws.com/Prod/deskew", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClient(Config{Endpoint: tt.endpoint})
			if tt.wantErr {
				if !errors.Is(err, ErrConfiguration) {
					t.Errorf("expected ErrConfiguration, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}
			if c.Endpoint() != tt.endpoint {
				t.Errorf("Endpoint = %q, want %q", c.Endpoint(), tt.endpoint)
			}
		})
	}
}

func TestDeskew_AgainstHandler(t *testing.T) {
	srv := httptest.NewServer(handler.New(deskew.New()))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL + "/deskew", Timeout: 10 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	resp, err := c.Process(context.Background(), createTestImage(-8))
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if resp.Image.Bounds().Dx() != 120 || resp.Image.Bounds().Dy() != 90 {
		t.Errorf("output size = %v, want 120x90", resp.Image.Bounds())
	}
	if !resp.HasAngle {
		t.Fatal("angle header missing")
	}
	if math.Abs(resp.Angle-8) > 1 {
		t.Errorf("Angle = %.3f, want about 8", resp.Angle)
	}
}

func TestDeskew_RequestFormat(t *testing.T) {
	var gotType string
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotType = r.Header.Get("Content-Type")
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("Content-Type", "image/png")
		w.Write(gotBody) // echo
	}))
	defer srv.Close()

	c, err := NewClient(Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	out, err := c.Deskew(context.Background(), createTestImage(0))
	if err != nil {
		t.Fatalf("Deskew failed: %v", err)
	}
	if gotType != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", gotType)
	}
	if _, err := imaging.DecodeImage(gotBody); err != nil {
		t.Errorf("request body is not an image: %v", err)
	}
	if out.Bounds().Dx() != 120 {
		t.Errorf("output width = %d, want 120", out.Bounds().Dx())
	}
}

func TestDeskew_RemoteFailure(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "internal failure", http.StatusInternalServerError)
			},
		},
		{
			name: "bad request",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, `{"error":"decode error"}`, http.StatusBadRequest)
			},
		},
		{
			name: "created is not ok",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusCreated)
			},
		},
		{
			name: "undecodable body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("definitely not a png"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			c, err := NewClient(Config{Endpoint: srv.URL})
			if err != nil {
				t.Fatalf("NewClient failed: %v", err)
			}

			out, err := c.Deskew(context.Background(), createTestImage(5))
			if !errors.Is(err, ErrRemoteFailure) {
				t.Errorf("expected ErrRemoteFailure, got %v", err)
			}
			if out != nil {
				t.Error("partial image returned on failure")
			}
		})
	}
}

func TestDeskew_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := NewClient(Config{Endpoint: url, Timeout: 2 * time.Second})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := c.Deskew(context.Background(), createTestImage(5)); !errors.Is(err, ErrRemoteFailure) {
		t.Errorf("expected ErrRemoteFailure, got %v", err)
	}
}

type failingClient struct{ err error }

func (f failingClient) Do(*http.Request) (*http.Response, error) { return nil, f.err }

func TestDeskew_CustomTransport(t *testing.T) {
	boom := errors.New("boom")
	c, err := NewClient(Config{Endpoint: "https://example.invalid/deskew", HTTPClient: failingClient{boom}})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}

	_, err = c.Deskew(context.Background(), createTestImage(5))
	if !errors.Is(err, ErrRemoteFailure) || !errors.Is(err, boom) {
		t.Errorf("expected ErrRemoteFailure wrapping transport error, got %v", err)
	}
}

func TestDeskew_InvalidImage(t *testing.T) {
	c, err := NewClient(Config{Endpoint: "http://localhost:1"})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := c.Deskew(context.Background(), nil); !errors.Is(err, imaging.ErrInvalidImage) {
		t.Errorf("expected ErrInvalidImage, got %v", err)
	}
}

func TestDeskewFile(t *testing.T) {
	srv := httptest.NewServer(handler.New(deskew.New()))
	defer srv.Close()

	dir := t.TempDir()
	in := filepath.Join(dir, "scan.png")
	out := filepath.Join(dir, "scan_deskewed.png")
	if err := imaging.Save(createTestImage(6), in); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	c, err := NewClient(Config{Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	if _, err := c.DeskewFile(context.Background(), in, out); err != nil {
		t.Fatalf("DeskewFile failed: %v", err)
	}

	if _, err := os.Stat(out); err != nil {
		t.Fatalf("output not written: %v", err)
	}
	img, err := imaging.Open(out)
	if err != nil {
		t.Fatalf("Open output failed: %v", err)
	}
	if img.Bounds().Dx() != 120 || img.Bounds().Dy() != 90 {
		t.Errorf("output size = %v, want 120x90", img.Bounds())
	}
}
