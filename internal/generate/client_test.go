package generate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestGenerateRoundTrip(t *testing.T) {
	var gotAuth string
	var gotWire map[string]any

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotWire); err != nil {
			t.Errorf("failed to decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"urls": []string{"https://img.example/a.png"},
		})
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, nil)
	resp, err := c.Generate(context.Background(), Request{
		Prompt:          "a lighthouse at dusk",
		APIKey:          "secret",
		Model:           "imagen-lite",
		AspectRatio:     "4:3",
		ReferenceImages: [][]byte{[]byte("png-bytes")},
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}

	if len(resp.URLs) != 1 || resp.URLs[0] != "https://img.example/a.png" {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if gotAuth != "Bearer secret" {
		t.Fatalf("expected bearer auth, got %q", gotAuth)
	}
	if gotWire["prompt"] != "a lighthouse at dusk" {
		t.Fatalf("unexpected prompt: %v", gotWire["prompt"])
	}
	if gotWire["model"] != "imagen-lite" || gotWire["aspect_ratio"] != "4:3" {
		t.Fatalf("unexpected model/aspect: %v / %v", gotWire["model"], gotWire["aspect_ratio"])
	}
	if gotWire["count"] != float64(1) {
		t.Fatalf("expected default count 1, got %v", gotWire["count"])
	}
	refs, ok := gotWire["reference_images"].([]any)
	if !ok || len(refs) != 1 {
		t.Fatalf("expected one base64 reference image, got %v", gotWire["reference_images"])
	}
}

func TestGenerateRejectsEmptyPrompt(t *testing.T) {
	c := NewHTTPClient("http://127.0.0.1:0", nil)
	if _, err := c.Generate(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for empty prompt")
	}
}

func TestGenerateServiceError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, nil)
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error for non-200 response")
	}
}

func TestGenerateEmptyResult(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"urls": []string{}})
	}))
	defer ts.Close()

	c := NewHTTPClient(ts.URL, nil)
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	if err == nil {
		t.Fatal("expected error when the service returns no images")
	}
}

func TestNewHTTPClientDefaultEndpoint(t *testing.T) {
	c := NewHTTPClient("", nil)
	if c.endpoint != DefaultEndpoint {
		t.Fatalf("expected default endpoint, got %q", c.endpoint)
	}
}
