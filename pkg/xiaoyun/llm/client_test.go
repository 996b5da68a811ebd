package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "test-model",
	}, nil)
}

func candidateResponse(text string) []byte {
	body, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{
				"role":  "model",
				"parts": []map[string]string{{"text": text}},
			}},
		},
	})
	return body
}

func TestCompleteReturnsCandidateText(t *testing.T) {
	var gotPath string
	var gotReq generateRequest
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		w.Write(candidateResponse("咪！小雲在這裡～"))
	})

	out, err := client.Complete(context.Background(), []Content{UserText("hello")})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "咪！小雲在這裡～" {
		t.Errorf("unexpected output %q", out)
	}
	if gotPath != "/models/test-model:generateContent" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if len(gotReq.Contents) != 1 || gotReq.Contents[0].Role != "user" {
		t.Errorf("unexpected request contents %+v", gotReq.Contents)
	}
	if gotReq.GenerationConfig.MaxOutputTokens == 0 {
		t.Error("generation config not populated")
	}
}

func TestCompleteJoinsMultipleParts(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"part one "},{"text":"part two"}]}}]}`))
	})

	out, err := client.Complete(context.Background(), []Content{UserText("hi")})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if out != "part one part two" {
		t.Errorf("unexpected output %q", out)
	}
}

func TestCompletePolicyBlock(t *testing.T) {
	cases := []struct {
		name string
		body string
	}{
		{"prompt feedback", `{"promptFeedback":{"blockReason":"SAFETY"}}`},
		{"finish reason", `{"candidates":[{"finishReason":"SAFETY","content":{"parts":[]}}]}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tc.body))
			})
			_, err := client.Complete(context.Background(), []Content{UserText("hi")})
			if !errors.Is(err, ErrPolicyBlocked) {
				t.Fatalf("want ErrPolicyBlocked, got %v", err)
			}
		})
	}
}

func TestCompleteTimeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.Write(candidateResponse("too late"))
	})
	client.textTimeout = 20 * time.Millisecond

	_, err := client.Complete(context.Background(), []Content{UserText("hi")})
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("want ErrTimeout, got %v", err)
	}
}

func TestCompleteServerError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"internal"}`, http.StatusInternalServerError)
	})

	_, err := client.Complete(context.Background(), []Content{UserText("hi")})
	if err == nil {
		t.Fatal("want error on 500")
	}
	if !errors.Is(err, ErrAPIStatus) {
		t.Fatalf("want ErrAPIStatus on 500, got %v", err)
	}
	if errors.Is(err, ErrPolicyBlocked) || errors.Is(err, ErrTimeout) {
		t.Fatalf("server error must not look like a block or timeout, got %v", err)
	}
}

func TestCompleteMissingAPIKey(t *testing.T) {
	client := NewClient(Config{BaseURL: "http://localhost:1"}, nil)
	if _, err := client.Complete(context.Background(), []Content{UserText("hi")}); err == nil {
		t.Fatal("want error without API key")
	}
}

func TestVerifyImage(t *testing.T) {
	cases := []struct {
		name   string
		answer string
		want   bool
	}{
		{"plain yes", "YES", true},
		{"yes with tail", "yes, it shows a cat.", true},
		{"no", "NO", false},
		{"hedged", "It might be.", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var gotReq generateRequest
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				json.NewDecoder(r.Body).Decode(&gotReq)
				w.Write(candidateResponse(tc.answer))
			})

			ok, err := client.VerifyImage(context.Background(), []byte{0xFF, 0xD8}, "image/jpeg", "橘貓")
			if err != nil {
				t.Fatalf("VerifyImage: %v", err)
			}
			if ok != tc.want {
				t.Errorf("verdict = %v, want %v", ok, tc.want)
			}
			parts := gotReq.Contents[0].Parts
			if len(parts) != 2 || parts[1].InlineData == nil {
				t.Fatalf("expected prompt + inline data parts, got %+v", parts)
			}
			if parts[1].InlineData.MIMEType != "image/jpeg" {
				t.Errorf("mime type = %q", parts[1].InlineData.MIMEType)
			}
		})
	}
}

func TestTranslateQuery(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(candidateResponse(" \"orange tabby cat\" "))
	})

	out, err := client.TranslateQuery(context.Background(), "橘色的虎斑貓")
	if err != nil {
		t.Fatalf("TranslateQuery: %v", err)
	}
	if out != "orange tabby cat" {
		t.Errorf("unexpected translation %q", out)
	}
}

func TestTranslateQueryEmptyAnswer(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write(candidateResponse("  "))
	})
	if _, err := client.TranslateQuery(context.Background(), "貓"); err == nil {
		t.Fatal("want error on empty candidate text")
	}
}
