package e2e

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/recipecast/api/internal/client"
	"github.com/recipecast/api/internal/config"
	"github.com/recipecast/api/internal/handler"
	"github.com/recipecast/api/internal/logger"
	"github.com/recipecast/api/internal/ratelimit"
	"github.com/recipecast/api/internal/service"
	"github.com/recipecast/api/internal/storage"
	ws "github.com/recipecast/api/internal/websocket"
	"github.com/recipecast/api/internal/worker"
)

// providers fakes AssemblyAI, the chat completions API and YouTube in one server.
type providers struct {
	mu sync.Mutex

	transcriptStatus string
	transcriptText   string
	llmContent       string
	llmStatus        int
	llmBody          string
	llmCalls         int
	uploads          int
}

func (p *providers) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch {
	case r.URL.Path == "/assemblyai/upload":
		io.Copy(io.Discard, r.Body)
		p.uploads++
		w.Write([]byte(`{"upload_url":"https://cdn.example/audio"}`))

	case r.URL.Path == "/assemblyai/transcript":
		w.Write([]byte(`{"id":"tx-e2e","status":"queued"}`))

	case strings.HasPrefix(r.URL.Path, "/assemblyai/transcript/"):
		json.NewEncoder(w).Encode(map[string]interface{}{
			"id":     strings.TrimPrefix(r.URL.Path, "/assemblyai/transcript/"),
			"status": p.transcriptStatus,
			"text":   p.transcriptText,
		})

	case r.URL.Path == "/openai/chat/completions":
		p.llmCalls++
		if p.llmStatus != 0 {
			w.WriteHeader(p.llmStatus)
			w.Write([]byte(p.llmBody))
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"choices": []map[string]interface{}{
				{"message": map[string]string{"role": "assistant", "content": p.llmContent}},
			},
		})

	case r.URL.Path == "/youtube/videos":
		if r.URL.Query().Get("id") == "notfound000" {
			w.Write([]byte(`{"items":[]}`))
			return
		}
		w.Write([]byte(`{"items":[{"snippet":{"title":"Fluffy Pancakes","thumbnails":{"medium":{"url":"https://i.ytimg.com/vi/x/mqdefault.jpg"}}}}]}`))

	default:
		http.NotFound(w, r)
	}
}

func (p *providers) set(fn func(p *providers)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

func (p *providers) LLMCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.llmCalls
}

// fileDownloader writes a fake mp3 instead of running yt-dlp.
type fileDownloader struct {
	mu    sync.Mutex
	fail  bool
	paths []string
}

func (d *fileDownloader) Download(ctx context.Context, videoURL, outputPath string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.paths = append(d.paths, outputPath)
	if d.fail {
		return io.ErrUnexpectedEOF
	}
	return os.WriteFile(outputPath, []byte("ID3"), 0o644)
}

type testApp struct {
	app        *fiber.App
	providers  *providers
	downloader *fileDownloader
	scratchDir string
}

type appOptions struct {
	llmLimit     int
	noCredential bool
}

// setupApp builds the same graph as main.go against fake providers.
func setupApp(t *testing.T, opts appOptions) *testApp {
	t.Helper()

	fake := &providers{transcriptStatus: "queued", llmContent: "[]"}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	key := "test-key"
	if opts.noCredential {
		key = ""
	}
	limit := opts.llmLimit
	if limit == 0 {
		limit = 10000
	}

	log := logger.Discard()
	scratchDir := t.TempDir()
	store := storage.NewScratchStore(scratchDir, logger.Component(log, "storage"))
	if err := store.EnsureReady(); err != nil {
		t.Fatal(err)
	}

	downloader := &fileDownloader{}
	assemblyClient := client.NewAssemblyAIClient(&config.AssemblyAIConfig{APIKey: key, BaseURL: srv.URL + "/assemblyai"})
	llmClient := client.NewLLMClient(&config.OpenAIConfig{APIKey: key, BaseURL: srv.URL + "/openai", Model: "gpt-3.5-turbo"})
	youtubeClient := client.NewYouTubeClient(&config.YouTubeConfig{APIKey: key, BaseURL: srv.URL + "/youtube"})

	limiter := ratelimit.NewWindow(limit, time.Minute)
	audioService := service.NewAudioService(downloader, store, logger.Component(log, "audio"))
	enrichmentService := service.NewEnrichmentService(llmClient, limiter, logger.Component(log, "enrichment"))
	transcriptionService := service.NewTranscriptionService(audioService, assemblyClient, enrichmentService, store, logger.Component(log, "transcription"))
	poller := worker.NewStatusPoller(transcriptionService, 10*time.Millisecond, logger.Component(log, "poller"))

	app := fiber.New()
	handler.Register(app, handler.Handlers{
		Transcription: handler.NewTranscriptionHandler(transcriptionService, ws.NewStream(poller, logger.Component(log, "stream"))),
		QA:            handler.NewQAHandler(transcriptionService, validator.New()),
		YouTube:       handler.NewYouTubeHandler(youtubeClient),
		Health: handler.NewHealthHandler(map[string]handler.Configurable{
			"assemblyai": assemblyClient,
			"openai":     llmClient,
			"youtube":    youtubeClient,
		}),
	})

	return &testApp{app: app, providers: fake, downloader: downloader, scratchDir: scratchDir}
}

func doRequest(app *fiber.App, method, path, body string) (*http.Response, error) {
	var bodyReader io.Reader
	if body != "" {
		bodyReader = strings.NewReader(body)
	}

	req := httptest.NewRequest(method, path, bodyReader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	return app.Test(req, 5000)
}

func parseJSON(t *testing.T, resp *http.Response) map[string]interface{} {
	t.Helper()
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}

	var result map[string]interface{}
	if err := json.Unmarshal(body, &result); err != nil {
		t.Fatalf("failed to parse JSON: %v\nbody: %s", err, string(body))
	}
	return result
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("expected status %d, got %d. Body: %s", expected, resp.StatusCode, string(body))
	}
}

func assertErrorCode(t *testing.T, result map[string]interface{}, code string) {
	t.Helper()
	errObj, ok := result["error"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected error envelope, got %v", result)
	}
	if errObj["code"] != code {
		t.Errorf("expected error code %s, got %v (%v)", code, errObj["code"], errObj["message"])
	}
}
