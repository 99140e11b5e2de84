package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasprint_ai/config"
	"plasprint_ai/models"
	"plasprint_ai/services"
)

type memorySheets map[string][]models.Record

func (m memorySheets) ListRows(ctx context.Context, sheet string) ([]models.Record, error) {
	return m[sheet], nil
}

func (m memorySheets) ReplaceRows(ctx context.Context, sheet string, records []models.Record) error {
	m[sheet] = records
	return nil
}

type answerFunc func(ctx context.Context, prompt string) (string, error)

func (f answerFunc) Complete(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

type fixedRate struct {
	value float64
	err   error
}

func (f *fixedRate) Name() string { return "fixed" }

func (f *fixedRate) FetchRate(ctx context.Context) (float64, error) {
	return f.value, f.err
}

type testServer struct {
	router http.Handler
	sheets memorySheets
	rate   *fixedRate
	llmErr error
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg, err := config.Parse([]byte("{}"))
	require.NoError(t, err)

	ts := &testServer{
		sheets: memorySheets{
			"gerais": {{"Informações": "Impressora UV Mimaki com cabeçote de 600 dpi e preço de $1,200.00"}},
			"erros":  {{"Erro": "E12", "Solução": "Limpar cabeçote"}},
		},
		rate: &fixedRate{value: 5.0},
	}

	sheetSvc := services.NewSheetService(ts.sheets, cfg)
	rates := services.NewRateResolver(services.NewRateCache(nil, time.Minute), ts.rate)
	images := services.NewHTTPImageFetcher(time.Second, 1<<20)
	llm := answerFunc(func(ctx context.Context, prompt string) (string, error) {
		if ts.llmErr != nil {
			return "", ts.llmErr
		}
		return "A impressora UV Mimaki custa $1,200.00.", nil
	})

	ask := services.NewAskService(services.AskDeps{
		Sheets:    sheetSvc,
		LLM:       llm,
		Rates:     rates,
		Annotator: services.NewCurrencyAnnotator(cfg.Rate.CurrencyPrefix, cfg.Rate.Disclaimer),
		Scorer:    services.NewRelevanceScorer(nil, services.NewScoringPolicy(cfg)),
		Images:    images,
		SplitMode: cfg.Images.SplitMode,
		MaxTokens: cfg.SiliconFlow.MaxTokenLength,
	})

	r := chi.NewRouter()
	RegisterRoutes(r, &Deps{Ask: ask, Sheets: sheetSvc, Rates: rates, Images: images})
	ts.router = r
	return ts
}

func (ts *testServer) do(t *testing.T, method, target, body string) (*httptest.ResponseRecorder, models.APIResponse) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.router.ServeHTTP(rec, req)

	var resp models.APIResponse
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	}
	return rec, resp
}

func TestAskHandler_Success(t *testing.T) {
	ts := newTestServer(t)

	rec, resp := ts.do(t, http.MethodPost, "/api/ask", `{"question":"Quanto custa a impressora UV?"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, models.CodeSuccess, resp.Code)

	var data struct {
		Data models.AskResult `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Contains(t, data.Data.Answer, "$1,200.00 (R$ 6.000,00)")
	assert.Contains(t, data.Data.Answer, "(valores sem impostos)")
	require.Len(t, data.Data.References, 1)
	assert.Equal(t, 1, data.Data.References[0].Rank)
}

func TestAskHandler_MissingQuestion(t *testing.T) {
	ts := newTestServer(t)

	_, resp := ts.do(t, http.MethodPost, "/api/ask", `{"question":"   "}`)
	assert.Equal(t, models.CodeMissingParams, resp.Code)

	_, resp = ts.do(t, http.MethodPost, "/api/ask", `not json`)
	assert.Equal(t, models.CodeInvalidParams, resp.Code)

	_, resp = ts.do(t, http.MethodPost, "/api/ask", `{"question":"x","mode":"all"}`)
	assert.Equal(t, models.CodeInvalidParams, resp.Code)
}

func TestAskHandler_LLMFailure(t *testing.T) {
	ts := newTestServer(t)
	ts.llmErr = models.ErrLLMUnavailable

	_, resp := ts.do(t, http.MethodPost, "/api/ask", `{"question":"preço?"}`)

	assert.Equal(t, models.CodeThirdPartyAPIError, resp.Code)
}

func TestRateHandlers(t *testing.T) {
	ts := newTestServer(t)

	_, resp := ts.do(t, http.MethodGet, "/api/rate", "")
	assert.Equal(t, models.CodeSuccess, resp.Code)

	ts.rate.value = 5.5
	rec, resp := ts.do(t, http.MethodPost, "/api/rate/refresh", "")
	require.Equal(t, models.CodeSuccess, resp.Code)

	var data struct {
		Data models.ExchangeRate `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &data))
	assert.Equal(t, 5.5, data.Data.Value)
}

func TestRateHandler_Unavailable(t *testing.T) {
	ts := newTestServer(t)
	ts.rate.err = errors.New("down")

	_, resp := ts.do(t, http.MethodGet, "/api/rate", "")

	assert.Equal(t, models.CodeRateUnavailable, resp.Code)
}

func TestSheetHandlers(t *testing.T) {
	ts := newTestServer(t)

	_, resp := ts.do(t, http.MethodGet, "/api/sheets/erros", "")
	assert.Equal(t, models.CodeSuccess, resp.Code)

	_, resp = ts.do(t, http.MethodGet, "/api/sheets/nope", "")
	assert.Equal(t, models.CodeUnknownSheet, resp.Code)

	_, resp = ts.do(t, http.MethodPut, "/api/sheets/erros", `[{"Erro":"E99"}]`)
	assert.Equal(t, models.CodeSuccess, resp.Code)
	assert.Equal(t, "E99", ts.sheets["erros"][0].Text("Erro"))

	_, resp = ts.do(t, http.MethodPut, "/api/sheets/erros", `{"Erro":"E99"}`)
	assert.Equal(t, models.CodeInvalidParams, resp.Code)

	_, resp = ts.do(t, http.MethodPost, "/api/sheets/refresh", "")
	assert.Equal(t, models.CodeSuccess, resp.Code)
}

func TestImageHandler(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ok.png" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer upstream.Close()

	ts := newTestServer(t)
	ts.sheets["gerais"][0]["Imagem"] = upstream.URL + "/ok.png, " + upstream.URL + "/missing.png"

	rec, _ := ts.do(t, http.MethodGet, "/api/images?ref="+upstream.URL+"/ok.png", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.Equal(t, "png-bytes", rec.Body.String())

	_, resp := ts.do(t, http.MethodGet, "/api/images?ref="+upstream.URL+"/missing.png", "")
	assert.Equal(t, models.CodeImageNotFound, resp.Code)

	_, resp = ts.do(t, http.MethodGet, "/api/images", "")
	assert.Equal(t, models.CodeMissingParams, resp.Code)
}

func TestImageHandler_RejectsUnlistedRefs(t *testing.T) {
	var hits atomic.Int32
	internal := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("secret"))
	}))
	defer internal.Close()

	ts := newTestServer(t)

	for _, ref := range []string{
		internal.URL + "/latest/meta-data.png",
		"file:///etc/passwd",
		"gopher://127.0.0.1:6379/_INFO",
	} {
		rec, resp := ts.do(t, http.MethodGet, "/api/images?ref="+url.QueryEscape(ref), "")
		assert.Equal(t, models.CodeInvalidParams, resp.Code, ref)
		assert.NotContains(t, rec.Body.String(), "secret", ref)
	}
	assert.Zero(t, hits.Load())
}
