package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"plasprint_ai/models"
)

func TestResolveImageRef(t *testing.T) {
	const id = "1AbCdEfGhIjKlMnOpQrStUvWxYz_-09"
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"drive file link", "https://drive.google.com/file/d/ABC123/view", "https://drive.google.com/uc?export=view&id=ABC123"},
		{"drive file link with query", "https://drive.google.com/file/d/ABC123/view?usp=sharing", "https://drive.google.com/uc?export=view&id=ABC123"},
		{"drive open link", "https://drive.google.com/open?id=XYZ789", "https://drive.google.com/uc?export=view&id=XYZ789"},
		{"drive uc link", "https://drive.google.com/uc?id=XYZ789&export=download", "https://drive.google.com/uc?export=view&id=XYZ789"},
		{"docs host", "https://docs.google.com/file/d/DOC42/edit", "https://drive.google.com/uc?export=view&id=DOC42"},
		{"canonical passthrough", "https://drive.google.com/uc?export=view&id=ABC123", "https://drive.google.com/uc?export=view&id=ABC123"},
		{"bare id", id, "https://drive.google.com/uc?export=view&id=" + id},
		{"literal url", "https://cdn.example.com/img/cabecote.png", "https://cdn.example.com/img/cabecote.png"},
		{"trimmed", "  https://cdn.example.com/a.jpg ", "https://cdn.example.com/a.jpg"},
		{"empty", "   ", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ResolveImageRef(tc.in))
		})
	}
}

func TestSplitImageRefs(t *testing.T) {
	raw := "https://a.example/1.png, https://a.example/2.png;https://a.example/1.png\nhttps://a.example/3.png"

	assert.Equal(t, []string{
		"https://a.example/1.png",
		"https://a.example/2.png",
		"https://a.example/3.png",
	}, SplitImageRefs(raw, SplitDelimited))

	assert.Equal(t, []string{"a.png", "b.png", "c.png"}, SplitImageRefs("a.png  b.png\tc.png\n", SplitWhitespace))
	assert.Empty(t, SplitImageRefs(" , ;\n", SplitDelimited))
}

func TestResolveImageSources(t *testing.T) {
	sources := ResolveImageSources([]string{"https://drive.google.com/file/d/ABC123/view, https://x.example/y.png"}, SplitDelimited)

	require.Len(t, sources, 2)
	assert.Equal(t, "https://drive.google.com/uc?export=view&id=ABC123", sources[0].URL)
	assert.Equal(t, "https://drive.google.com/file/d/ABC123/view", sources[0].Ref)
	assert.Equal(t, "https://x.example/y.png", sources[1].URL)
}

func TestHTTPImageFetcher_FetchAllReportsPerImage(t *testing.T) {
	png := []byte("\x89PNG\r\n\x1a\nfake")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.png":
			w.Header().Set("Content-Type", "image/png")
			w.Write(png)
		case "/login":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write([]byte("<html>login</html>"))
		case "/big.jpg":
			w.Header().Set("Content-Type", "image/jpeg")
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	f := NewHTTPImageFetcher(time.Second, 32)
	out := f.FetchAll(context.Background(), []models.ImageSource{
		{Ref: "ok", URL: server.URL + "/ok.png"},
		{Ref: "missing", URL: server.URL + "/missing.png"},
		{Ref: "html", URL: server.URL + "/login"},
		{Ref: "big", URL: server.URL + "/big.jpg"},
	})

	require.Len(t, out, 4)
	assert.Empty(t, out[0].Error)
	assert.Equal(t, "image/png", out[0].ContentType)
	assert.True(t, strings.HasPrefix(out[0].DataURI, "data:image/png;base64,"))

	assert.Contains(t, out[1].Error, "status 404")
	assert.Empty(t, out[1].DataURI)
	assert.Contains(t, out[2].Error, "unexpected content type")
	assert.Contains(t, out[3].Error, "exceeds")
}

func TestHTTPImageFetcher_FetchWrapsNotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	_, _, err := NewHTTPImageFetcher(time.Second, 1024).Fetch(context.Background(), server.URL)
	assert.ErrorIs(t, err, models.ErrImageNotFound)
}

func TestCheckImageURL(t *testing.T) {
	assert.NoError(t, CheckImageURL("https://x.example/a.png"))
	assert.NoError(t, CheckImageURL("http://x.example/a.png"))
	for _, bad := range []string{"file:///etc/passwd", "gopher://x.example", "/relative.png", "https://"} {
		assert.ErrorIs(t, CheckImageURL(bad), models.ErrImageRefRejected, bad)
	}

	_, _, err := NewHTTPImageFetcher(time.Second, 1024).Fetch(context.Background(), "file:///etc/passwd")
	assert.ErrorIs(t, err, models.ErrImageRefRejected)
}

func TestSheetService_AllowImage(t *testing.T) {
	cfg := sheetConfig(t)
	src := newMemorySheets(map[string][]models.Record{
		"gerais": {{"Informações": "Impressora UV", "Imagem": "https://x.example/a.png; https://x.example/b.png"}},
	})
	s := NewSheetService(src, cfg)
	ctx := context.Background()

	assert.NoError(t, s.AllowImage(ctx, "https://x.example/b.png"))
	assert.NoError(t, s.AllowImage(ctx, ResolveImageRef("https://drive.google.com/file/d/1AbCdEfGhIjKlMnOpQrStUvWxYz/view")))
	assert.ErrorIs(t, s.AllowImage(ctx, "http://169.254.169.254/latest/meta-data"), models.ErrImageRefRejected)
	assert.ErrorIs(t, s.AllowImage(ctx, "file:///etc/passwd"), models.ErrImageRefRejected)
}
