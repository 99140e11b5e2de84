package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"plasprint_ai/logger"
	"plasprint_ai/models"
	"plasprint_ai/utils"
)

const (
	// SplitWhitespace 按任意空白切分图片单元格
	SplitWhitespace = "whitespace"
	// SplitDelimited 按逗号、分号、换行切分
	SplitDelimited = "delimited"

	driveViewPrefix = "https://drive.google.com/uc?export=view&id="
)

var (
	driveFilePath = regexp.MustCompile(`/file/d/([A-Za-z0-9_-]+)`)
	driveBareID   = regexp.MustCompile(`^[A-Za-z0-9_-]{25,}$`)
)

// SplitImageRefs 把单元格内容切分为图片引用，去掉空项与重复项
func SplitImageRefs(raw string, mode string) []string {
	var parts []string
	switch mode {
	case SplitWhitespace:
		parts = strings.Fields(raw)
	default:
		parts = strings.FieldsFunc(raw, func(r rune) bool {
			return r == ',' || r == ';' || r == '\n' || r == '\r'
		})
	}
	return utils.DeduplicateSlice(parts)
}

// ResolveImageRef 把一个图片引用转换为可直接获取的地址。
// Google Drive 分享链接统一转换为 uc?export=view 形式，其他内容按原样视为 URL。
func ResolveImageRef(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return ""
	}
	if strings.HasPrefix(ref, driveViewPrefix) {
		return ref
	}
	if id := driveFileID(ref); id != "" {
		return driveViewPrefix + id
	}
	if driveBareID.MatchString(ref) {
		return driveViewPrefix + ref
	}
	return ref
}

func driveFileID(ref string) string {
	u, err := url.Parse(ref)
	if err != nil || u.Host == "" {
		return ""
	}
	host := strings.ToLower(u.Host)
	if host != "drive.google.com" && host != "docs.google.com" {
		return ""
	}
	if m := driveFilePath.FindStringSubmatch(u.Path); m != nil {
		return m[1]
	}
	return u.Query().Get("id")
}

// CheckImageURL 只接受带主机名的 http/https 地址
func CheckImageURL(imageURL string) error {
	u, err := url.Parse(imageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: %s", models.ErrImageRefRejected, imageURL)
	}
	return nil
}

// IsDriveImageURL 判断地址是否为 ResolveImageRef 生成的 Drive 地址
func IsDriveImageURL(imageURL string) bool {
	return strings.HasPrefix(imageURL, driveViewPrefix)
}

// ResolveImageSources 切分并解析一个单元格中的全部图片引用
func ResolveImageSources(refs []string, mode string) []models.ImageSource {
	out := make([]models.ImageSource, 0)
	for _, raw := range refs {
		for _, ref := range SplitImageRefs(raw, mode) {
			out = append(out, models.ImageSource{Ref: ref, URL: ResolveImageRef(ref)})
		}
	}
	return out
}

// HTTPImageFetcher 通过 HTTP 下载图片
type HTTPImageFetcher struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPImageFetcher(timeout time.Duration, maxBytes int64) *HTTPImageFetcher {
	return &HTTPImageFetcher{
		client:   &http.Client{Timeout: timeout},
		maxBytes: maxBytes,
	}
}

// Fetch 下载单张图片，返回内容与 Content-Type
func (f *HTTPImageFetcher) Fetch(ctx context.Context, imageURL string) ([]byte, string, error) {
	if err := CheckImageURL(imageURL); err != nil {
		return nil, "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrImageNotFound, err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrImageNotFound, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: status %d", models.ErrImageNotFound, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if !strings.HasPrefix(mediaType, "image/") {
		// Drive 对非公开文件返回 HTML 登录页
		return nil, "", fmt.Errorf("%w: unexpected content type %q", models.ErrImageNotFound, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("read image: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, "", fmt.Errorf("image exceeds %d bytes", f.maxBytes)
	}
	return data, mediaType, nil
}

// FetchAll 逐个下载图片，失败只写入对应项的 Error
func (f *HTTPImageFetcher) FetchAll(ctx context.Context, sources []models.ImageSource) []models.ImageSource {
	out := make([]models.ImageSource, len(sources))
	for i, src := range sources {
		out[i] = src
		data, contentType, err := f.Fetch(ctx, src.URL)
		if err != nil {
			logger.Warn("图片下载失败", "ref", src.Ref, "url", src.URL, "error", err)
			out[i].Error = err.Error()
			continue
		}
		out[i].ContentType = contentType
		out[i].DataURI = "data:" + contentType + ";base64," + base64.StdEncoding.EncodeToString(data)
	}
	return out
}
