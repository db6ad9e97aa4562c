package collector

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/LJTian/WrestlingNews/internal/logging"
)

const defaultThumbnailTimeout = 8 * time.Second

// Outcome 缩略图解析结果
type Outcome string

const (
	OutcomeFound    Outcome = "found"
	OutcomeNotFound Outcome = "not_found"
	OutcomeTimeout  Outcome = "timeout"
	OutcomeFailed   Outcome = "failed"
)

// ThumbnailResolver 打开文章页一次，读取 og:image / twitter:image，找不到时取正文第一张图
type ThumbnailResolver struct {
	client    *http.Client
	userAgent string
}

func NewThumbnailResolver(opts Options) *ThumbnailResolver {
	opts = opts.withDefaults()
	return &ThumbnailResolver{
		client:    &http.Client{Timeout: opts.ThumbnailTimeout},
		userAgent: opts.UserAgent,
	}
}

// Resolve 失败只记录日志，不返回错误；imgSelector 为空时使用 "img"
func (r *ThumbnailResolver) Resolve(ctx context.Context, pageURL, imgSelector string) (string, Outcome) {
	thumb, outcome, err := r.resolve(ctx, pageURL, imgSelector)
	entry := logging.Log.WithFields(logrus.Fields{"url": pageURL, "outcome": outcome})
	switch outcome {
	case OutcomeFound:
		entry.Debug("thumbnail resolved")
	case OutcomeNotFound:
		entry.Debug("thumbnail not found")
	default:
		entry.Warnf("thumbnail fetch failed: %v", err)
	}
	return thumb, outcome
}

func (r *ThumbnailResolver) resolve(ctx context.Context, pageURL, imgSelector string) (string, Outcome, error) {
	if pageURL == "" {
		return "", OutcomeNotFound, nil
	}
	if imgSelector == "" {
		imgSelector = "img"
	}

	req, err := newRequest(ctx, pageURL, r.userAgent)
	if err != nil {
		return "", OutcomeFailed, err
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return "", classify(err), err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", OutcomeFailed, errors.Errorf("unexpected status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", classify(err), err
	}

	base := resp.Request.URL
	for _, sel := range []string{
		`meta[property="og:image"]`,
		`meta[name="og:image"]`,
		`meta[name="twitter:image"]`,
		`meta[property="twitter:image"]`,
	} {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return absolute(base, v), OutcomeFound, nil
		}
	}

	if src, ok := doc.Find(imgSelector).First().Attr("src"); ok && strings.TrimSpace(src) != "" {
		return absolute(base, src), OutcomeFound, nil
	}
	return "", OutcomeNotFound, nil
}

func classify(err error) Outcome {
	if errors.Is(err, context.DeadlineExceeded) {
		return OutcomeTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return OutcomeTimeout
	}
	return OutcomeFailed
}

// absolute 将相对地址转为绝对地址，无法解析时原样返回
func absolute(base *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	u, err := url.Parse(ref)
	if err != nil || base == nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
