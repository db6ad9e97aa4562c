package collector

import (
	"context"
	"net/http"
	"time"
)

// Kind 来源的抓取方式，创建来源时确定一次并写入 sources.adapter_kind
type Kind string

const (
	KindFeed Kind = "feed"
	KindWWE  Kind = "html:wwe"
	KindAEW  Kind = "html:aew"
	KindPWI  Kind = "html:pwi"
)

const (
	defaultUserAgent   = "Mozilla/5.0 (compatible; WrestlingNewsBot/1.0; +https://github.com/LJTian/WrestlingNews)"
	maxBodyBytes       = 5 << 20 // 5MB
	defaultHTTPTimeout = 20 * time.Second
)

// Item 统一采集后的基础结构；缺少标题或链接的条目原样返回，由调用方过滤
type Item struct {
	Title        string
	URL          string
	Snippet      string
	PublishedAt  *time.Time
	ThumbnailURL string
	RawData      map[string]any
}

// SourceRef 采集所需的来源信息
type SourceRef struct {
	ID      uint
	Name    string
	RSSURL  string
	BaseURL string
	Kind    Kind
}

// Adapter 抽象每一种来源形态
type Adapter interface {
	Name() string
	Fetch(ctx context.Context, src SourceRef) ([]Item, error)
}

// Options 所有出站请求共用的超时与 UA
type Options struct {
	HTTPTimeout      time.Duration
	ThumbnailTimeout time.Duration
	UserAgent        string
}

func (o Options) withDefaults() Options {
	if o.HTTPTimeout <= 0 {
		o.HTTPTimeout = defaultHTTPTimeout
	}
	if o.ThumbnailTimeout <= 0 {
		o.ThumbnailTimeout = defaultThumbnailTimeout
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
	return o
}

func newRequest(ctx context.Context, url, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	return req, nil
}
