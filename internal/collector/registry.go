package collector

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

var ErrUnsupportedSource = errors.New("unsupported source")

// publisherHosts 已知官方站点域名到抓取方式的映射，只在创建来源时使用
var publisherHosts = map[string]Kind{
	"wwe.com":               KindWWE,
	"allelitewrestling.com": KindAEW,
	"pwi-online.com":        KindPWI,
}

// Registry 按 adapter_kind 查找采集器
type Registry struct {
	adapters map[Kind]Adapter
}

// NewRegistry 注册 feed 与三个官方站点采集器，共用一个缩略图解析器
func NewRegistry(opts Options) *Registry {
	thumbs := NewThumbnailResolver(opts)
	r := &Registry{adapters: make(map[Kind]Adapter)}
	r.Register(KindFeed, NewFeedAdapter(opts, thumbs))
	r.Register(KindWWE, NewHTMLAdapter(WWEPublisher(), opts, thumbs))
	r.Register(KindAEW, NewHTMLAdapter(AEWPublisher(), opts, thumbs))
	r.Register(KindPWI, NewHTMLAdapter(PWIPublisher(), opts, thumbs))
	return r
}

// Register 覆盖同 kind 的已有采集器，测试中用来替换为假实现
func (r *Registry) Register(kind Kind, a Adapter) {
	r.adapters[kind] = a
}

func (r *Registry) Resolve(kind Kind) (Adapter, error) {
	a, ok := r.adapters[kind]
	if !ok {
		return nil, errors.Wrapf(ErrUnsupportedSource, "adapter kind %q", kind)
	}
	return a, nil
}

// KindFor 根据来源配置确定抓取方式：有 rss_url 时总是 feed，否则按 base_url 域名匹配官方站点
func KindFor(rssURL, baseURL string) (Kind, error) {
	if strings.TrimSpace(rssURL) != "" {
		return KindFeed, nil
	}
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil || u.Hostname() == "" {
		return "", errors.Wrapf(ErrUnsupportedSource, "base url %q", baseURL)
	}
	host := strings.ToLower(u.Hostname())
	for domain, kind := range publisherHosts {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return kind, nil
		}
	}
	return "", errors.Wrapf(ErrUnsupportedSource, "no scraper for host %s", host)
}
