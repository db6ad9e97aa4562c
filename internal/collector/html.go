package collector

import (
	"context"
	"net/url"
	"strings"
	"unicode"

	"github.com/gocolly/colly/v2"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/LJTian/WrestlingNews/internal/logging"
)

// Publisher 没有 RSS 的官方站点的抓取规则
type Publisher struct {
	Name     string
	IndexURL string
	// Selectors 按顺序尝试，所有命中的链接合并后去重
	Selectors []string
	// NavKeywords 标题包含这些词（小写）视为导航/分页
	NavKeywords []string
	// GenericTitles 整个标题等于这些词时跳过
	GenericTitles []string
	// PathFragments 链接必须包含其中之一，为空时不过滤
	PathFragments []string
	// MinTitleLen 标题最少字符数，0 表示只要求非空
	MinTitleLen int
	// ImageSelector 文章页没有 og:image 时使用的图片选择器
	ImageSelector string
}

func WWEPublisher() Publisher {
	return Publisher{
		Name:     "wwe",
		IndexURL: "https://www.wwe.com/news",
		Selectors: []string{
			".news-card a, .article-card a, .story-card a",
			"main h1 a, main h2 a, main h3 a, .main-content h1 a, .main-content h2 a",
			".content a[href*='/news/'], .news-section a, .articles a",
			"article a:not([href*='page']):not([href*='#']):not([class*='nav']):not([class*='pagination'])",
		},
		NavKeywords:   []string{"page", "next", "previous", "last", "first", ">>", "<<"},
		PathFragments: []string{"/news/", "/articles/"},
		MinTitleLen:   10,
		ImageSelector: "main img, .content img, article img",
	}
}

func AEWPublisher() Publisher {
	return Publisher{
		Name:     "aew",
		IndexURL: "https://www.allelitewrestling.com/aew-news",
		Selectors: []string{
			".news-item a, .article-card a, .post-card a, .story-card a",
			"main h1 a, main h2 a, main h3 a, .main-content h1 a, .main-content h2 a, .main-content h3 a",
			".content-area a[href*='news'], .news-section a, .articles a, .posts a",
			".entry-title a, .post-title a, .headline a",
			"main a:not([class*='nav']):not([class*='menu']):not([href*='#']):not([class*='footer'])",
		},
		NavKeywords: []string{
			"partners", "press only", "contact", "about", "privacy", "terms",
			"menu", "home", "shop", "tickets", "watch", "subscribe", "login",
		},
		GenericTitles: []string{"read more", "learn more", "click here"},
		PathFragments: []string{"/news", "/post", "/article", "/story", "/aew-"},
		MinTitleLen:   10,
		ImageSelector: "main img, .content img, article img, .post-content img",
	}
}

func PWIPublisher() Publisher {
	return Publisher{
		Name:          "pwi",
		IndexURL:      "https://pwi-online.com",
		Selectors:     []string{"article a, h2 a, h3 a"},
		ImageSelector: "img",
	}
}

// HTMLAdapter 通用的 HTML 列表页抓取引擎，具体规则由 Publisher 决定
type HTMLAdapter struct {
	publisher Publisher
	opts      Options
	thumbs    *ThumbnailResolver
}

func NewHTMLAdapter(p Publisher, opts Options, thumbs *ThumbnailResolver) *HTMLAdapter {
	opts = opts.withDefaults()
	if thumbs == nil {
		thumbs = NewThumbnailResolver(opts)
	}
	return &HTMLAdapter{publisher: p, opts: opts, thumbs: thumbs}
}

func (h *HTMLAdapter) Name() string {
	return "html:" + h.publisher.Name
}

// Fetch 来源配置了 base_url 时以其为列表页，否则使用 Publisher 默认地址
func (h *HTMLAdapter) Fetch(ctx context.Context, src SourceRef) ([]Item, error) {
	indexURL := h.publisher.IndexURL
	if src.BaseURL != "" {
		indexURL = src.BaseURL
	}
	log := logging.Log.WithFields(logrus.Fields{"source": src.Name, "url": indexURL})
	log.Infof("scrape %s index...", h.publisher.Name)

	u, err := url.Parse(indexURL)
	if err != nil || u.Hostname() == "" {
		return nil, errors.Errorf("html: invalid index url %q", indexURL)
	}

	// 只访问列表页本身，不限制域名，列表页可以跳转到其他主机（如裸域与 www 之间）
	c := colly.NewCollector(
		colly.UserAgent(h.opts.UserAgent),
	)
	c.SetRequestTimeout(h.opts.HTTPTimeout)
	c.MaxBodySize = maxBodyBytes

	results := make([]Item, 0, 32)
	seen := make(map[string]struct{})

	// 每条启发式规则单独注册；某条规则没有命中时自然跳过
	for _, sel := range h.publisher.Selectors {
		c.OnHTML(sel, func(e *colly.HTMLElement) {
			title := collapseSpaces(e.Text)
			href := strings.TrimSpace(e.Attr("href"))
			if href == "" || !h.acceptTitle(title) {
				return
			}

			link := e.Request.AbsoluteURL(href)
			if link == "" {
				return
			}
			if _, ok := seen[link]; ok {
				return
			}
			seen[link] = struct{}{}

			if !h.acceptLink(link) {
				return
			}
			results = append(results, Item{
				Title: title,
				URL:   link,
				RawData: map[string]any{
					"publisher": h.publisher.Name,
					"selector":  sel,
				},
			})
		})
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if err := c.Visit(indexURL); err != nil {
		log.Warnf("scrape index failed: %v", err)
		return nil, errors.Wrapf(err, "html: visit %s", indexURL)
	}

	// 每篇文章页只打开一次取缩略图
	for i := range results {
		if ctx.Err() != nil {
			break
		}
		results[i].ThumbnailURL, _ = h.thumbs.Resolve(ctx, results[i].URL, h.publisher.ImageSelector)
	}

	if len(results) == 0 {
		log.Warnf("scrape %s got 0 items", h.publisher.Name)
	}
	return results, nil
}

func (h *HTMLAdapter) acceptTitle(title string) bool {
	if title == "" || len([]rune(title)) < h.publisher.MinTitleLen {
		return false
	}
	lower := strings.ToLower(title)
	for _, kw := range h.publisher.NavKeywords {
		if strings.Contains(lower, kw) {
			return false
		}
	}
	for _, g := range h.publisher.GenericTitles {
		if lower == g {
			return false
		}
	}
	// 纯数字标题是分页链接
	return strings.IndexFunc(title, func(r rune) bool { return !unicode.IsDigit(r) }) != -1
}

func (h *HTMLAdapter) acceptLink(link string) bool {
	if len(h.publisher.PathFragments) == 0 {
		return true
	}
	lower := strings.ToLower(link)
	for _, frag := range h.publisher.PathFragments {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
