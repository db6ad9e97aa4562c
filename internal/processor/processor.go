package processor

import (
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/pkg/errors"

	"github.com/LJTian/WrestlingNews/internal/collector"
	"github.com/LJTian/WrestlingNews/internal/normalize"
)

const (
	// 摘要只保留一段介绍文案，按 rune 截断
	snippetMaxRunes = 500
	titleMaxRunes   = 500
	urlMaxLen       = 1000
)

var (
	ErrMissingTitle = errors.New("item has no title")
	ErrMissingURL   = errors.New("item has no url")
	ErrInvalidURL   = errors.New("item url is not an absolute http(s) url")
	// ErrUnindexableTitle 标题去掉标点与停用词后为空，无法生成有区分度的指纹
	ErrUnindexableTitle = errors.New("item title has no indexable words")
)

// Prepared 是写入存储层前的统一结构
type Prepared struct {
	Title        string
	URL          string
	Snippet      string
	ThumbnailURL string
	PublishedAt  *time.Time
	Fingerprint  string
	RawData      map[string]any
}

// Prepare 清洗并校验一条采集结果；缺少标题或链接时返回错误，调用方跳过该条
func Prepare(it collector.Item) (Prepared, error) {
	title := collapseSpaces(it.Title)
	if title == "" {
		return Prepared{}, ErrMissingTitle
	}
	link := strings.TrimSpace(it.URL)
	if link == "" {
		return Prepared{}, ErrMissingURL
	}
	if !validURL(link) {
		return Prepared{}, errors.Wrap(ErrInvalidURL, link)
	}

	if normalize.Normalize(title) == "" {
		return Prepared{}, errors.Wrap(ErrUnindexableTitle, title)
	}

	out := Prepared{
		Title:       truncateRunes(title, titleMaxRunes),
		URL:         link,
		Snippet:     truncateRunes(stripHTML(it.Snippet), snippetMaxRunes),
		Fingerprint: normalize.Fingerprint(title),
		RawData:     it.RawData,
	}
	if thumb := strings.TrimSpace(it.ThumbnailURL); validURL(thumb) {
		out.ThumbnailURL = thumb
	}
	if it.PublishedAt != nil && !it.PublishedAt.IsZero() {
		t := it.PublishedAt.UTC()
		out.PublishedAt = &t
	}
	return out, nil
}

func validURL(s string) bool {
	if s == "" || len(s) > urlMaxLen {
		return false
	}
	u, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// stripHTML 去掉 feed 摘要里的标签，只保留文本
func stripHTML(s string) string {
	s = strings.TrimSpace(s)
	if s == "" || !strings.ContainsAny(s, "<&") {
		return collapseSpaces(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return collapseSpaces(s)
	}
	return collapseSpaces(doc.Text())
}

// truncateRunes 按 rune 截断，超出时追加省略号
func truncateRunes(s string, limit int) string {
	if limit <= 0 {
		return ""
	}
	rs := []rune(s)
	if len(rs) <= limit {
		return s
	}
	return string(rs[:limit]) + "…"
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
