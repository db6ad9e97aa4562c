package collector

import (
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/mmcdole/gofeed"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/LJTian/WrestlingNews/internal/logging"
)

// FeedAdapter 通用 RSS/Atom 采集，适用于任何配置了 rss_url 的来源
type FeedAdapter struct {
	client    *http.Client
	userAgent string
	thumbs    *ThumbnailResolver
}

func NewFeedAdapter(opts Options, thumbs *ThumbnailResolver) *FeedAdapter {
	opts = opts.withDefaults()
	if thumbs == nil {
		thumbs = NewThumbnailResolver(opts)
	}
	return &FeedAdapter{
		client:    &http.Client{Timeout: opts.HTTPTimeout},
		userAgent: opts.UserAgent,
		thumbs:    thumbs,
	}
}

func (f *FeedAdapter) Name() string {
	return string(KindFeed)
}

func (f *FeedAdapter) Fetch(ctx context.Context, src SourceRef) ([]Item, error) {
	if src.RSSURL == "" {
		return nil, errors.Errorf("source %q has no feed url", src.Name)
	}
	log := logging.Log.WithFields(logrus.Fields{"source": src.Name, "url": src.RSSURL})
	log.Info("fetch feed...")

	req, err := newRequest(ctx, src.RSSURL, f.userAgent)
	if err != nil {
		return nil, errors.Wrap(err, "feed: build request")
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "feed: fetch")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, errors.Errorf("feed: unexpected status %d", resp.StatusCode)
	}

	feed, err := gofeed.NewParser().Parse(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, errors.Wrap(err, "feed: parse")
	}

	items := make([]Item, 0, len(feed.Items))
	for _, it := range feed.Items {
		if it == nil {
			continue
		}
		if ctx.Err() != nil {
			break
		}
		item := Item{
			Title:        strings.TrimSpace(it.Title),
			URL:          strings.TrimSpace(it.Link),
			Snippet:      firstNonEmpty(it.Description, it.Content),
			PublishedAt:  publishedAt(it),
			ThumbnailURL: feedThumbnail(it),
			RawData:      feedRawData(it),
		}
		// feed 里没有图片时再去文章页找
		if item.ThumbnailURL == "" && item.URL != "" {
			item.ThumbnailURL, _ = f.thumbs.Resolve(ctx, item.URL, "")
		}
		items = append(items, item)
	}

	if len(items) == 0 {
		log.Warn("feed got 0 items")
	}
	return items, nil
}

// publishedAt 依次尝试 published、updated 以及宽松解析原始字符串，都失败时返回 nil
func publishedAt(it *gofeed.Item) *time.Time {
	if it.PublishedParsed != nil {
		t := it.PublishedParsed.UTC()
		return &t
	}
	if it.UpdatedParsed != nil {
		t := it.UpdatedParsed.UTC()
		return &t
	}
	for _, raw := range []string{it.Published, it.Updated} {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		if t, err := dateparse.ParseAny(raw); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}

func feedThumbnail(it *gofeed.Item) string {
	if it.Image != nil && strings.TrimSpace(it.Image.URL) != "" {
		return strings.TrimSpace(it.Image.URL)
	}
	// media:content / media:thumbnail
	if media, ok := it.Extensions["media"]; ok {
		for _, name := range []string{"content", "thumbnail"} {
			for _, e := range media[name] {
				if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
					return u
				}
			}
		}
		// media:group 内嵌的 media:content
		for _, g := range media["group"] {
			for _, e := range g.Children["content"] {
				if u := strings.TrimSpace(e.Attrs["url"]); u != "" {
					return u
				}
			}
		}
	}
	for _, enc := range it.Enclosures {
		if enc != nil && strings.HasPrefix(enc.Type, "image/") && enc.URL != "" {
			return enc.URL
		}
	}
	return ""
}

func feedRawData(it *gofeed.Item) map[string]any {
	raw := map[string]any{}
	if it.GUID != "" {
		raw["guid"] = it.GUID
	}
	if len(it.Authors) > 0 && it.Authors[0] != nil && it.Authors[0].Name != "" {
		raw["author"] = it.Authors[0].Name
	}
	if len(it.Categories) > 0 {
		raw["categories"] = it.Categories
	}
	return raw
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
