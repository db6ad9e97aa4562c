package storage

import (
	"time"

	"gorm.io/datatypes"
)

// Source 新闻来源。AdapterKind 在创建/初始化时确定一次（feed 或 html:<publisher>），采集时不再根据 URL 猜测
type Source struct {
	ID          uint    `gorm:"primaryKey" json:"id"`
	Name        string  `gorm:"size:200;uniqueIndex;not null" json:"name"`
	RSSURL      string  `gorm:"size:500" json:"rssUrl"`
	BaseURL     string  `gorm:"size:500" json:"baseUrl"`
	AdapterKind string  `gorm:"size:32" json:"adapterKind"`
	SourceScore float64 `gorm:"not null;default:0.5" json:"sourceScore"`
	IsActive    bool    `gorm:"not null;default:true;index" json:"isActive"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Article 聚合后的文章。canonical_url 与 dedup_fingerprint 均唯一，任一冲突即视为重复
type Article struct {
	ID               uint              `gorm:"primaryKey" json:"id"`
	Title            string            `gorm:"size:500;index" json:"title"`
	CanonicalURL     string            `gorm:"size:1000;uniqueIndex;not null" json:"canonicalUrl"`
	ContentSnippet   string            `gorm:"type:text" json:"contentSnippet"`
	ThumbnailURL     string            `gorm:"size:1000" json:"thumbnailUrl"`
	PublishedAt      *time.Time        `gorm:"index" json:"publishedAt"`
	DedupFingerprint string            `gorm:"size:64;uniqueIndex;not null" json:"dedupFingerprint"`
	Upvotes          int               `gorm:"not null;default:0" json:"upvotes"`
	Downvotes        int               `gorm:"not null;default:0" json:"downvotes"`
	CredibilityScore float64           `gorm:"not null;default:0;index" json:"credibilityScore"`
	CredibilityTag   string            `gorm:"size:20;index" json:"credibilityTag"`
	ExtraData        datatypes.JSONMap `json:"extraData"`

	CreatedAt time.Time `gorm:"index" json:"createdAt"`

	Sources []ArticleSource `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	Votes   []Vote          `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
}

// ArticleSource 文章与来源的关联，一篇文章可以被多个来源佐证
type ArticleSource struct {
	ID        uint    `gorm:"primaryKey" json:"id"`
	ArticleID uint    `gorm:"index;not null" json:"articleId"`
	SourceID  uint    `gorm:"index;not null" json:"sourceId"`
	Source    *Source `gorm:"constraint:OnDelete:CASCADE;" json:"-"`
	URL       string  `gorm:"size:1000" json:"url"`
}

// Vote 每个用户对每篇文章最多一条记录
type Vote struct {
	ID        uint   `gorm:"primaryKey" json:"id"`
	UserID    string `gorm:"size:64;not null;uniqueIndex:idx_vote_user_article" json:"userId"`
	ArticleID uint   `gorm:"not null;uniqueIndex:idx_vote_user_article;index" json:"articleId"`
	IsUpvote  bool   `gorm:"not null" json:"isUpvote"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}
