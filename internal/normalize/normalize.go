package normalize

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// stopwords 在生成去重指纹前去掉的虚词
var stopwords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {},
	"in": {}, "on": {}, "for": {}, "with": {}, "from": {}, "by": {},
}

// Normalize 小写化，非 [a-z0-9] 及空白的字符一律替换为空格，去掉停用词后用单个空格拼接
func Normalize(title string) string {
	lower := strings.ToLower(title)

	var b strings.Builder
	b.Grow(len(lower))
	for _, r := range lower {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteByte(' ')
		}
	}

	tokens := strings.Fields(b.String())
	kept := tokens[:0]
	for _, t := range tokens {
		if _, ok := stopwords[t]; ok {
			continue
		}
		kept = append(kept, t)
	}
	return strings.Join(kept, " ")
}

// Fingerprint 返回规范化标题的 SHA-256 十六进制摘要，用于跨来源去重
func Fingerprint(title string) string {
	sum := sha256.Sum256([]byte(Normalize(title)))
	return hex.EncodeToString(sum[:])
}
