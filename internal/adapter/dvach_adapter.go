package adapter

import "regexp"

// 2ch の板スレッド (https://2ch.hk/b/res/123456.html)
var dvachThreadPattern = regexp.MustCompile(`(?i)^https?://2ch\.[a-z]{2,10}/[a-z0-9_]+/res/\d+\.html$`)

// NewDvachAdapter は、2ch 用の SiteAdapter を返します。
func NewDvachAdapter() SiteAdapter {
	return &imageboardAdapter{name: "2ch", threadPattern: dvachThreadPattern}
}
