package adapter

import "regexp"

// arhivach のアーカイブ済みスレッド (https://arhivach.vc/thread/1222099/)。末尾のスラッシュは任意です。
var arhivachThreadPattern = regexp.MustCompile(`(?i)^https?://arhivach\.[a-z]{2,10}/thread/\d+/?$`)

// NewArhivachAdapter は、arhivach 用の SiteAdapter を返します。
func NewArhivachAdapter() SiteAdapter {
	return &imageboardAdapter{name: "arhivach", threadPattern: arhivachThreadPattern}
}
