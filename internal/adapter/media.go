package adapter

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"ThreadHarvester/internal/model"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
)

// HrefKind は、要素上の href 属性の表現形式です。
type HrefKind int

const (
	HrefAbsent HrefKind = iota
	HrefSingle          // 属性が1つ
	HrefList            // 同名の属性が複数並んでいる
)

// Href は、HTML要素から読み取った href 属性です。
// ExtractMediaLinks には Normalize した文字列だけを渡します。
type Href struct {
	Kind   HrefKind
	Values []string
}

// HrefOf は、ノードの href 属性を読み取ります。
// パーサーは重複した属性をそのまま残すため、<a href="x" href="y"> は HrefList になります。
func HrefOf(n *html.Node) Href {
	if n == nil {
		return Href{Kind: HrefAbsent}
	}
	var values []string
	for _, attr := range n.Attr {
		if attr.Namespace == "" && strings.EqualFold(attr.Key, "href") {
			values = append(values, attr.Val)
		}
	}
	switch len(values) {
	case 0:
		return Href{Kind: HrefAbsent}
	case 1:
		return Href{Kind: HrefSingle, Values: values}
	default:
		return Href{Kind: HrefList, Values: values}
	}
}

// Normalize は、hrefを1つの文字列に正規化します。
// 単一の値、または要素が1つだけのリストのみ有効で、それ以外と空文字列は不在として扱います。
func (h Href) Normalize() (string, bool) {
	if h.Kind != HrefSingle && h.Kind != HrefList {
		return "", false
	}
	if len(h.Values) != 1 {
		return "", false
	}
	v := strings.TrimSpace(h.Values[0])
	return v, v != ""
}

// ExtractMediaLinks は、文書内の全てのアンカー要素から、拡張子が extensions の
// いずれかで終わる href を threadURL 基準の絶対URLに解決して返します。
// 結果は重複を除いて辞書順に並べます。
func ExtractMediaLinks(doc *goquery.Document, threadURL string, extensions []string) ([]model.MediaLink, error) {
	base, err := url.Parse(threadURL)
	if err != nil {
		return nil, fmt.Errorf("スレッドURLの解析に失敗しました (url=%s): %w", threadURL, err)
	}

	seen := make(map[string]bool)
	doc.Find("a").Each(func(_ int, s *goquery.Selection) {
		href, ok := HrefOf(s.Get(0)).Normalize()
		if !ok || !hasMediaExtension(href, extensions) {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		seen[base.ResolveReference(ref).String()] = true
	})

	links := make([]model.MediaLink, 0, len(seen))
	for link := range seen {
		links = append(links, model.MediaLink(link))
	}
	sort.Slice(links, func(i, j int) bool { return links[i] < links[j] })
	return links, nil
}

// hasMediaExtension は、小文字化したhrefが拡張子のいずれかで終わるかを返します。
// クエリ文字列は取り除かないため、"a.jpg?x=1" は ".jpg" に一致しません。
func hasMediaExtension(href string, extensions []string) bool {
	lower := strings.ToLower(href)
	for _, ext := range extensions {
		if strings.HasSuffix(lower, ext) {
			return true
		}
	}
	return false
}
