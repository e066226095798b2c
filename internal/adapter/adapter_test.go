package adapter

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"ThreadHarvester/internal/model"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/html"
	"golang.org/x/text/encoding/charmap"
)

const testThreadURL = "https://2ch.hk/b/res/111.html"

func loadTestDocument(t *testing.T) *goquery.Document {
	t.Helper()
	body, err := os.ReadFile(filepath.Join("testdata", "dvach_thread.html"))
	require.NoError(t, err, "テスト用のHTMLファイルの読み込みに失敗しました")
	doc, err := NewDvachAdapter().ParseThreadHTML(body, "text/html; charset=utf-8")
	require.NoError(t, err)
	return doc
}

// --- URL検証 ---

func TestValidateThreadURL_Accepts(t *testing.T) {
	cases := map[string]string{
		"https://2ch.hk/b/res/322069228.html":  "2ch",
		"http://2ch.life/vg_old/res/1.html":    "2ch",
		"HTTPS://2CH.HK/B/RES/322069228.HTML":  "2ch",
		"https://arhivach.vc/thread/1222099/":  "arhivach",
		"https://arhivach.top/thread/1222099":  "arhivach",
		"http://ARHIVACH.xyz/THREAD/42/":       "arhivach",
		"https://2ch.abcdefghij/b/res/12.html": "2ch",
	}
	for raw, site := range cases {
		u, err := ValidateThreadURL(raw)
		if assert.NoError(t, err, raw) {
			assert.Equal(t, raw, u.String())
			assert.Equal(t, site, u.Site(), raw)
		}
	}
}

func TestValidateThreadURL_Rejects(t *testing.T) {
	cases := []string{
		"not-a-url",
		"2ch.hk/b/res/111.html",                   // スキームなし
		"ftp://2ch.hk/b/res/111.html",             // 不正なスキーム
		"https://2ch.hk/b/res/111.html?page=2",    // クエリ
		"https://2ch.hk/b/res/111.html#q",         // フラグメント
		"https://2ch.hk/b/res/abc.html",           // 数字以外のID
		"https://2ch.hk/b/extra/res/111.html",     // 余分なパス
		"https://2ch.hk/b/res/111.html/extra",     // 余分なパス
		"https://2ch.h/b/res/111.html",            // TLDが短い
		"https://2ch.abcdefghijk/b/res/111.html",  // TLDが長い
		"https://2ch.hk/b-c/res/111.html",         // 板名に使えない文字
		"https://arhivach.vc/thread/12/34/",       // 余分なパス
		"https://arhivach.vc/thread/abc/",         // 数字以外のID
		"https://arhivach.vc/thread/1222099//",    // スラッシュ重複
		"https://boards.example.com/b/res/1.html", // 未対応サイト
		" https://2ch.hk/b/res/111.html",          // 前置空白
		"https://arhivach.vc/thread/1222099/?x=1", // クエリ
	}
	for _, raw := range cases {
		_, err := ValidateThreadURL(raw)
		assert.ErrorIs(t, err, ErrInvalidThreadURL, raw)
	}
}

func TestValidateThreadURLs_DropsInvalidAndDuplicates(t *testing.T) {
	valid, rejected := ValidateThreadURLs([]string{
		"https://2ch.hk/b/res/111.html",
		"not-a-url",
		"https://arhivach.vc/thread/5/",
		"https://2ch.hk/b/res/111.html",
	})

	require.Len(t, valid, 2)
	assert.Equal(t, "https://2ch.hk/b/res/111.html", valid[0].String())
	assert.Equal(t, "https://arhivach.vc/thread/5/", valid[1].String())
	require.Len(t, rejected, 1)
	assert.Equal(t, "not-a-url", rejected[0].Raw)
	assert.True(t, errors.Is(rejected[0].Err, ErrInvalidThreadURL))
}

func TestValidateThreadURLs_CaseAndTrailingSlashVariantsAreDuplicates(t *testing.T) {
	valid, rejected := ValidateThreadURLs([]string{
		"https://2ch.hk/b/res/111.html",
		"https://2CH.hk/b/res/111.html",
		"HTTPS://2ch.hk/B/RES/111.HTML",
		"https://arhivach.vc/thread/111/",
		"https://arhivach.vc/thread/111",
		"https://2ch.hk/vg/res/111.html",
	})

	assert.Empty(t, rejected)
	require.Len(t, valid, 3)
	assert.Equal(t, "https://2ch.hk/b/res/111.html", valid[0].String())
	assert.Equal(t, "https://arhivach.vc/thread/111/", valid[1].String())
	assert.Equal(t, "https://2ch.hk/vg/res/111.html", valid[2].String())
}

func TestGetAdapter(t *testing.T) {
	a, err := GetAdapter("arhivach")
	require.NoError(t, err)
	assert.Equal(t, "arhivach", a.Name())

	_, err = GetAdapter("4chan")
	assert.Error(t, err)
}

// --- スレッド番号 ---

func TestExtractThreadID(t *testing.T) {
	cases := map[string]string{
		"https://2ch.hk/b/res/123.html":        "123",
		"https://2ch.hk/b/res/123.html#q":      "123",
		"https://2ch.hk/b/res/123.HTML":        "123",
		"https://2ch.hk/b/res/123.html#456":    "123",
		"https://arhivach.vc/thread/1222099/":  "1222099",
		"https://arhivach.vc/thread/1222099":   "1222099",
		"https://arhivach.vc/thread/1222099/#": "1222099",
	}
	for in, want := range cases {
		got, err := ExtractThreadID(in)
		if assert.NoError(t, err, in) {
			assert.Equal(t, want, got, in)
		}
	}

	_, err := ExtractThreadID("https://2ch.hk/b/res/")
	assert.ErrorIs(t, err, ErrNoThreadID)
}

func TestThreadID_ConsistentForSameThread(t *testing.T) {
	a := NewDvachAdapter()
	u, err := ValidateThreadURL("https://2ch.hk/b/res/123.html")
	require.NoError(t, err)

	first, err := a.ThreadID(u)
	require.NoError(t, err)
	second, err := a.ThreadID(u)
	require.NoError(t, err)
	withFragment, err := ExtractThreadID(u.String() + "#q")
	require.NoError(t, err)

	assert.Equal(t, "123", first)
	assert.Equal(t, first, second)
	assert.Equal(t, first, withFragment)
}

// --- メディア抽出 ---

func TestExtractMediaLinks_ImageFilter(t *testing.T) {
	// Arrange
	doc := loadTestDocument(t)

	// Act
	links, err := ExtractMediaLinks(doc, testThreadURL, model.MediaImage.Extensions())

	// Assert
	require.NoError(t, err)
	assert.Equal(t, []model.MediaLink{
		"https://2ch.hk/b/src/111/17000000000010.jpg",
		"https://2ch.hk/b/src/111/17000000000011.PNG",
		"https://2ch.hk/b/src/111/17000000000014.gif",
		"https://example.org/other/cat.jpeg",
	}, links)
}

func TestExtractMediaLinks_VideoFilter(t *testing.T) {
	doc := loadTestDocument(t)

	links, err := ExtractMediaLinks(doc, testThreadURL, model.MediaVideo.Extensions())

	require.NoError(t, err)
	assert.Equal(t, []model.MediaLink{
		"https://2ch.hk/b/src/111/17000000000012.webm",
		"https://2ch.hk/b/src/111/17000000000013.mp4",
	}, links)
}

func TestExtractMediaLinks_BothFilterNeverIncludesOtherFiles(t *testing.T) {
	doc := loadTestDocument(t)

	links, err := ExtractMediaLinks(doc, testThreadURL, model.MediaBoth.Extensions())

	require.NoError(t, err)
	assert.Len(t, links, 6)
	for _, l := range links {
		assert.False(t, strings.HasSuffix(string(l), ".txt"), l)
		assert.NotContains(t, string(l), "?download=1")
	}
}

func TestExtractMediaLinks_FilterCorrectness(t *testing.T) {
	doc, err := NewDocumentFromBytes([]byte(`<a href="a.jpg"></a><a href="b.mp4"></a><a href="c.txt"></a>`), "")
	require.NoError(t, err)

	image, err := ExtractMediaLinks(doc, "https://site.tld/b/res/1.html", model.MediaImage.Extensions())
	require.NoError(t, err)
	assert.Equal(t, []model.MediaLink{"https://site.tld/b/res/a.jpg"}, image)

	both, err := ExtractMediaLinks(doc, "https://site.tld/b/res/1.html", model.MediaBoth.Extensions())
	require.NoError(t, err)
	assert.Equal(t, []model.MediaLink{"https://site.tld/b/res/a.jpg", "https://site.tld/b/res/b.mp4"}, both)
}

func TestExtractMediaLinks_RelativeResolution(t *testing.T) {
	doc, err := NewDocumentFromBytes([]byte(`
		<a href="/img/x.png"></a>
		<a href="//cdn.site.tld/y.png"></a>
		<a href="#z.png"></a>
		<a href="sub/w.png"></a>`), "")
	require.NoError(t, err)

	links, err := ExtractMediaLinks(doc, "https://site.tld/b/res/1.html", []string{".png"})

	require.NoError(t, err)
	assert.ElementsMatch(t, []model.MediaLink{
		"https://site.tld/img/x.png",
		"https://cdn.site.tld/y.png",
		"https://site.tld/b/res/1.html#z.png",
		"https://site.tld/b/res/sub/w.png",
	}, links)
}

func TestExtractMediaLinks_InvalidBaseURL(t *testing.T) {
	doc, err := NewDocumentFromBytes([]byte(`<a href="a.jpg"></a>`), "")
	require.NoError(t, err)

	_, err = ExtractMediaLinks(doc, "://bad", []string{".jpg"})
	assert.Error(t, err)
}

// --- href の表現形式 ---

func TestHref_Normalize(t *testing.T) {
	cases := []struct {
		name  string
		href  Href
		want  string
		valid bool
	}{
		{"absent", Href{Kind: HrefAbsent}, "", false},
		{"single", Href{Kind: HrefSingle, Values: []string{"a.jpg"}}, "a.jpg", true},
		{"single empty", Href{Kind: HrefSingle, Values: []string{"  "}}, "", false},
		{"list of one", Href{Kind: HrefList, Values: []string{"b.jpg"}}, "b.jpg", true},
		{"list of two", Href{Kind: HrefList, Values: []string{"a.jpg", "b.jpg"}}, "", false},
		{"empty list", Href{Kind: HrefList}, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := tc.href.Normalize()
			assert.Equal(t, tc.valid, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHrefOf(t *testing.T) {
	assert.Equal(t, HrefAbsent, HrefOf(nil).Kind)
	assert.Equal(t, HrefAbsent, HrefOf(&html.Node{Type: html.ElementNode, Data: "a"}).Kind)

	single := HrefOf(&html.Node{Type: html.ElementNode, Data: "a", Attr: []html.Attribute{{Key: "href", Val: "a.jpg"}}})
	assert.Equal(t, HrefSingle, single.Kind)

	list := HrefOf(&html.Node{Type: html.ElementNode, Data: "a", Attr: []html.Attribute{
		{Key: "href", Val: "a.jpg"},
		{Key: "class", Val: "x"},
		{Key: "href", Val: "b.jpg"},
	}})
	assert.Equal(t, HrefList, list.Kind)
	_, ok := list.Normalize()
	assert.False(t, ok)
}

func TestHrefOf_ParsedDuplicateHrefIsList(t *testing.T) {
	// Arrange
	doc, err := NewDocumentFromBytes([]byte(`<a href="a.jpg" href="b.jpg">x</a><a href="c.jpg">y</a>`), "")
	require.NoError(t, err)

	// Act
	href := HrefOf(doc.Find("a").Get(0))
	links, err := ExtractMediaLinks(doc, "https://site.tld/b/res/1.html", []string{".jpg"})

	// Assert
	assert.Equal(t, HrefList, href.Kind)
	assert.Equal(t, []string{"a.jpg", "b.jpg"}, href.Values)
	require.NoError(t, err)
	assert.Equal(t, []model.MediaLink{"https://site.tld/b/res/c.jpg"}, links)
}

// --- 文字コード ---

func TestNewDocumentFromBytes_DecodesWindows1251(t *testing.T) {
	// Arrange
	encoded, err := charmap.Windows1251.NewEncoder().String(`<html><head><title>Тред</title></head><body><a href="/b/src/1/a.jpg">Картинка</a></body></html>`)
	require.NoError(t, err)

	// Act
	doc, err := NewDocumentFromBytes([]byte(encoded), "text/html; charset=windows-1251")

	// Assert
	require.NoError(t, err)
	assert.Equal(t, "Тред", doc.Find("title").Text())
	assert.Equal(t, "Картинка", doc.Find("a").Text())
}
