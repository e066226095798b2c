// Package adapter は、サイト固有の処理を抽象化するインターフェースと、
// その具体的な実装を提供します。対応サイトはスレッドURLの形で判別します。
package adapter

import (
	"bytes"
	"fmt"
	"regexp"

	"ThreadHarvester/internal/model"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// SiteAdapter は、サイト固有の処理を抽象化するインターフェースです。
type SiteAdapter interface {
	// Name は、レジストリに登録されたサイト名を返します。
	Name() string
	// MatchThreadURL は、rawがこのサイトのスレッドURLの形に完全一致するかを返します。
	MatchThreadURL(raw string) bool
	// ThreadID は、スレッドURLからフォルダ名に使うスレッド番号を取り出します。
	ThreadID(threadURL model.ThreadURL) (string, error)
	ParseThreadHTML(htmlBody []byte, contentType string) (*goquery.Document, error)
	ExtractMediaLinks(doc *goquery.Document, threadURL string, extensions []string) ([]model.MediaLink, error)
}

// imageboardAdapter は、URLの形だけが異なるサイトで共通の処理を実装します。
type imageboardAdapter struct {
	name          string
	threadPattern *regexp.Regexp
}

func (a *imageboardAdapter) Name() string { return a.name }

func (a *imageboardAdapter) MatchThreadURL(raw string) bool {
	return a.threadPattern.MatchString(raw)
}

func (a *imageboardAdapter) ThreadID(threadURL model.ThreadURL) (string, error) {
	return ExtractThreadID(threadURL.String())
}

func (a *imageboardAdapter) ParseThreadHTML(htmlBody []byte, contentType string) (*goquery.Document, error) {
	return NewDocumentFromBytes(htmlBody, contentType)
}

func (a *imageboardAdapter) ExtractMediaLinks(doc *goquery.Document, threadURL string, extensions []string) ([]model.MediaLink, error) {
	return ExtractMediaLinks(doc, threadURL, extensions)
}

// NewDocumentFromBytes は、Content-Type と meta 要素から文字コードを判定し、
// UTF-8 に変換した上で goquery.Document を生成します。
func NewDocumentFromBytes(htmlBody []byte, contentType string) (*goquery.Document, error) {
	enc, name, _ := charset.DetermineEncoding(htmlBody, contentType)
	if name == "utf-8" {
		return goquery.NewDocumentFromReader(bytes.NewReader(htmlBody))
	}

	reader := transform.NewReader(bytes.NewReader(htmlBody), enc.NewDecoder())
	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		return nil, fmt.Errorf("文字コード変換に失敗しました (charset=%s): %w", name, err)
	}
	return doc, nil
}
