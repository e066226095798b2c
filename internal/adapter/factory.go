package adapter

import (
	"errors"
	"fmt"
	"strings"

	"ThreadHarvester/internal/model"
)

// ErrInvalidThreadURL は、どの対応サイトのスレッドURLとも一致しない場合に返されます。
var ErrInvalidThreadURL = errors.New("対応していないスレッドURLです")

type registryEntry struct {
	name    string
	factory func() SiteAdapter
}

// adapterRegistry は、サイト名とSiteAdapter実装の対応です。判定はこの順で行います。
var adapterRegistry = []registryEntry{
	{name: "2ch", factory: NewDvachAdapter},
	{name: "arhivach", factory: NewArhivachAdapter},
}

// GetAdapter は、指定されたサイト名に対応するSiteAdapterの新しいインスタンスを返します。
func GetAdapter(siteName string) (SiteAdapter, error) {
	for _, entry := range adapterRegistry {
		if entry.name == siteName {
			return entry.factory(), nil
		}
	}
	return nil, fmt.Errorf("サイト名 '%s' に対応するアダプタが見つかりません", siteName)
}

// DetectAdapter は、rawをスレッドURLとして受理するSiteAdapterを返します。
func DetectAdapter(raw string) (SiteAdapter, error) {
	for _, entry := range adapterRegistry {
		a := entry.factory()
		if a.MatchThreadURL(raw) {
			return a, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrInvalidThreadURL, raw)
}

// ValidateThreadURL は、rawを検証して ThreadURL を返します。
func ValidateThreadURL(raw string) (model.ThreadURL, error) {
	a, err := DetectAdapter(raw)
	if err != nil {
		return model.ThreadURL{}, err
	}
	return model.NewThreadURL(raw, a.Name()), nil
}

// Rejection は、検証に失敗した入力URLとその理由です。
type Rejection struct {
	Raw string
	Err error
}

// ValidateThreadURLs は、入力URLを検証し、受理されたURL(重複除去、入力順)と
// 拒否されたURLの一覧を返します。大文字小文字と末尾の "/" だけが異なるURLは
// 同じスレッドとみなし、最初のものだけを残します。
func ValidateThreadURLs(raws []string) ([]model.ThreadURL, []Rejection) {
	var valid []model.ThreadURL
	var rejected []Rejection
	seen := make(map[string]bool)

	for _, raw := range raws {
		u, err := ValidateThreadURL(raw)
		if err != nil {
			rejected = append(rejected, Rejection{Raw: raw, Err: err})
			continue
		}
		key := canonicalKey(u)
		if seen[key] {
			continue
		}
		seen[key] = true
		valid = append(valid, u)
	}
	return valid, rejected
}

// canonicalKey は、同一スレッドの判定に使うキーです。検証済みURLにはクエリやフラグメントが含まれません。
func canonicalKey(u model.ThreadURL) string {
	return u.Site() + " " + strings.TrimSuffix(strings.ToLower(u.String()), "/")
}
