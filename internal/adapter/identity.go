package adapter

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrNoThreadID は、URL末尾からスレッド番号を取り出せない場合に返されます。
var ErrNoThreadID = errors.New("スレッド番号を抽出できません")

// 末尾の数字列。後ろに .html、スラッシュ、#フラグメントが続いてもよい
var threadIDPattern = regexp.MustCompile(`(?i)(\d+)(?:\.html)?/?(?:#.*)?$`)

// ExtractThreadID は、スレッドURLからフォルダ名に使うスレッド番号を返します。
// 同じスレッドを指すURLは、フラグメントや末尾のスラッシュの有無に関わらず同じ値になります。
func ExtractThreadID(threadURL string) (string, error) {
	m := threadIDPattern.FindStringSubmatch(threadURL)
	if len(m) < 2 {
		return "", fmt.Errorf("%w (url=%s)", ErrNoThreadID, threadURL)
	}
	return m[1], nil
}
