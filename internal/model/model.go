package model

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"
)

// ThreadURL は、検証済みのスレッドURLです。
// adapter.ValidateThreadURL 以外から生成しないでください。
type ThreadURL struct {
	raw  string
	site string
}

// NewThreadURL は、検証済みのURLとサイト名からThreadURLを生成します。
func NewThreadURL(raw, site string) ThreadURL {
	return ThreadURL{raw: raw, site: site}
}

func (u ThreadURL) String() string { return u.raw }

// Site は、このURLを受理したサイトアダプタ名を返します。
func (u ThreadURL) Site() string { return u.site }

// MediaFilter は、収集対象のメディア種別です。
type MediaFilter string

const (
	MediaImage MediaFilter = "image"
	MediaVideo MediaFilter = "video"
	MediaBoth  MediaFilter = "both"
)

var (
	imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp"}
	videoExtensions = []string{".webm", ".mp4", ".mov", ".mkv", ".avi"}
)

// ParseMediaFilter は、CLIで指定された文字列をMediaFilterに変換します。
func ParseMediaFilter(s string) (MediaFilter, error) {
	switch f := MediaFilter(strings.ToLower(strings.TrimSpace(s))); f {
	case MediaImage, MediaVideo, MediaBoth:
		return f, nil
	}
	return "", fmt.Errorf("メディア種別は image, video, both のいずれかである必要があります (value=%q)", s)
}

// Extensions は、フィルタに対応する拡張子の順序付き集合を返します。
// both は image と video の和集合です。
func (f MediaFilter) Extensions() []string {
	var exts []string
	switch f {
	case MediaImage:
		exts = append(exts, imageExtensions...)
	case MediaVideo:
		exts = append(exts, videoExtensions...)
	case MediaBoth:
		exts = append(exts, imageExtensions...)
		exts = append(exts, videoExtensions...)
	}
	return exts
}

// MediaLink は、スレッドのURLを基準に解決済みの絶対URLです。
type MediaLink string

// FailureKind は、ダウンロード失敗の分類です。
type FailureKind int

const (
	FailureNone       FailureKind = iota
	FailureTransport              // 接続エラー、タイムアウト、2xx以外のステータス
	FailureFilesystem             // ディレクトリ作成やファイル書き込みの失敗
)

func (k FailureKind) String() string {
	switch k {
	case FailureNone:
		return "none"
	case FailureTransport:
		return "transport"
	case FailureFilesystem:
		return "filesystem"
	default:
		return "unknown"
	}
}

// DownloadOutcome は、単一メディアのダウンロード結果です。
type DownloadOutcome struct {
	URL     string
	Path    string
	Bytes   int64
	Err     error
	Failure FailureKind
}

// OK は、ファイルが完全に書き込まれた場合にtrueを返します。
func (o DownloadOutcome) OK() bool { return o.Err == nil }

// ThreadStatus は、スレッド単位の処理結果です。
type ThreadStatus int

const (
	ThreadCompleted ThreadStatus = iota
	ThreadSkipped
	ThreadFailed
)

func (s ThreadStatus) String() string {
	switch s {
	case ThreadCompleted:
		return "completed"
	case ThreadSkipped:
		return "skipped"
	case ThreadFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// ThreadResult は、スレッド1件分の処理結果を集約します。
type ThreadResult struct {
	URL      ThreadURL
	ID       string
	Dir      string
	Status   ThreadStatus
	Reason   string
	Err      error
	Outcomes []DownloadOutcome
}

// Succeeded は、成功したダウンロード数を返します。
func (r ThreadResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed は、失敗したダウンロード数を返します。
func (r ThreadResult) Failed() int {
	return len(r.Outcomes) - r.Succeeded()
}

// BytesWritten は、成功したダウンロードの合計バイト数を返します。
func (r ThreadResult) BytesWritten() int64 {
	var total int64
	for _, o := range r.Outcomes {
		if o.OK() {
			total += o.Bytes
		}
	}
	return total
}

// DownloadErrors は、失敗したダウンロードのエラーをまとめて返します。
// 失敗がなければnilです。
func (r ThreadResult) DownloadErrors() error {
	var result *multierror.Error
	for _, o := range r.Outcomes {
		if o.Err != nil {
			result = multierror.Append(result, o.Err)
		}
	}
	return result.ErrorOrNil()
}
