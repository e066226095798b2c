package core

import (
	"ThreadHarvester/internal/model"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
)

// Severity は、報告の重要度です。
type Severity int

const (
	SeverityInfo    Severity = iota // 進捗
	SeveritySuccess                 // 保存完了
	SeverityWarning                 // 処理を続行できるスキップ
	SeverityError                   // リソース単位・スレッド単位の失敗
)

func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeveritySuccess:
		return "success"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// Event は、処理中に発生した1件の報告です。
type Event struct {
	Severity Severity
	Message  string
	Thread   string // スレッドURL
	ThreadID string
	Media    string // メディア単位の報告の場合のみ設定
	Path     string
	Bytes    int64
	Failure  model.FailureKind
	Err      error
}

// Reporter は、報告の出力先です。
// 複数のgoroutineから同時に呼ばれるため、実装側で書き込みを直列化してください。
type Reporter interface {
	Report(e Event)
}

// NopReporter は、全ての報告を捨てます。
type NopReporter struct{}

func (NopReporter) Report(Event) {}

// LogReporter は、zerolog に報告を書き込みます。
type LogReporter struct {
	logger zerolog.Logger
}

// NewLogReporter は、logger に書き込む Reporter を返します。
// logger の出力先は zerolog.SyncWriter などで直列化されている必要があります。
func NewLogReporter(logger zerolog.Logger) *LogReporter {
	return &LogReporter{logger: logger}
}

func (r *LogReporter) Report(e Event) {
	var ev *zerolog.Event
	switch e.Severity {
	case SeverityWarning:
		ev = r.logger.Warn()
	case SeverityError:
		ev = r.logger.Error()
	case SeveritySuccess:
		ev = r.logger.Info().Str("status", "ok")
	default:
		ev = r.logger.Info()
	}

	if e.ThreadID != "" {
		ev = ev.Str("thread_id", e.ThreadID)
	} else if e.Thread != "" {
		ev = ev.Str("thread", e.Thread)
	}
	if e.Media != "" {
		ev = ev.Str("url", e.Media)
	}
	if e.Path != "" {
		ev = ev.Str("path", e.Path)
	}
	if e.Bytes > 0 {
		ev = ev.Int64("bytes", e.Bytes)
	}
	if e.Failure != model.FailureNone {
		ev = ev.Stringer("failure", e.Failure)
	}
	if e.Err != nil {
		ev = ev.Err(e.Err)
	}
	ev.Msg(e.Message)
}

// ProgressReporter は、メディア単位の完了報告ごとにプログレスバーを進めてから next に渡します。
type ProgressReporter struct {
	next Reporter
	bar  *progressbar.ProgressBar
}

// NewProgressReporter は、総数不明のスピナー形式のプログレスバーを持つ Reporter を返します。
func NewProgressReporter(next Reporter) *ProgressReporter {
	return &ProgressReporter{
		next: next,
		bar:  progressbar.Default(-1, "downloading"),
	}
}

func (r *ProgressReporter) Report(e Event) {
	if e.Media != "" && (e.Severity == SeveritySuccess || e.Severity == SeverityError) {
		_ = r.bar.Add(1)
	}
	r.next.Report(e)
}

// Finish は、プログレスバーを完了状態にします。
func (r *ProgressReporter) Finish() {
	_ = r.bar.Finish()
}
