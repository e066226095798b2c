package core

import (
	"fmt"
	"sync"
	"time"

	"ThreadHarvester/internal/model"
)

// SessionStats は実行中の統計情報を管理します。複数のgoroutineから記録できます。
type SessionStats struct {
	mu                sync.Mutex
	StartTime         time.Time // 開始時刻
	ThreadsArchived   int       // 1件以上保存したスレッド数
	ThreadsSkipped    int       // スキップしたスレッド数
	ThreadsFailed     int       // 失敗したスレッド数
	FilesDownloaded   int       // ダウンロードしたファイル数
	FilesFailed       int       // ダウンロードに失敗したファイル数
	TotalBytesWritten int64     // 合計ダウンロードサイズ（バイト）
}

// NewSessionStats は、現在時刻を開始時刻とする SessionStats を返します。
func NewSessionStats() *SessionStats {
	return &SessionStats{StartTime: time.Now()}
}

// Record は、スレッド1件の結果を統計に加えます。
func (s *SessionStats) Record(r model.ThreadResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch r.Status {
	case model.ThreadSkipped:
		s.ThreadsSkipped++
	case model.ThreadFailed:
		s.ThreadsFailed++
	case model.ThreadCompleted:
		if r.Succeeded() > 0 {
			s.ThreadsArchived++
		}
	}
	s.FilesDownloaded += r.Succeeded()
	s.FilesFailed += r.Failed()
	s.TotalBytesWritten += r.BytesWritten()
}

// FormatSessionInfo はセッション統計情報を文字列にフォーマットします。
func (s *SessionStats) FormatSessionInfo() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	elapsed := time.Since(s.StartTime)
	sizeMB := float64(s.TotalBytesWritten) / (1024 * 1024)

	return fmt.Sprintf("経過: %s | スレッド: %d (スキップ %d, 失敗 %d) | ファイル: %d (失敗 %d) | %.1fMB",
		elapsed.Round(time.Millisecond), s.ThreadsArchived, s.ThreadsSkipped, s.ThreadsFailed,
		s.FilesDownloaded, s.FilesFailed, sizeMB)
}
