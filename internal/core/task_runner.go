package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"ThreadHarvester/internal/adapter"
	"ThreadHarvester/internal/model"

	"github.com/hashicorp/go-multierror"
)

var (
	// ErrNoValidThreadURLs は、入力に有効なスレッドURLが1つもない場合に返されます。
	ErrNoValidThreadURLs = errors.New("有効なスレッドURLが指定されていません")
	// ErrOutputRoot は、保存先ルートが存在しないかディレクトリでない場合に返されます。
	ErrOutputRoot = errors.New("保存先ディレクトリが使用できません")
)

// Summary は、1回の実行の結果です。
type Summary struct {
	Rejected []adapter.Rejection
	Results  []model.ThreadResult // 受理したURLの順
	Stats    *SessionStats
}

// Err は、失敗したスレッドとダウンロードのエラーをまとめて返します。失敗がなければnilです。
func (s *Summary) Err() error {
	var result *multierror.Error
	for _, r := range s.Results {
		if r.Err != nil {
			result = multierror.Append(result, r.Err)
		}
		if err := r.DownloadErrors(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// Harvest は、入力URLを検証し、受理されたスレッドを1つの共有クライアントで処理します。
// 有効なURLが1つもない場合、または保存先が使えない場合は、通信を行う前にエラーを返します。
// それ以外の失敗はスレッド単位に閉じ込められ、残りのスレッドの処理は続行します。
func Harvest(ctx context.Context, client Fetcher, opts Options, rawURLs []string, reporter Reporter) (*Summary, error) {
	threadURLs, rejected := adapter.ValidateThreadURLs(rawURLs)
	for _, r := range rejected {
		reporter.Report(Event{Severity: SeverityWarning, Thread: r.Raw, Err: r.Err, Message: "不正なURLのため除外します"})
	}
	if len(threadURLs) == 0 {
		return nil, ErrNoValidThreadURLs
	}

	info, err := os.Stat(opts.OutputRoot)
	if err != nil {
		return nil, fmt.Errorf("%w (path=%s): %w", ErrOutputRoot, opts.OutputRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w (path=%s): ディレクトリではありません", ErrOutputRoot, opts.OutputRoot)
	}

	maxConcurrent := opts.MaxConcurrentThreads
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}

	summary := &Summary{
		Rejected: rejected,
		Results:  make([]model.ThreadResult, len(threadURLs)),
		Stats:    NewSessionStats(),
	}

	threadSemaphore := make(chan struct{}, maxConcurrent)
	var threadWg sync.WaitGroup
	// 同じスレッド番号を持つスレッドは保存先ディレクトリを共有するため、順番に処理する
	dirLocks := make(map[string]*sync.Mutex)

loop:
	for i, threadURL := range threadURLs {
		siteAdapter, err := adapter.GetAdapter(threadURL.Site())
		if err != nil {
			summary.Results[i] = failThread(reporter, model.ThreadResult{URL: threadURL}, model.FailureNone, err)
			summary.Stats.Record(summary.Results[i])
			continue
		}

		select {
		case <-ctx.Done():
			reporter.Report(Event{Severity: SeverityWarning, Message: "中断されたため、新規スレッドの処理を中止します"})
			for j := i; j < len(threadURLs); j++ {
				summary.Results[j] = model.ThreadResult{URL: threadURLs[j], Status: model.ThreadSkipped, Reason: "中断されました"}
				summary.Stats.Record(summary.Results[j])
			}
			break loop
		case threadSemaphore <- struct{}{}:
		}

		var dirLock *sync.Mutex
		if threadID, err := siteAdapter.ThreadID(threadURL); err == nil {
			if dirLocks[threadID] == nil {
				dirLocks[threadID] = &sync.Mutex{}
			}
			dirLock = dirLocks[threadID]
		}

		threadWg.Add(1)
		go func(i int, threadURL model.ThreadURL, siteAdapter adapter.SiteAdapter, dirLock *sync.Mutex) {
			defer threadWg.Done()
			defer func() { <-threadSemaphore }()
			if dirLock != nil {
				dirLock.Lock()
				defer dirLock.Unlock()
			}
			result := ProcessThread(ctx, client, siteAdapter, opts, threadURL, reporter)
			summary.Stats.Record(result)
			summary.Results[i] = result
		}(i, threadURL, siteAdapter, dirLock)
	}
	threadWg.Wait()

	return summary, nil
}
