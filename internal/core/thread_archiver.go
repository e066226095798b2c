// Package core は、スレッドからメディアを収集して保存する中核ロジックを実装します。
package core

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"ThreadHarvester/internal/adapter"
	"ThreadHarvester/internal/model"
)

// Options は、1回の実行全体に共通する設定です。
type Options struct {
	OutputRoot             string
	Filter                 model.MediaFilter
	MaxConcurrentThreads   int
	MaxConcurrentDownloads int
}

// ProcessThread は、単一のスレッドのメディアを outputRoot/<スレッド番号>/ に保存します。
// 結果は報告と同時に ThreadResult として返し、呼び出し元の処理は止めません。
func ProcessThread(ctx context.Context, client Fetcher, siteAdapter adapter.SiteAdapter, opts Options, threadURL model.ThreadURL, reporter Reporter) model.ThreadResult {
	result := model.ThreadResult{URL: threadURL}
	rawURL := threadURL.String()

	// STEP 1: スレッドHTMLの取得
	reporter.Report(Event{Severity: SeverityInfo, Thread: rawURL, Message: "スレッドを取得しています"})
	page, err := client.FetchPage(ctx, rawURL)
	if err != nil {
		return failThread(reporter, result, model.FailureTransport,
			fmt.Errorf("%w: スレッドHTMLの取得に失敗しました (url=%s): %w", ErrTransport, rawURL, err))
	}

	doc, err := siteAdapter.ParseThreadHTML(page.Body, page.ContentType)
	if err != nil {
		return failThread(reporter, result, model.FailureNone,
			fmt.Errorf("スレッドHTMLの解析に失敗しました (url=%s, size=%d bytes): %w", rawURL, len(page.Body), err))
	}

	// STEP 2: メディアリンクの抽出
	links, err := siteAdapter.ExtractMediaLinks(doc, rawURL, opts.Filter.Extensions())
	if err != nil {
		return failThread(reporter, result, model.FailureNone,
			fmt.Errorf("メディアリンクの抽出に失敗しました (url=%s): %w", rawURL, err))
	}
	if len(links) == 0 {
		return skipThread(reporter, result, fmt.Sprintf("メディアが見つかりませんでした (filter=%s)", opts.Filter))
	}

	// STEP 3: スレッド番号の決定
	threadID, err := siteAdapter.ThreadID(threadURL)
	if err != nil {
		// 検証済みURLでは起こらないはずの不整合
		return skipThread(reporter, result, fmt.Sprintf("スレッド番号を決定できないためスキップします: %v", err))
	}
	result.ID = threadID

	// STEP 4: 保存先ディレクトリの準備（ダウンロード開始前に完了させる）
	threadDir := filepath.Join(opts.OutputRoot, threadID)
	if err := os.MkdirAll(threadDir, 0755); err != nil {
		return failThread(reporter, result, model.FailureFilesystem,
			fmt.Errorf("%w: スレッドディレクトリの作成に失敗しました (path=%s): %w", ErrFilesystem, threadDir, err))
	}
	result.Dir = threadDir

	reporter.Report(Event{
		Severity: SeverityInfo,
		Thread:   rawURL,
		ThreadID: threadID,
		Path:     threadDir,
		Message:  fmt.Sprintf("%d件のメディアをダウンロードします", len(links)),
	})

	// STEP 5: メディアのダウンロード
	result.Outcomes = downloadMediaFiles(ctx, client, links, threadDir, opts.MaxConcurrentDownloads, func(o model.DownloadOutcome) {
		if o.OK() {
			reporter.Report(Event{Severity: SeveritySuccess, Thread: rawURL, ThreadID: threadID, Media: o.URL, Path: o.Path, Bytes: o.Bytes, Message: "ダウンロード完了"})
			return
		}
		reporter.Report(Event{Severity: SeverityError, Thread: rawURL, ThreadID: threadID, Media: o.URL, Path: o.Path, Failure: o.Failure, Err: o.Err, Message: "ダウンロードに失敗しました"})
	})

	result.Status = model.ThreadCompleted
	severity := SeveritySuccess
	if result.Failed() > 0 {
		severity = SeverityWarning
	}
	reporter.Report(Event{
		Severity: severity,
		Thread:   rawURL,
		ThreadID: threadID,
		Path:     threadDir,
		Bytes:    result.BytesWritten(),
		Err:      result.DownloadErrors(),
		Message:  fmt.Sprintf("スレッドの処理が完了しました (成功=%d, 失敗=%d)", result.Succeeded(), result.Failed()),
	})
	return result
}

func failThread(reporter Reporter, result model.ThreadResult, kind model.FailureKind, err error) model.ThreadResult {
	result.Status = model.ThreadFailed
	result.Err = err
	reporter.Report(Event{Severity: SeverityError, Thread: result.URL.String(), ThreadID: result.ID, Failure: kind, Err: err, Message: "スレッドの処理に失敗しました"})
	return result
}

func skipThread(reporter Reporter, result model.ThreadResult, reason string) model.ThreadResult {
	result.Status = model.ThreadSkipped
	result.Reason = reason
	reporter.Report(Event{Severity: SeverityWarning, Thread: result.URL.String(), ThreadID: result.ID, Message: reason})
	return result
}

// downloadMediaFiles は、最大 maxConcurrent 件を並行してダウンロードします。
// 1件の失敗は他のダウンロードに影響しません。結果は links と同じ順で返します。
func downloadMediaFiles(ctx context.Context, client Fetcher, links []model.MediaLink, threadDir string, maxConcurrent int, onDone func(model.DownloadOutcome)) []model.DownloadOutcome {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	names := assignFileNames(links)
	outcomes := make([]model.DownloadOutcome, len(links))

	semaphore := make(chan struct{}, maxConcurrent)
	var wg sync.WaitGroup
	for i, link := range links {
		destPath := filepath.Join(threadDir, names[i])

		select {
		case <-ctx.Done():
			outcomes[i] = model.DownloadOutcome{
				URL:     string(link),
				Path:    destPath,
				Failure: model.FailureTransport,
				Err:     fmt.Errorf("%w: 中断されました (url=%s): %w", ErrTransport, link, ctx.Err()),
			}
			onDone(outcomes[i])
			continue
		case semaphore <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, link model.MediaLink, destPath string) {
			defer wg.Done()
			defer func() { <-semaphore }()
			outcomes[i] = DownloadFile(ctx, client, string(link), destPath)
			onDone(outcomes[i])
		}(i, link, destPath)
	}
	wg.Wait()
	return outcomes
}

// assignFileNames は、各リンクの最後の "/" 以降をファイル名として割り当てます。
// 同じスレッド内で名前が衝突した場合、後のリンクには "_1", "_2" ... を拡張子の前に付けます。
// links はソート済みのため、同じリンク集合に対しては毎回同じ名前になります。
func assignFileNames(links []model.MediaLink) []string {
	names := make([]string, len(links))
	used := make(map[string]bool, len(links))
	for i, link := range links {
		name := fileNameOf(string(link))
		if used[name] {
			ext := path.Ext(name)
			stem := strings.TrimSuffix(name, ext)
			for n := 1; ; n++ {
				candidate := fmt.Sprintf("%s_%d%s", stem, n, ext)
				if !used[candidate] {
					name = candidate
					break
				}
			}
		}
		used[name] = true
		names[i] = name
	}
	return names
}

func fileNameOf(link string) string {
	name := link[strings.LastIndex(link, "/")+1:]
	if name == "" || name == "." || name == ".." {
		return "media"
	}
	return name
}
