package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"ThreadHarvester/internal/model"
	"ThreadHarvester/internal/network"
)

var (
	// ErrTransport は、接続エラー、タイムアウト、2xx以外のステータスを表します。
	ErrTransport = errors.New("通信エラー")
	// ErrFilesystem は、ローカル環境でのディレクトリ作成・書き込みの失敗を表します。
	ErrFilesystem = errors.New("ファイルシステムエラー")
)

// partSuffix は、書き込み途中のファイルに付ける拡張子です。
const partSuffix = ".part"

// Fetcher は、スレッドページとメディアを取得するHTTPクライアントです。
// network.Client が実装します。
type Fetcher interface {
	FetchPage(ctx context.Context, url string) (*network.Page, error)
	Open(ctx context.Context, url string) (io.ReadCloser, error)
}

// DownloadFile は、url のレスポンスボディを destPath にストリーミングで保存します。
// ボディは destPath+".part" に書き込み、完了後にリネームします。失敗時は書き込み途中の
// ファイルを削除するため、destPath に不完全なファイルが残ることはありません。リトライはしません。
func DownloadFile(ctx context.Context, client Fetcher, url string, destPath string) model.DownloadOutcome {
	outcome := model.DownloadOutcome{URL: url, Path: destPath}
	fail := func(kind model.FailureKind, err error) model.DownloadOutcome {
		outcome.Bytes = 0
		outcome.Failure = kind
		outcome.Err = err
		return outcome
	}

	body, err := client.Open(ctx, url)
	if err != nil {
		return fail(model.FailureTransport, fmt.Errorf("%w: ダウンロードに失敗しました (url=%s): %w", ErrTransport, url, err))
	}
	defer body.Close()

	partPath := destPath + partSuffix
	out, err := os.Create(partPath)
	if err != nil {
		return fail(model.FailureFilesystem, fmt.Errorf("%w: ファイルの作成に失敗しました (path=%s): %w", ErrFilesystem, partPath, err))
	}

	w := &trackingWriter{w: out}
	written, copyErr := io.Copy(w, body)
	closeErr := out.Close()

	switch {
	case copyErr != nil && w.err != nil:
		os.Remove(partPath)
		return fail(model.FailureFilesystem, fmt.Errorf("%w: ファイルの書き込みに失敗しました (path=%s): %w", ErrFilesystem, partPath, copyErr))
	case copyErr != nil:
		os.Remove(partPath)
		return fail(model.FailureTransport, fmt.Errorf("%w: レスポンスボディの受信に失敗しました (url=%s, received=%d bytes): %w", ErrTransport, url, written, copyErr))
	case closeErr != nil:
		os.Remove(partPath)
		return fail(model.FailureFilesystem, fmt.Errorf("%w: ファイルのクローズに失敗しました (path=%s): %w", ErrFilesystem, partPath, closeErr))
	}

	if err := os.Rename(partPath, destPath); err != nil {
		os.Remove(partPath)
		return fail(model.FailureFilesystem, fmt.Errorf("%w: ファイルのリネームに失敗しました (path=%s): %w", ErrFilesystem, destPath, err))
	}

	outcome.Bytes = written
	return outcome
}

// trackingWriter は、書き込み側のエラーを記録して受信側のエラーと区別します。
type trackingWriter struct {
	w   io.Writer
	err error
}

func (t *trackingWriter) Write(p []byte) (int, error) {
	n, err := t.w.Write(p)
	if err != nil {
		t.err = err
	}
	return n, err
}
