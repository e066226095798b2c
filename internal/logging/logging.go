// Package logging は、zerolog によるログ出力の設定を提供します。
// 標準出力に加えて、指定された場合はログファイルにも追記します。
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Options は、ロガーの出力設定です。
type Options struct {
	Level      string
	EnableFile bool
	FilePath   string    // 空の場合は harvester_YYYY-MM-DD.log
	Console    io.Writer // nil の場合は os.Stdout
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// New は、Options に従って zerolog.Logger を生成します。
// 出力は SyncWriter で直列化されるため、複数のgoroutineから同時に使用できます。
// 返される io.Closer はログファイルを閉じます。
func New(opts Options) (zerolog.Logger, io.Closer, error) {
	level, err := parseLevel(opts.Level)
	if err != nil {
		return zerolog.Nop(), nil, err
	}

	console := opts.Console
	if console == nil {
		console = os.Stdout
	}
	var out io.Writer = zerolog.ConsoleWriter{Out: console, TimeFormat: "15:04:05"}
	var closer io.Closer = nopCloser{}

	if opts.EnableFile {
		path := opts.FilePath
		if path == "" {
			path = fmt.Sprintf("harvester_%s.log", time.Now().Format("2006-01-02"))
		}
		f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return zerolog.Nop(), nil, fmt.Errorf("ログファイルを開けませんでした (path=%s): %w", path, err)
		}
		// ファイルには機械可読なJSONで書き込む
		out = zerolog.MultiLevelWriter(out, f)
		closer = f
	}

	logger := zerolog.New(zerolog.SyncWriter(out)).Level(level).With().Timestamp().Logger()
	return logger, closer, nil
}

func parseLevel(s string) (zerolog.Level, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "":
		return zerolog.InfoLevel, nil
	case "warning":
		return zerolog.WarnLevel, nil
	}
	level, err := zerolog.ParseLevel(s)
	if err != nil {
		return zerolog.NoLevel, fmt.Errorf("不正なログレベルです (level=%q): %w", s, err)
	}
	return level, nil
}
