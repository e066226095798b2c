package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// 環境変数による上書きのキー
const (
	EnvUserAgent          = "HARVESTER_USER_AGENT"
	EnvRequestTimeout     = "HARVESTER_REQUEST_TIMEOUT_MS"
	EnvMaxThreads         = "HARVESTER_MAX_CONCURRENT_THREADS"
	EnvMaxDownloads       = "HARVESTER_MAX_CONCURRENT_DOWNLOADS"
	EnvInsecureSkipVerify = "HARVESTER_INSECURE_SKIP_VERIFY"
	EnvLogLevel           = "HARVESTER_LOG_LEVEL"
)

// LoadAndResolve は、指定されたパスから設定ファイルを読み込み、解析します。
// 拡張子が .yaml / .yml の場合はYAML、それ以外はJSONとして扱います。
func LoadAndResolve(path string) (*Config, error) {
	absPath, _ := filepath.Abs(path)
	cwd, _ := os.Getwd()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("設定ファイル '%s' の読み込みに失敗しました (Abs: '%s', Cwd: '%s'): %w", path, absPath, cwd, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseAndResolve(data)
	}
}

// ParseAndResolve は、JSON形式の設定データを解析して最終的な設定を返します。
// この関数はテストのために分離されています。
func ParseAndResolve(data []byte) (*Config, error) {
	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError

		if errors.As(err, &syntaxErr) {
			line, col := computeLineAndColumn(data, syntaxErr.Offset)
			return nil, fmt.Errorf("設定ファイルのJSON構文エラー (行 %d, 列 %d): %w", line, col, err)
		}
		if errors.As(err, &typeErr) {
			line, col := computeLineAndColumn(data, typeErr.Offset)
			return nil, fmt.Errorf("設定ファイルの型エラー (行 %d, 列 %d, フィールド '%s'): 期待値 %v, 実際 %v - %w",
				line, col, typeErr.Field, typeErr.Type, typeErr.Value, err)
		}
		return nil, fmt.Errorf("設定ファイルの解析に失敗しました: %w", err)
	}
	return resolve(cfg)
}

// ParseYAML は、YAML形式の設定データを解析して最終的な設定を返します。
func ParseYAML(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("設定ファイルのYAML解析に失敗しました: %w", err)
	}
	return resolve(cfg)
}

func resolve(cfg *Config) (*Config, error) {
	if cfg.ConfigVersion != CompatibleVersion {
		return nil, fmt.Errorf("サポートされていない設定バージョン '%s' です。'%s' が必要です。", cfg.ConfigVersion, CompatibleVersion)
	}
	cfg.normalize()
	return cfg, nil
}

// ApplyEnv は、envFile(存在する場合)を読み込んだ上で HARVESTER_* 環境変数を設定に反映します。
// 既にプロセスに設定されている環境変数は .env の値より優先されます。
func (c *Config) ApplyEnv(envFile string) error {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf(".envファイルの読み込みに失敗しました (path=%s): %w", envFile, err)
		}
	}

	if v, ok := os.LookupEnv(EnvUserAgent); ok {
		c.Network.UserAgent = v
	}
	if v, ok := os.LookupEnv(EnvLogLevel); ok {
		c.LogLevel = v
	}
	for key, target := range map[string]*int{
		EnvRequestTimeout: &c.Network.RequestTimeoutMillis,
		EnvMaxThreads:     &c.MaxConcurrentThreads,
		EnvMaxDownloads:   &c.MaxConcurrentDownloads,
	} {
		v, ok := os.LookupEnv(key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("環境変数 %s の値が整数ではありません (value=%q): %w", key, v, err)
		}
		*target = n
	}
	if v, ok := os.LookupEnv(EnvInsecureSkipVerify); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("環境変数 %s の値が真偽値ではありません (value=%q): %w", EnvInsecureSkipVerify, v, err)
		}
		c.Network.InsecureSkipVerify = b
	}

	c.normalize()
	return nil
}

// computeLineAndColumn は、バイトオフセットから行番号と列番号（1始まり）を計算します。
func computeLineAndColumn(data []byte, offset int64) (int, int) {
	if offset < 0 || int(offset) > len(data) {
		return 0, 0
	}
	line := 1
	lastLineStart := 0
	for i, b := range data {
		if int64(i) == offset {
			return line, i - lastLineStart + 1
		}
		if b == '\n' {
			line++
			lastLineStart = i + 1
		}
	}
	return line, int(offset) - lastLineStart + 1
}
