// Package config は、アプリケーションの設定ファイル(JSON / YAML)の構造定義と、
// その読み込み、環境変数による上書きに関する機能を提供します。
package config

// Config は設定ファイル全体を表すルート構造体です。
type Config struct {
	ConfigVersion          string          `json:"config_version" yaml:"config_version"`
	Network                NetworkSettings `json:"network" yaml:"network"`
	MaxConcurrentThreads   int             `json:"max_concurrent_threads" yaml:"max_concurrent_threads"`
	MaxConcurrentDownloads int             `json:"max_concurrent_downloads" yaml:"max_concurrent_downloads"`
	LogLevel               string          `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	EnableLogFile          bool            `json:"enable_log_file" yaml:"enable_log_file"`
	LogFilePath            string          `json:"log_file_path,omitempty" yaml:"log_file_path,omitempty"`
}

// NetworkSettings は、HTTPリクエストに関するグローバルな設定を保持します。
type NetworkSettings struct {
	UserAgent      string            `json:"user_agent" yaml:"user_agent"`
	DefaultHeaders map[string]string `json:"default_headers" yaml:"default_headers"`
	// PerDomainIntervalMillis は、ホストごとの最小リクエスト間隔です。
	// 空の場合はレート制限を行いません。
	PerDomainIntervalMillis map[string]int `json:"per_domain_interval_ms" yaml:"per_domain_interval_ms"`
	RequestTimeoutMillis    int            `json:"request_timeout_ms" yaml:"request_timeout_ms"`
	// InsecureSkipVerify は、TLS証明書の検証を無効にします。安全ではありません。
	InsecureSkipVerify bool `json:"insecure_skip_verify" yaml:"insecure_skip_verify"`
}

const (
	CompatibleVersion = "1.0"

	DefaultMaxConcurrentThreads   = 2
	DefaultMaxConcurrentDownloads = 4
	DefaultRequestTimeoutMillis   = 30000
	DefaultLogLevel               = "info"
)

// Default は、設定ファイルが指定されない場合の既定値を返します。
func Default() *Config {
	return &Config{
		ConfigVersion:          CompatibleVersion,
		MaxConcurrentThreads:   DefaultMaxConcurrentThreads,
		MaxConcurrentDownloads: DefaultMaxConcurrentDownloads,
		LogLevel:               DefaultLogLevel,
		Network: NetworkSettings{
			RequestTimeoutMillis: DefaultRequestTimeoutMillis,
		},
	}
}

// normalize は、0以下の値を既定値で埋めます。
func (c *Config) normalize() {
	if c.MaxConcurrentThreads <= 0 {
		c.MaxConcurrentThreads = DefaultMaxConcurrentThreads
	}
	if c.MaxConcurrentDownloads <= 0 {
		c.MaxConcurrentDownloads = DefaultMaxConcurrentDownloads
	}
	if c.Network.RequestTimeoutMillis <= 0 {
		c.Network.RequestTimeoutMillis = DefaultRequestTimeoutMillis
	}
	if c.LogLevel == "" {
		c.LogLevel = DefaultLogLevel
	}
}
