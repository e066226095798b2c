package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ThreadHarvester/internal/config"
	"ThreadHarvester/internal/core"
	"ThreadHarvester/internal/logging"
	"ThreadHarvester/internal/model"
	"ThreadHarvester/internal/network"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// cliFlags は、コマンドラインフラグの値です。
type cliFlags struct {
	configFile   string
	envFile      string
	maxThreads   int
	maxDownloads int
	timeout      time.Duration
	userAgent    string
	insecure     bool
	logLevel     string
	logFile      string
	showProgress bool
}

// newRootCmd は、フラグを含めて毎回新しいルートコマンドを組み立てます。
func newRootCmd() *cobra.Command {
	f := &cliFlags{}
	cmd := &cobra.Command{
		Use:           "harvester <output_path> <image|video|both> <thread_url> [<thread_url>...]",
		Short:         "2ch / arhivach のスレッドから画像・動画を保存します",
		Example:       "  harvester ~/Downloads both https://2ch.hk/b/res/322069228.html https://arhivach.vc/thread/1222099/",
		Args:          cobra.MinimumNArgs(3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHarvest(cmd, f, args)
		},
	}

	f.register(cmd)
	return cmd
}

// register は、フラグを cmd に登録します。
func (f *cliFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.configFile, "config", "", "設定ファイルのパス (JSON / YAML)")
	flags.StringVar(&f.envFile, "env-file", ".env", "HARVESTER_* 環境変数を読み込む .env ファイル")
	flags.IntVar(&f.maxThreads, "threads", 0, "同時に処理するスレッド数の上限")
	flags.IntVar(&f.maxDownloads, "downloads", 0, "スレッドごとの同時ダウンロード数の上限")
	flags.DurationVar(&f.timeout, "timeout", 0, "1リクエストあたりのタイムアウト (例: 30s)")
	flags.StringVar(&f.userAgent, "user-agent", "", "User-Agent (未指定の場合はランダム)")
	flags.BoolVar(&f.insecure, "insecure", false, "TLS証明書の検証を無効にする (安全ではありません)")
	flags.StringVar(&f.logLevel, "log-level", "", "ログレベル (debug, info, warn, error)")
	flags.StringVar(&f.logFile, "log-file", "", "ログを追記するファイル")
	flags.BoolVar(&f.showProgress, "progress", false, "ダウンロードの進捗を表示する")
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runHarvest(cmd *cobra.Command, f *cliFlags, args []string) error {
	start := time.Now()
	outputPath, mediaOption, threadURLs := args[0], args[1], args[2:]

	if info, err := os.Stat(outputPath); err != nil || !info.IsDir() {
		return fmt.Errorf("'%s' が存在しないかディレクトリではありません。先にフォルダを作成するか、既存のパスを指定してください", outputPath)
	}
	filter, err := model.ParseMediaFilter(mediaOption)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd, f)
	if err != nil {
		return err
	}

	logger, closer, err := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		EnableFile: cfg.EnableLogFile,
		FilePath:   cfg.LogFilePath,
	})
	if err != nil {
		return err
	}
	defer closer.Close()

	if cfg.Network.InsecureSkipVerify {
		logger.Warn().Msg("TLS証明書の検証が無効になっています。通信内容が改ざんされる可能性があります")
	}

	client, err := network.NewClient(cfg.Network, network.Options{})
	if err != nil {
		return fmt.Errorf("ネットワーククライアントの初期化に失敗しました: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var reporter core.Reporter = core.NewLogReporter(logger)
	if f.showProgress {
		progress := core.NewProgressReporter(reporter)
		defer progress.Finish()
		reporter = progress
	}

	opts := core.Options{
		OutputRoot:             outputPath,
		Filter:                 filter,
		MaxConcurrentThreads:   cfg.MaxConcurrentThreads,
		MaxConcurrentDownloads: cfg.MaxConcurrentDownloads,
	}
	logger.Info().
		Int("threads", len(threadURLs)).
		Int("max_concurrent_threads", opts.MaxConcurrentThreads).
		Int("max_concurrent_downloads", opts.MaxConcurrentDownloads).
		Str("filter", string(filter)).
		Msg("収集を開始します")

	summary, err := core.Harvest(ctx, client, opts, threadURLs, reporter)
	if err != nil {
		return err
	}

	logSummary(logger, summary, time.Since(start))
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("中断されました")
	}
	return nil
}

// loadConfig は、設定ファイル、.env、フラグの順に設定を重ねます。
func loadConfig(cmd *cobra.Command, f *cliFlags) (*config.Config, error) {
	cfg := config.Default()
	if f.configFile != "" {
		loaded, err := config.LoadAndResolve(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(f.envFile); err != nil {
		return nil, err
	}

	flags := cmd.Flags()
	if flags.Changed("threads") {
		cfg.MaxConcurrentThreads = f.maxThreads
	}
	if flags.Changed("downloads") {
		cfg.MaxConcurrentDownloads = f.maxDownloads
	}
	if flags.Changed("timeout") {
		cfg.Network.RequestTimeoutMillis = int(f.timeout / time.Millisecond)
	}
	if flags.Changed("user-agent") {
		cfg.Network.UserAgent = f.userAgent
	}
	if flags.Changed("insecure") {
		cfg.Network.InsecureSkipVerify = f.insecure
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-file") {
		cfg.EnableLogFile = f.logFile != ""
		cfg.LogFilePath = f.logFile
	}
	return cfg, nil
}

func logSummary(logger zerolog.Logger, summary *core.Summary, elapsed time.Duration) {
	logger.Info().Dur("elapsed", elapsed).Msg(summary.Stats.FormatSessionInfo())
	if err := summary.Err(); err != nil {
		logger.Warn().Err(err).Msg("一部のスレッドまたはファイルの保存に失敗しました")
	}
}
