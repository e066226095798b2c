// Package network は、スレッドページとメディアの取得に使うHTTP通信機能を提供します。
// 1つのClientを全スレッド・全ダウンロードで共有し、コネクションを再利用します。
package network

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"ThreadHarvester/internal/config"

	"github.com/corpix/uarand"
	"golang.org/x/time/rate"
)

// defaultMaxPageSize は、スレッドHTMLとして読み込む最大サイズです。
const defaultMaxPageSize = 32 << 20

// ErrPageTooLarge は、ページが最大サイズを超えた場合に返されます。
// 途中で切り詰めると以降のリンクが失われるため、エラーとして扱います。
var ErrPageTooLarge = errors.New("ページが最大サイズを超えています")

// HTTPError は、2xx以外のレスポンスのステータスコードを保持します。
type HTTPError struct {
	StatusCode int
	URL        string
	Message    string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s (URL: %s)", e.StatusCode, e.Message, e.URL)
}

// Page は、取得したHTMLページです。
type Page struct {
	URL         string
	ContentType string
	Body        []byte
}

// Options は、テストなどで差し替え可能な依存を保持します。
type Options struct {
	// Transport が nil の場合は http.DefaultTransport の複製を使います。
	Transport http.RoundTripper
}

// Client は、タイムアウトとヘッダを一律に適用するHTTPクライアントです。
// 複数のgoroutineから同時に使用できます。
type Client struct {
	httpClient     *http.Client
	userAgent      string
	defaultHeaders map[string]string
	rateLimiters   map[string]*rate.Limiter // ホスト名ごとのレートリミッター。生成後は読み取り専用
	maxPageSize    int64
}

// NewClient は NetworkSettings に基づいて HTTP クライアントを初期化します。
func NewClient(settings config.NetworkSettings, opts Options) (*Client, error) {
	timeout := time.Duration(settings.RequestTimeoutMillis) * time.Millisecond
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	transport := opts.Transport
	if transport == nil {
		base, ok := http.DefaultTransport.(*http.Transport)
		if !ok {
			return nil, fmt.Errorf("既定のトランスポートが *http.Transport ではありません")
		}
		t := base.Clone()
		if settings.InsecureSkipVerify {
			t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // 明示的に指定された場合のみ
		}
		transport = t
	}

	userAgent := settings.UserAgent
	if userAgent == "" {
		userAgent = uarand.GetRandom()
	}

	rateLimiters := make(map[string]*rate.Limiter)
	for domain, intervalMillis := range settings.PerDomainIntervalMillis {
		if intervalMillis <= 0 {
			continue
		}
		rateLimiters[domain] = rate.NewLimiter(rate.Every(time.Duration(intervalMillis)*time.Millisecond), 1)
	}

	return &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
		userAgent:      userAgent,
		defaultHeaders: settings.DefaultHeaders,
		rateLimiters:   rateLimiters,
		maxPageSize:    defaultMaxPageSize,
	}, nil
}

// UserAgent は、リクエストに付与する User-Agent を返します。
func (c *Client) UserAgent() string { return c.userAgent }

// FetchPage は、GETリクエストでページ全体を取得します。
func (c *Client) FetchPage(ctx context.Context, reqURL string) (*Page, error) {
	resp, err := c.do(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxPageSize+1))
	if err != nil {
		return nil, fmt.Errorf("レスポンスボディの読み込みに失敗しました (url=%s): %w", reqURL, err)
	}
	if int64(len(body)) > c.maxPageSize {
		return nil, fmt.Errorf("%w (url=%s, limit=%d bytes)", ErrPageTooLarge, reqURL, c.maxPageSize)
	}

	return &Page{
		URL:         reqURL,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

// Open は、GETリクエストを送信してレスポンスボディをストリームとして返します。
// 呼び出し側は必ず Close してください。ボディの読み込みにもタイムアウトが適用されます。
func (c *Client) Open(ctx context.Context, reqURL string) (io.ReadCloser, error) {
	resp, err := c.do(ctx, reqURL)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

func (c *Client) do(ctx context.Context, reqURL string) (*http.Response, error) {
	parsedURL, err := url.Parse(reqURL)
	if err != nil {
		return nil, fmt.Errorf("リクエストURLの解析に失敗しました (%s): %w", reqURL, err)
	}

	if limiter := c.getLimiterForHost(parsedURL.Hostname()); limiter != nil {
		if err := limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("レートリミッター待機中にエラーが発生しました: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("GETリクエストの作成に失敗しました (%s): %w", reqURL, err)
	}
	for key, value := range c.defaultHeaders {
		req.Header.Set(key, value)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GETリクエストの送信に失敗しました (%s): %w", reqURL, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// コネクション再利用のため少しだけ読み捨てる
		_, _ = io.CopyN(io.Discard, resp.Body, 4096)
		resp.Body.Close()
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			URL:        reqURL,
			Message:    http.StatusText(resp.StatusCode),
		}
	}
	return resp, nil
}

// getLimiterForHost は、指定されたホスト名に対応するレートリミッターを返します。
// 間隔が設定されていないホストには nil を返し、待機しません。
func (c *Client) getLimiterForHost(host string) *rate.Limiter {
	return c.rateLimiters[host]
}
