package debrid

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"

	"onyxstream/internal/ratelimit"
)

// TorrentFile is one entry in a torrent's file listing as reported by the
// provider. The listing is transient: it exists only while a resolution is
// in flight.
type TorrentFile struct {
	ID       int    `json:"id"`
	Path     string `json:"path"`
	Bytes    int64  `json:"bytes"`
	Selected int    `json:"selected"`
}

// TorrentInfo is the provider's view of an added torrent.
type TorrentInfo struct {
	ID       string        `json:"id"`
	Filename string        `json:"filename"`
	Status   string        `json:"status"`
	Files    []TorrentFile `json:"files"`
	Links    []string      `json:"links"`
}

type addMagnetResponse struct {
	ID  string `json:"id"`
	URI string `json:"uri"`
}

// UnrestrictResult is an unlocked direct download link.
type UnrestrictResult struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
	Filesize int64  `json:"filesize"`
	Download string `json:"download"`
}

type apiError struct {
	Message string `json:"error"`
	Code    int    `json:"error_code"`
}

// transientStatusError marks a response worth retrying (429 or 5xx).
type transientStatusError struct {
	status int
}

func (e transientStatusError) Error() string {
	return fmt.Sprintf("provider returned status %d", e.status)
}

// Client talks to the Real-Debrid REST API. Every call waits on the shared
// CallLimiter first so concurrent resolutions respect the provider quota as
// a group, and transient failures are retried with a fixed backoff.
type Client struct {
	apiKey        string
	baseURL       string
	httpClient    *http.Client
	limiter       *ratelimit.CallLimiter
	retryAttempts uint
	retryBackoff  time.Duration
}

// NewClient creates a provider client. The limiter is shared process-wide;
// pass the same instance to every client.
func NewClient(apiKey, baseURL string, limiter *ratelimit.CallLimiter, retryAttempts int, retryBackoff time.Duration) *Client {
	if retryAttempts <= 0 {
		retryAttempts = 3
	}
	return &Client{
		apiKey:        strings.TrimSpace(apiKey),
		baseURL:       strings.TrimRight(baseURL, "/"),
		httpClient:    &http.Client{Timeout: 30 * time.Second},
		limiter:       limiter,
		retryAttempts: uint(retryAttempts),
		retryBackoff:  retryBackoff,
	}
}

// AddMagnet submits a magnet to the provider and returns the torrent id.
func (c *Client) AddMagnet(ctx context.Context, magnet string) (string, error) {
	trimmed := strings.TrimSpace(magnet)
	if trimmed == "" {
		return "", errors.New("magnet URI is required")
	}

	form := url.Values{}
	form.Set("magnet", trimmed)

	var resp addMagnetResponse
	if err := c.call(ctx, http.MethodPost, "/torrents/addMagnet", form, &resp); err != nil {
		return "", fmt.Errorf("add magnet: %w", err)
	}
	if resp.ID == "" {
		return "", errors.New("add magnet: provider returned no torrent id")
	}

	log.Printf("[debrid] magnet added: id=%s", resp.ID)
	return resp.ID, nil
}

// TorrentInfo fetches torrent status, file listing and generated links.
func (c *Client) TorrentInfo(ctx context.Context, torrentID string) (*TorrentInfo, error) {
	trimmed := strings.TrimSpace(torrentID)
	if trimmed == "" {
		return nil, errors.New("torrent id is required")
	}

	var info TorrentInfo
	if err := c.call(ctx, http.MethodGet, "/torrents/info/"+url.PathEscape(trimmed), nil, &info); err != nil {
		return nil, fmt.Errorf("torrent info: %w", err)
	}
	return &info, nil
}

// SelectFiles restricts provider processing to the given file ids
// (comma-separated).
func (c *Client) SelectFiles(ctx context.Context, torrentID, fileIDs string) error {
	trimmed := strings.TrimSpace(torrentID)
	if trimmed == "" {
		return errors.New("torrent id is required")
	}

	form := url.Values{}
	form.Set("files", fileIDs)

	if err := c.call(ctx, http.MethodPost, "/torrents/selectFiles/"+url.PathEscape(trimmed), form, nil); err != nil {
		return fmt.Errorf("select files: %w", err)
	}
	return nil
}

// UnrestrictLink exchanges a restricted provider link for a direct URL.
func (c *Client) UnrestrictLink(ctx context.Context, link string) (*UnrestrictResult, error) {
	trimmed := strings.TrimSpace(link)
	if trimmed == "" {
		return nil, errors.New("link is required")
	}

	form := url.Values{}
	form.Set("link", trimmed)

	var result UnrestrictResult
	if err := c.call(ctx, http.MethodPost, "/unrestrict/link", form, &result); err != nil {
		return nil, fmt.Errorf("unrestrict link: %w", err)
	}
	if result.Download == "" {
		return nil, errors.New("unrestrict link: provider returned no download URL")
	}
	return &result, nil
}

// call performs one rate-limited API request, retrying 429/5xx responses and
// network errors with a fixed backoff. Auth rejections abort immediately.
func (c *Client) call(ctx context.Context, method, path string, form url.Values, out any) error {
	operation := func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return retry.Unrecoverable(err)
		}

		var body io.Reader
		if form != nil {
			body = strings.NewReader(form.Encode())
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
		if err != nil {
			return retry.Unrecoverable(fmt.Errorf("build request: %w", err))
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		if form != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Unrecoverable(ctx.Err())
			}
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return retry.Unrecoverable(fmt.Errorf("%w (status %d)", ErrProviderAuth, resp.StatusCode))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return transientStatusError{status: resp.StatusCode}
		case resp.StatusCode >= 400:
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			var apiErr apiError
			if json.Unmarshal(raw, &apiErr) == nil && apiErr.Message != "" {
				return retry.Unrecoverable(fmt.Errorf("provider error %d: %s", resp.StatusCode, apiErr.Message))
			}
			return retry.Unrecoverable(fmt.Errorf("provider error %d", resp.StatusCode))
		}

		if out == nil {
			io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
			return nil
		}

		raw, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read response: %w", err)
		}
		if err := json.Unmarshal(raw, out); err != nil {
			return retry.Unrecoverable(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	err := retry.Do(
		operation,
		retry.Context(ctx),
		retry.Attempts(c.retryAttempts),
		retry.Delay(c.retryBackoff),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
	)
	if err == nil {
		return nil
	}

	var transient transientStatusError
	if errors.As(err, &transient) {
		return fmt.Errorf("%w: %s after %d attempts", ErrProviderUnavailable, transient.Error(), c.retryAttempts)
	}
	if !errors.Is(err, ErrProviderAuth) && !errors.Is(err, context.Canceled) && isNetworkError(err) {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return err
}

// isNetworkError distinguishes transport failures from API-level rejections
// so exhausted network retries surface as provider unavailability.
func isNetworkError(err error) bool {
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}
