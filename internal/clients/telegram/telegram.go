// Package telegram relays idiom images to Telegram chats over the Bot API.
// Fresh uploads land in the review chat; approved idioms are mirrored to the
// public channel.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/ellyeware/idiombot/internal/platform/httpx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

const (
	defaultAPIBase = "https://api.telegram.org"

	maxAttempts  = 3
	retryBackoff = 2 * time.Second
	maxBackoff   = 30 * time.Second
)

type Relay interface {
	SendPhoto(ctx context.Context, underReview bool, caption, filename string, image []byte) error
	SendAlbum(ctx context.Context, underReview bool, caption string, images []Photo) error
}

// Photo is one album element for SendAlbum.
type Photo struct {
	Filename string
	Data     []byte
}

type relay struct {
	log        *logger.Logger
	httpClient *http.Client
	apiBase    string
	token      string
	reviewChat string
	publicChat string
}

func NewRelay(log *logger.Logger) (Relay, error) {
	token := strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	if token == "" {
		return nil, fmt.Errorf("missing env var TELEGRAM_BOT_TOKEN")
	}
	reviewChat := strings.TrimSpace(os.Getenv("TELEGRAM_REVIEW_CHAT_ID"))
	publicChat := strings.TrimSpace(os.Getenv("TELEGRAM_PUBLIC_CHAT_ID"))
	if reviewChat == "" || publicChat == "" {
		return nil, fmt.Errorf("missing env var TELEGRAM_REVIEW_CHAT_ID or TELEGRAM_PUBLIC_CHAT_ID")
	}
	apiBase := strings.TrimSpace(os.Getenv("TELEGRAM_API_BASE"))
	if apiBase == "" {
		apiBase = defaultAPIBase
	}

	return &relay{
		log:        log.With("service", "telegram.Relay"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		apiBase:    strings.TrimRight(apiBase, "/"),
		token:      token,
		reviewChat: reviewChat,
		publicChat: publicChat,
	}, nil
}

func (r *relay) chatFor(underReview bool) string {
	if underReview {
		return r.reviewChat
	}
	return r.publicChat
}

func (r *relay) SendPhoto(ctx context.Context, underReview bool, caption, filename string, image []byte) error {
	return r.sendPhoto(ctx, r.chatFor(underReview), caption, filename, image)
}

func (r *relay) sendPhoto(ctx context.Context, chat, caption, filename string, image []byte) error {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("chat_id", chat)
	if caption != "" {
		_ = w.WriteField("caption", caption)
	}
	fw, err := w.CreateFormFile("photo", filename)
	if err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	if _, err := fw.Write(image); err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	return r.post(ctx, "sendPhoto", w.FormDataContentType(), body.Bytes())
}

func (r *relay) SendAlbum(ctx context.Context, underReview bool, caption string, images []Photo) error {
	chat := r.chatFor(underReview)
	if len(images) == 0 {
		return nil
	}
	if len(images) == 1 {
		return r.sendPhoto(ctx, chat, caption, images[0].Filename, images[0].Data)
	}

	type mediaItem struct {
		Type    string `json:"type"`
		Media   string `json:"media"`
		Caption string `json:"caption,omitempty"`
	}
	media := make([]mediaItem, 0, len(images))
	for i, img := range images {
		item := mediaItem{Type: "photo", Media: "attach://" + img.Filename}
		// the album caption rides on the first element
		if i == 0 {
			item.Caption = caption
		}
		media = append(media, item)
	}
	mediaJSON, err := json.Marshal(media)
	if err != nil {
		return fmt.Errorf("marshal media group: %w", err)
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	_ = w.WriteField("chat_id", chat)
	_ = w.WriteField("media", string(mediaJSON))
	for _, img := range images {
		fw, err := w.CreateFormFile(img.Filename, img.Filename)
		if err != nil {
			return fmt.Errorf("build multipart: %w", err)
		}
		if _, err := fw.Write(img.Data); err != nil {
			return fmt.Errorf("build multipart: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("build multipart: %w", err)
	}
	return r.post(ctx, "sendMediaGroup", w.FormDataContentType(), body.Bytes())
}

func (r *relay) post(ctx context.Context, method, contentType string, body []byte) error {
	url := fmt.Sprintf("%s/bot%s/%s", r.apiBase, r.token, method)

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Content-Type", contentType)

		resp, err := r.httpClient.Do(req)
		if err != nil {
			lastErr = err
			if !httpx.IsRetryableError(err) || attempt == maxAttempts {
				return fmt.Errorf("telegram %s: %w", method, err)
			}
			time.Sleep(httpx.JitterSleep(retryBackoff))
			continue
		}

		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		_ = resp.Body.Close()

		if resp.StatusCode == http.StatusOK {
			return nil
		}
		lastErr = fmt.Errorf("telegram %s: status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(respBody)))
		if !httpx.IsRetryableHTTPStatus(resp.StatusCode) || attempt == maxAttempts {
			return lastErr
		}
		sleepFor := httpx.RetryAfterDuration(resp, retryBackoff, maxBackoff)
		r.log.Warn("telegram request retrying", "method", method, "status", resp.StatusCode, "attempt", attempt)
		time.Sleep(httpx.JitterSleep(sleepFor))
	}
	return lastErr
}
