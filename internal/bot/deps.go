// Package bot implements the chat-facing services: upload intake, search
// replies and moderation commands. Handlers stay thin; every behavior lives
// here against narrow dependency interfaces.
package bot

import (
	"context"
	"io"
	"time"

	"github.com/ellyeware/idiombot/internal/data/index"
)

// ImageStore is the slice of the bucket client the bot needs.
type ImageStore interface {
	UploadFile(ctx context.Context, key string, file io.Reader) error
	DownloadFile(ctx context.Context, key string) ([]byte, error)
	DeleteFile(ctx context.Context, key string) error
	GetPublicURL(key string) string
}

// OCRClient extracts text fragments from image bytes.
type OCRClient interface {
	TextFragments(ctx context.Context, img []byte) ([]string, error)
}

// SearchIndex mutates the full-text index alongside the store of record.
type SearchIndex interface {
	Upsert(doc index.Doc) error
	Delete(imageHash string) error
}

// Deduper produces the advisory duplicate warning for freshly stored hashes.
type Deduper interface {
	Check(ctx context.Context, hashes ...string) string
}

// Limiter throttles per-user actions. A nil Limiter disables throttling.
type Limiter interface {
	Hit(ctx context.Context, action, userID string, limit int, window time.Duration) (allowed bool, err error)
}
