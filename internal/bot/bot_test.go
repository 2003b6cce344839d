package bot

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ellyeware/idiombot/internal/clients/telegram"
	"github.com/ellyeware/idiombot/internal/core/dedup"
	"github.com/ellyeware/idiombot/internal/data/index"
	"github.com/ellyeware/idiombot/internal/data/repos"
	"github.com/ellyeware/idiombot/internal/domain"
	"github.com/ellyeware/idiombot/internal/platform/dbctx"
	"github.com/ellyeware/idiombot/internal/platform/logger"
)

var pngMagic = []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}

// pngBytes builds a distinct fake PNG payload per seed.
func pngBytes(seed string) []byte {
	return append(append([]byte{}, pngMagic...), []byte(seed)...)
}

type fixture struct {
	idioms     repos.IdiomRepo
	greylist   repos.GreylistRepo
	catalogues CatalogueService
	idx        *index.Index
	images     *fakeImages
	ocr        *fakeOCR
	fetcher    *fakeFetcher
	relay      *fakeRelay
	deduper    *dedup.Detector
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Idiom{}, &domain.Catalogue{}, &domain.GreylistEntry{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	nop := logger.NewNop()

	catRepo := repos.NewCatalogueRepo(db, nop)
	seedCats := []*domain.Catalogue{
		{ID: "491673070", Aliases: datatypes.JSONSlice[string]{"怡宝", "Poppy"}, Position: 1},
		{ID: "269077688", Aliases: datatypes.JSONSlice[string]{"查理"}, Position: 2},
	}
	for _, c := range seedCats {
		if err := catRepo.Upsert(dbctx.New(context.Background()), c); err != nil {
			t.Fatalf("seed catalogue: %v", err)
		}
	}
	cats := NewCatalogueService(catRepo, nop)
	if err := cats.Reload(context.Background()); err != nil {
		t.Fatalf("reload catalogues: %v", err)
	}

	idx, err := index.New("", nop)
	if err != nil {
		t.Fatalf("mem index: %v", err)
	}
	t.Cleanup(func() { _ = idx.Close() })

	idioms := repos.NewIdiomRepo(db, nop)
	fx := &fixture{
		idioms:     idioms,
		greylist:   repos.NewGreylistRepo(db, nop),
		catalogues: cats,
		idx:        idx,
		images:     &fakeImages{files: map[string][]byte{}},
		ocr:        &fakeOCR{},
		fetcher:    &fakeFetcher{responses: map[string][]byte{}},
		relay:      &fakeRelay{},
		deduper:    dedup.NewDetector(NewStoreAdapter(idioms), idx, nop),
	}
	return fx
}

func (fx *fixture) uploadService(t *testing.T, whitelist Whitelist, limiter Limiter) UploadService {
	t.Helper()
	return NewUploadService(
		fx.idioms, fx.idx, fx.images, fx.ocr, fx.fetcher, fx.relay,
		fx.deduper, fx.catalogues, limiter, whitelist, logger.NewNop(),
	)
}

func (fx *fixture) adminService(t *testing.T) AdminService {
	t.Helper()
	return NewAdminService(fx.idioms, fx.greylist, fx.idx, fx.images, fx.ocr, fx.relay, fx.catalogues, logger.NewNop())
}

type fakeImages struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (f *fakeImages) UploadFile(_ context.Context, key string, file io.Reader) error {
	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[key] = data
	return nil
}

func (f *fakeImages) DownloadFile(_ context.Context, key string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.files[key]
	if !ok {
		return nil, fmt.Errorf("no such object %q", key)
	}
	return data, nil
}

func (f *fakeImages) DeleteFile(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, key)
	return nil
}

func (f *fakeImages) GetPublicURL(key string) string {
	return "https://img.test/" + key
}

type fakeOCR struct {
	fragments map[string][]string // keyed by payload seed
	err       error
}

func (f *fakeOCR) TextFragments(_ context.Context, img []byte) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.fragments == nil {
		return nil, nil
	}
	seed := string(bytes.TrimPrefix(img, pngMagic))
	return f.fragments[seed], nil
}

type fakeFetcher struct {
	responses map[string][]byte
	err       error
}

func (f *fakeFetcher) Fetch(_ context.Context, url string) ([]byte, error) {
	if f.err != nil {
		return nil, f.err
	}
	data, ok := f.responses[url]
	if !ok {
		return nil, fmt.Errorf("unexpected url %q", url)
	}
	return data, nil
}

type relayCall struct {
	underReview bool
	caption     string
	photos      int
}

type fakeRelay struct {
	mu    sync.Mutex
	calls []relayCall
	err   error
}

func (f *fakeRelay) SendPhoto(_ context.Context, underReview bool, caption, _ string, _ []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, relayCall{underReview: underReview, caption: caption, photos: 1})
	return nil
}

func (f *fakeRelay) SendAlbum(_ context.Context, underReview bool, caption string, images []telegram.Photo) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.calls = append(f.calls, relayCall{underReview: underReview, caption: caption, photos: len(images)})
	return nil
}

type fakeLimiter struct {
	allowed bool
	hits    int
}

func (f *fakeLimiter) Hit(_ context.Context, _, _ string, _ int, _ time.Duration) (bool, error) {
	f.hits++
	return f.allowed, nil
}
