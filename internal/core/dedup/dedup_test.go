package dedup

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ellyeware/idiombot/internal/platform/logger"
)

type fakeStore struct {
	ocr map[string][]string
	err error
}

func (f *fakeStore) OCRTextByHash(_ context.Context, hash string) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.ocr[hash], nil
}

type fakeEngine struct {
	candidates []Candidate
	err        error
	gotText    string
}

func (f *fakeEngine) SimilarByOCRText(_ context.Context, text string) ([]Candidate, error) {
	f.gotText = text
	if f.err != nil {
		return nil, f.err
	}
	return f.candidates, nil
}

func detector(store *fakeStore, engine *fakeEngine) *Detector {
	return NewDetector(store, engine, logger.NewNop())
}

func TestScoreThresholdBands(t *testing.T) {
	cases := []struct {
		runeLen int
		want    float64
	}{
		{0, 8}, {9, 8}, {10, 16}, {29, 16}, {30, 32}, {500, 32},
	}
	for _, c := range cases {
		if got := scoreThreshold(c.runeLen); got != c.want {
			t.Fatalf("scoreThreshold(%d): got %v want %v", c.runeLen, got, c.want)
		}
	}
}

func TestLongTextAboveThresholdWarns(t *testing.T) {
	long := strings.Repeat("词", 30)
	store := &fakeStore{ocr: map[string][]string{"aaaa111122223333": {long}}}
	engine := &fakeEngine{candidates: []Candidate{{Hash: "bbbb111122223333", Score: 33}}}

	warning := detector(store, engine).Check(context.Background(), "aaaa111122223333")
	if warning == "" {
		t.Fatal("expected a duplicate warning")
	}
	if !strings.Contains(warning, "AAAA11") || !strings.Contains(warning, "BBBB11") {
		t.Fatalf("warning should name both short IDs: %q", warning)
	}
	if engine.gotText != long {
		t.Fatalf("engine queried with %q", engine.gotText)
	}
}

func TestScoreAtThresholdIsQuiet(t *testing.T) {
	long := strings.Repeat("词", 30)
	store := &fakeStore{ocr: map[string][]string{"aaaa111122223333": {long}}}
	engine := &fakeEngine{candidates: []Candidate{{Hash: "bbbb111122223333", Score: 32}}}

	if got := detector(store, engine).Check(context.Background(), "aaaa111122223333"); got != "" {
		t.Fatalf("score equal to threshold must not warn: %q", got)
	}
}

func TestShortTextUsesLowThreshold(t *testing.T) {
	store := &fakeStore{ocr: map[string][]string{"aaaa111122223333": {"短文本"}}}
	engine := &fakeEngine{candidates: []Candidate{{Hash: "bbbb111122223333", Score: 8.5}}}

	if got := detector(store, engine).Check(context.Background(), "aaaa111122223333"); got == "" {
		t.Fatal("score 8.5 on short text must warn (threshold 8)")
	}
}

func TestSelfMatchSkipped(t *testing.T) {
	long := strings.Repeat("词", 30)
	store := &fakeStore{ocr: map[string][]string{"aaaa111122223333": {long}}}
	engine := &fakeEngine{candidates: []Candidate{
		{Hash: "aaaa111122223333", Score: 99},
		{Hash: "bbbb111122223333", Score: 40},
	}}

	warning := detector(store, engine).Check(context.Background(), "aaaa111122223333")
	if !strings.Contains(warning, "BBBB11") {
		t.Fatalf("self match must be skipped in favor of the next hit: %q", warning)
	}
}

func TestOnlySelfMatchIsQuiet(t *testing.T) {
	long := strings.Repeat("词", 30)
	store := &fakeStore{ocr: map[string][]string{"aaaa111122223333": {long}}}
	engine := &fakeEngine{candidates: []Candidate{{Hash: "aaaa111122223333", Score: 99}}}

	if got := detector(store, engine).Check(context.Background(), "aaaa111122223333"); got != "" {
		t.Fatalf("only a self match means no known duplicate: %q", got)
	}
}

func TestMissingOCRTextSkipsSilently(t *testing.T) {
	store := &fakeStore{ocr: map[string][]string{}}
	engine := &fakeEngine{}

	if got := detector(store, engine).Check(context.Background(), "aaaa111122223333"); got != "" {
		t.Fatalf("no OCR text must be silent: %q", got)
	}
	if engine.gotText != "" {
		t.Fatal("similarity engine must not be queried without OCR text")
	}
}

func TestBatchPartialFailure(t *testing.T) {
	long := strings.Repeat("词", 30)
	store := &fakeStore{ocr: map[string][]string{
		"aaaa111122223333": {long},
		"cccc111122223333": {long},
	}}
	engine := &fakeEngine{err: errors.New("engine down")}

	warning := detector(store, engine).Check(context.Background(), "aaaa111122223333", "cccc111122223333")
	if !strings.Contains(warning, "AAAA11") || !strings.Contains(warning, "CCCC11") {
		t.Fatalf("each batch item should report its own failure: %q", warning)
	}
}
