package bot

import (
	"context"
	"strings"
	"testing"

	"github.com/ellyeware/idiombot/internal/platform/dbctx"
)

func TestAdminDelete(t *testing.T) {
	fx := newFixture(t)
	seedIdiomRow(t, fx, "aaaa111122223333", []string{"可爱"}, nil, false)
	fx.images.files["aaaa111122223333.jpg"] = pngBytes("one")
	svc := fx.adminService(t)

	reply, err := svc.Delete(context.Background(), "AAAA11", "test")
	if err != nil || reply != "已删除。" {
		t.Fatalf("reply: %q err=%v", reply, err)
	}
	row, err := fx.idioms.GetByImageHash(dbctx.New(context.Background()), "aaaa111122223333")
	if err != nil || row != nil {
		t.Fatalf("row should be gone: %+v err=%v", row, err)
	}
	if _, ok := fx.images.files["aaaa111122223333.jpg"]; ok {
		t.Fatal("stored image should be gone")
	}
}

func TestAdminResolveFailures(t *testing.T) {
	fx := newFixture(t)
	seedIdiomRow(t, fx, "abcd111122223333", nil, nil, false)
	seedIdiomRow(t, fx, "abcd999988887777", nil, nil, false)
	svc := fx.adminService(t)

	reply, err := svc.Delete(context.Background(), "FFFF00", "test")
	if err != nil || !strings.Contains(reply, "未找到ID为 FFFF00") {
		t.Fatalf("not-found reply: %q err=%v", reply, err)
	}

	reply, err = svc.Delete(context.Background(), "ABCD", "test")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if !strings.Contains(reply, "不明确") || !strings.Contains(reply, "ABCD11") || !strings.Contains(reply, "ABCD99") {
		t.Fatalf("conflict reply: %q", reply)
	}
}

func TestAdminApprove(t *testing.T) {
	fx := newFixture(t)
	seedIdiomRow(t, fx, "aaaa111122223333", []string{"可爱"}, nil, true)
	fx.images.files["aaaa111122223333.jpg"] = pngBytes("one")
	svc := fx.adminService(t)

	reply, err := svc.Approve(context.Background(), "AAAA11", "test")
	if err != nil || reply != "已通过审核。" {
		t.Fatalf("reply: %q err=%v", reply, err)
	}
	row, err := fx.idioms.GetByImageHash(dbctx.New(context.Background()), "aaaa111122223333")
	if err != nil || row == nil || row.UnderReview {
		t.Fatalf("row: %+v err=%v", row, err)
	}
	if len(fx.relay.calls) != 1 || fx.relay.calls[0].underReview {
		t.Fatalf("approval must relay to the public chat: %+v", fx.relay.calls)
	}

	reply, err = svc.Approve(context.Background(), "AAAA11", "test")
	if err != nil || reply != "该图片无需审核。" {
		t.Fatalf("second approve: %q err=%v", reply, err)
	}
}

func TestAdminRejectStrikesUploader(t *testing.T) {
	fx := newFixture(t)
	seedIdiomRow(t, fx, "aaaa111122223333", nil, nil, true)
	svc := fx.adminService(t)

	reply, err := svc.Reject(context.Background(), "AAAA11", "test")
	if err != nil || reply != "已拒绝。" {
		t.Fatalf("reply: %q err=%v", reply, err)
	}
	row, err := fx.idioms.GetByImageHash(dbctx.New(context.Background()), "aaaa111122223333")
	if err != nil || row != nil {
		t.Fatalf("row should be gone: %+v err=%v", row, err)
	}
	count, err := fx.greylist.Count(dbctx.New(context.Background()), "42", "qq")
	if err != nil || count != 1 {
		t.Fatalf("greylist count: %d err=%v", count, err)
	}
}

func TestAdminTagEditing(t *testing.T) {
	fx := newFixture(t)
	seedIdiomRow(t, fx, "aaaa111122223333", []string{"可爱"}, nil, false)
	svc := fx.adminService(t)
	dbc := dbctx.New(context.Background())

	reply, err := svc.AddTags(context.Background(), "AAAA11", "test", []string{"猫猫"})
	if err != nil || reply != "已更新标签。" {
		t.Fatalf("AddTags: %q err=%v", reply, err)
	}
	row, _ := fx.idioms.GetByImageHash(dbc, "aaaa111122223333")
	if len(row.Tags) != 2 {
		t.Fatalf("merged tags: %v", row.Tags)
	}

	reply, err = svc.SetTags(context.Background(), "AAAA11", "test", []string{"重写"})
	if err != nil || reply != "已更新标签。" {
		t.Fatalf("SetTags: %q err=%v", reply, err)
	}
	row, _ = fx.idioms.GetByImageHash(dbc, "aaaa111122223333")
	if len(row.Tags) != 1 || row.Tags[0] != "重写" {
		t.Fatalf("replaced tags: %v", row.Tags)
	}

	reply, err = svc.AddTags(context.Background(), "AAAA11", "test", nil)
	if err != nil || reply != "请输入标签。" {
		t.Fatalf("empty tags: %q err=%v", reply, err)
	}
}

func TestAdminSetCatalogue(t *testing.T) {
	fx := newFixture(t)
	seedIdiomRow(t, fx, "aaaa111122223333", nil, nil, false)
	svc := fx.adminService(t)

	reply, err := svc.SetCatalogue(context.Background(), "AAAA11", "test", []string{"查理"})
	if err != nil || reply != "已更新分类。" {
		t.Fatalf("reply: %q err=%v", reply, err)
	}
	row, _ := fx.idioms.GetByImageHash(dbctx.New(context.Background()), "aaaa111122223333")
	if len(row.Catalogue) != 1 || row.Catalogue[0] != "269077688" {
		t.Fatalf("catalogue: %v", row.Catalogue)
	}

	reply, err = svc.SetCatalogue(context.Background(), "AAAA11", "test", []string{"不存在的人"})
	if err != nil || !strings.Contains(reply, "未知分类") {
		t.Fatalf("unknown catalogue: %q err=%v", reply, err)
	}
}

func TestAdminReOCR(t *testing.T) {
	fx := newFixture(t)
	seedIdiomRow(t, fx, "aaaa111122223333", []string{"可爱"}, nil, false)
	fx.images.files["aaaa111122223333.jpg"] = pngBytes("one")
	fx.ocr.fragments = map[string][]string{"one": {"重新识别的文字"}}
	svc := fx.adminService(t)

	reply, err := svc.ReOCR(context.Background(), "AAAA11", "test")
	if err != nil || reply != "已更新文字识别结果。" {
		t.Fatalf("reply: %q err=%v", reply, err)
	}
	row, err := fx.idioms.GetByImageHash(dbctx.New(context.Background()), "aaaa111122223333")
	if err != nil || row == nil {
		t.Fatalf("row: %+v err=%v", row, err)
	}
	if len(row.OCRText) != 1 || row.OCRText[0] != "重新识别的文字" {
		t.Fatalf("ocr text: %v", row.OCRText)
	}

	fx.ocr.err = context.DeadlineExceeded
	reply, err = svc.ReOCR(context.Background(), "AAAA11", "test")
	if err != nil || !strings.Contains(reply, "文字识别失败") {
		t.Fatalf("ocr failure reply: %q err=%v", reply, err)
	}
}

func TestAdminEditAfterDeletion(t *testing.T) {
	fx := newFixture(t)
	seedIdiomRow(t, fx, "aaaa111122223333", nil, nil, false)
	svc := fx.adminService(t)

	if err := fx.idioms.DeleteByImageHash(dbctx.New(context.Background()), "aaaa111122223333"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	reply, err := svc.SetTags(context.Background(), "AAAA11", "test", []string{"猫猫"})
	if err != nil || !strings.Contains(reply, "未找到ID为 AAAA11") {
		t.Fatalf("reply: %q err=%v", reply, err)
	}
}

func TestAdminPendingAndStats(t *testing.T) {
	fx := newFixture(t)
	svc := fx.adminService(t)

	reply, err := svc.Pending(context.Background())
	if err != nil || reply.Message != "当前没有待审核的投稿。" {
		t.Fatalf("empty pending: %+v err=%v", reply, err)
	}

	seedIdiomRow(t, fx, "aaaa111122223333", []string{"可爱"}, nil, true)
	seedIdiomRow(t, fx, "bbbb111122223333", nil, nil, false)

	reply, err = svc.Pending(context.Background())
	if err != nil {
		t.Fatalf("Pending: %v", err)
	}
	text := textOf(t, reply.Segments)
	if !strings.Contains(text, "ID：AAAA11") || strings.Contains(text, "BBBB11") {
		t.Fatalf("pending listing: %q", text)
	}

	stats, err := svc.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if !strings.Contains(stats, "已收录：1") || !strings.Contains(stats, "待审核：1") {
		t.Fatalf("stats: %q", stats)
	}
	if !strings.Contains(stats, "42：1") {
		t.Fatalf("uploader rank missing: %q", stats)
	}
}

func TestAdminRandom(t *testing.T) {
	fx := newFixture(t)
	svc := fx.adminService(t)

	reply, err := svc.Random(context.Background())
	if err != nil || reply.Message != "图库是空的。" {
		t.Fatalf("empty library: %+v err=%v", reply, err)
	}

	seedIdiomRow(t, fx, "aaaa111122223333", []string{"可爱"}, nil, false)
	reply, err = svc.Random(context.Background())
	if err != nil || len(reply.Segments) != 2 {
		t.Fatalf("random: %+v err=%v", reply, err)
	}
}
