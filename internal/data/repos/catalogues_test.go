package repos

import (
	"testing"

	"gorm.io/datatypes"

	"github.com/ellyeware/idiombot/internal/domain"
)

func TestCatalogueUpsertAndOrder(t *testing.T) {
	repo := NewCatalogueRepo(testDB(t), nopLog())

	entries := []*domain.Catalogue{
		{ID: "269077688", Aliases: datatypes.JSONSlice[string]{"查理"}, Position: 2},
		{ID: "491673070", Aliases: datatypes.JSONSlice[string]{"怡宝", "Poppy"}, Position: 1},
	}
	for _, e := range entries {
		if err := repo.Upsert(testCtx(), e); err != nil {
			t.Fatalf("Upsert(%s): %v", e.ID, err)
		}
	}

	all, err := repo.All(testCtx())
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 2 || all[0].ID != "491673070" || all[1].ID != "269077688" {
		t.Fatalf("position order: %+v", all)
	}

	// second upsert replaces aliases and position in place
	if err := repo.Upsert(testCtx(), &domain.Catalogue{
		ID:       "491673070",
		Aliases:  datatypes.JSONSlice[string]{"怡宝"},
		Position: 3,
	}); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	row, err := repo.GetByID(testCtx(), "491673070")
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row == nil || len(row.Aliases) != 1 || row.Position != 3 {
		t.Fatalf("replaced row: %+v", row)
	}

	all, err = repo.All(testCtx())
	if err != nil || len(all) != 2 {
		t.Fatalf("All after replace: %+v err=%v", all, err)
	}
}

func TestCatalogueDelete(t *testing.T) {
	repo := NewCatalogueRepo(testDB(t), nopLog())
	if err := repo.Upsert(testCtx(), &domain.Catalogue{
		ID:      "491673070",
		Aliases: datatypes.JSONSlice[string]{"怡宝"},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := repo.Delete(testCtx(), "491673070"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	row, err := repo.GetByID(testCtx(), "491673070")
	if err != nil || row != nil {
		t.Fatalf("row should be gone: %+v err=%v", row, err)
	}
}
