package favorite

import (
	"context"
	"errors"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	gdb, err := gorm.Open(gormsqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := gdb.AutoMigrate(&Favorite{}); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return gdb
}

func TestFavoriteCRUD(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	fav := &Favorite{
		UserID:    "alice",
		UserEmail: "alice@example.com",
		Question:  "monthly revenue by region",
		SQLQuery:  "SELECT region, SUM(revenue) FROM sales GROUP BY region",
	}
	if err := repo.Create(ctx, fav); err != nil {
		t.Fatalf("create: %v", err)
	}
	if fav.ID == 0 {
		t.Fatalf("expected id to be assigned")
	}

	favs, err := repo.List(ctx, "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(favs) != 1 || favs[0].Question != fav.Question {
		t.Fatalf("unexpected list result: %+v", favs)
	}

	if err := repo.Update(ctx, fav.ID, "alice", "revenue by region", ""); err != nil {
		t.Fatalf("update: %v", err)
	}
	favs, _ = repo.List(ctx, "alice")
	if favs[0].Question != "revenue by region" || favs[0].SQLQuery != "" {
		t.Fatalf("update not applied: %+v", favs[0])
	}

	if err := repo.Delete(ctx, fav.ID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	favs, _ = repo.List(ctx, "alice")
	if len(favs) != 0 {
		t.Fatalf("expected empty list after delete, got %+v", favs)
	}
}

func TestFavorite_OwnershipGuard(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	fav := &Favorite{UserID: "alice", Question: "q", SQLQuery: "SELECT 1"}
	if err := repo.Create(ctx, fav); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := repo.Update(ctx, fav.ID, "mallory", "stolen", ""); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for foreign update, got %v", err)
	}
	if err := repo.Delete(ctx, fav.ID, "mallory"); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound for foreign delete, got %v", err)
	}

	favs, err := repo.List(ctx, "alice")
	if err != nil || len(favs) != 1 || favs[0].Question != "q" {
		t.Fatalf("row should be untouched: %+v err=%v", favs, err)
	}
}

func TestFavorite_ListIsPerUser(t *testing.T) {
	repo := NewRepo(openTestDB(t))
	ctx := context.Background()

	if err := repo.Create(ctx, &Favorite{UserID: "alice", Question: "a", SQLQuery: "SELECT 1"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := repo.Create(ctx, &Favorite{UserID: "bob", Question: "b", SQLQuery: "SELECT 2"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	favs, err := repo.List(ctx, "bob")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(favs) != 1 || favs[0].Question != "b" {
		t.Fatalf("expected only bob's favorite, got %+v", favs)
	}
}
