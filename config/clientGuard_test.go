package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"bitbucket.org/greenops/fieldops_backend/appctx"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func TestWhereHasClientID(t *testing.T) {
	cases := []struct {
		name string
		expr clause.Expression
		want bool
	}{
		{"eq column", clause.Eq{Column: clause.Column{Name: "client_id"}, Value: "c1"}, true},
		{"eq string", clause.Eq{Column: "CLIENT_ID", Value: "c1"}, true},
		{"in", clause.IN{Column: clause.Column{Name: "client_id"}, Values: []interface{}{"c1"}}, true},
		{"raw", clause.Expr{SQL: "site_id = ? AND client_id = ?"}, true},
		{"nested and", clause.AndConditions{Exprs: []clause.Expression{
			clause.Eq{Column: "site_id", Value: "s1"},
			clause.Eq{Column: "client_id", Value: "c1"},
		}}, true},
		{"other column", clause.Eq{Column: clause.Column{Name: "site_id"}, Value: "s1"}, false},
	}
	for _, tc := range cases {
		c := clause.Clause{Expression: clause.Where{Exprs: []clause.Expression{tc.expr}}}
		if got := whereHasClientID(c); got != tc.want {
			t.Fatalf("%s: got %v want %v", tc.name, got, tc.want)
		}
	}
	if whereHasClientID(clause.Clause{}) {
		t.Fatalf("empty clause reported a client filter")
	}
}

func TestClientScope(t *testing.T) {
	ctx := appctx.Set(context.Background(), appctx.ContextKeyClientId, "c1")
	if got, scoped := ClientScope(ctx); !scoped || got != "c1" {
		t.Fatalf("client request: got %q scoped=%v", got, scoped)
	}
	if _, scoped := ClientScope(context.Background()); scoped {
		t.Fatalf("request without a client was scoped")
	}
	if _, scoped := ClientScope(appctx.Set(ctx, appctx.ContextKeyIsAdmin, true)); scoped {
		t.Fatalf("admin was scoped")
	}
	if _, scoped := ClientScope(appctx.Set(ctx, appctx.ContextKeySkipClientScope, true)); scoped {
		t.Fatalf("skip flag was ignored")
	}
}

type guardedRow struct {
	ID       string `gorm:"primary_key"`
	ClientId string
	Name     string
}

type unguardedRow struct {
	ID   string `gorm:"primary_key"`
	Name string
}

// dryRunDB builds statements without a server.
func dryRunDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(mysql.New(mysql.Config{
		DSN:                       "guard:guard@tcp(127.0.0.1:3306)/guard?parseTime=true",
		SkipInitializeWithVersion: true,
	}), &gorm.Config{DryRun: true, DisableAutomaticPing: true, SkipDefaultTransaction: true})
	if err != nil {
		t.Fatalf("gorm.Open: %v", err)
	}
	if err := db.Use(NewClientGuardPlugin()); err != nil {
		t.Fatalf("Use: %v", err)
	}
	return db
}

func TestClientGuardFiltersReads(t *testing.T) {
	db := dryRunDB(t)
	ctx := appctx.Set(context.Background(), appctx.ContextKeyClientId, "c1")

	var rows []guardedRow
	stmt := db.WithContext(ctx).Where("name = ?", "x").Find(&rows).Statement
	if sql := stmt.SQL.String(); !strings.Contains(sql, "client_id") {
		t.Fatalf("guarded read without client filter: %s", sql)
	}

	var other []unguardedRow
	stmt = db.WithContext(ctx).Find(&other).Statement
	if sql := stmt.SQL.String(); strings.Contains(sql, "client_id") {
		t.Fatalf("table without client_id was filtered: %s", sql)
	}
}

func TestClientGuardStampsCreates(t *testing.T) {
	db := dryRunDB(t)
	ctx := appctx.Set(context.Background(), appctx.ContextKeyClientId, "c1")

	row := guardedRow{ID: "r1", Name: "Block A"}
	if err := db.WithContext(ctx).Create(&row).Error; err != nil {
		t.Fatalf("Create: %v", err)
	}
	if row.ClientId != "c1" {
		t.Fatalf("client not stamped: %+v", row)
	}

	batch := []guardedRow{{ID: "r2"}, {ID: "r3", ClientId: "c1"}}
	if err := db.WithContext(ctx).Create(&batch).Error; err != nil {
		t.Fatalf("Create batch: %v", err)
	}
	if batch[0].ClientId != "c1" {
		t.Fatalf("batch row not stamped: %+v", batch[0])
	}

	foreign := guardedRow{ID: "r4", ClientId: "c2"}
	if err := db.WithContext(ctx).Create(&foreign).Error; !errors.Is(err, ErrForeignClient) {
		t.Fatalf("foreign create: got %v want ErrForeignClient", err)
	}

	admin := appctx.Set(ctx, appctx.ContextKeyIsAdmin, true)
	if err := db.WithContext(admin).Create(&guardedRow{ID: "r5", ClientId: "c2"}).Error; err != nil {
		t.Fatalf("admin create: %v", err)
	}
}

func TestFeatureFlagsFromEnv(t *testing.T) {
	t.Setenv("STORE_DRIVER", "Memory")
	if !UseMemoryStore() {
		t.Fatalf("STORE_DRIVER=Memory not recognised")
	}
	t.Setenv("DEFAULT_ALLOWED_EDIT_DAYS", "-3")
	if got := DefaultAllowedEditDays(); got != 7 {
		t.Fatalf("negative edit days: got %d want 7", got)
	}
	t.Setenv("DEFAULT_ALLOWED_EDIT_DAYS", "10")
	if got := DefaultAllowedEditDays(); got != 10 {
		t.Fatalf("edit days: got %d want 10", got)
	}
}
