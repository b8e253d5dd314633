package workflow_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"bitbucket.org/greenops/fieldops_backend/workflow"
	"github.com/google/go-cmp/cmp"
)

// 2025-08-20 12:00 at the fixture sites.
var fixtureNow = time.Date(2025, 8, 20, 6, 30, 0, 0, time.UTC)

func newManager(t *testing.T) (*workflow.SessionManager, *models.MemoryStore) {
	t.Helper()
	store, err := models.NewFixtureStore()
	if err != nil {
		t.Fatalf("NewFixtureStore: %v", err)
	}
	store.SetClock(func() time.Time { return fixtureNow })
	m := workflow.NewSessionManager(store)
	m.Now = func() time.Time { return fixtureNow }
	return m, store
}

func operator(userId int) context.Context {
	ctx := utils.SetClientIdInContext(context.Background(), models.FixtureClientId)
	ctx = utils.SetUserIdInContext(ctx, userId)
	return utils.SetUserNameInContext(ctx, "Operator")
}

func TestSessionStageAndCommit(t *testing.T) {
	m, store := newManager(t)
	ctx := operator(7)
	kind := models.TableKindGrassCutting

	session, err := m.Begin(ctx, models.FixtureSiteAlpha, kind)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	if session.Table.Buffer.State() != models.EditStateEditing {
		t.Fatalf("state after Begin: %s", session.Table.Buffer.State())
	}

	recordId := "gc-site-alpha-2025-08-19"
	if cellErr, err := m.Stage(ctx, session.ID, models.FixtureSiteAlpha, kind, recordId, "remarks", "re-cut"); err != nil || cellErr != nil {
		t.Fatalf("Stage: %v %v", cellErr, err)
	}
	view := session.View()
	want := []models.PendingCell{{RecordID: recordId, FieldID: "remarks", Value: models.TextValue("re-cut")}}
	if diff := cmp.Diff(want, view.Pending, cmp.Comparer(func(a, b models.Value) bool { return a.Equal(b) })); diff != "" {
		t.Fatalf("pending (-want +got):\n%s", diff)
	}

	if err := m.Commit(ctx, session.ID, models.FixtureSiteAlpha, kind); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if m.Len() != 0 {
		t.Fatalf("committed session still open")
	}
	records, _ := store.ListRecords(ctx, models.FixtureSiteAlpha, kind)
	index, _ := models.IndexRecords(records)
	if got := index[recordId].Values["remarks"].String(); got != "re-cut" {
		t.Fatalf("stored remarks: %q", got)
	}
	if len(store.History()) != 1 {
		t.Fatalf("history rows: %d", len(store.History()))
	}
}

func TestSessionRejectsLockedRecord(t *testing.T) {
	m, _ := newManager(t)
	ctx := operator(7)
	kind := models.TableKindCleaning
	session, err := m.Begin(ctx, models.FixtureSiteAlpha, kind)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}
	_, err = m.Stage(ctx, session.ID, models.FixtureSiteAlpha, kind, "cl-site-alpha-2025-08-01", "remarks", "late")
	if !errors.Is(err, models.ErrRecordLocked) {
		t.Fatalf("got %v want ErrRecordLocked", err)
	}
}

func TestSessionKeepsInvalidRecords(t *testing.T) {
	m, store := newManager(t)
	ctx := operator(7)
	kind := models.TableKindCleaning
	session, _ := m.Begin(ctx, models.FixtureSiteAlpha, kind)

	cellErr, err := m.Stage(ctx, session.ID, models.FixtureSiteAlpha, kind, "cl-site-alpha-2025-08-19", "modulesCleaned", "many")
	if err != nil || cellErr == nil {
		t.Fatalf("Stage: cellErr=%v err=%v", cellErr, err)
	}
	_, _ = m.Stage(ctx, session.ID, models.FixtureSiteAlpha, kind, "cl-site-alpha-2025-08-18", "remarks", "ok")

	err = m.Commit(ctx, session.ID, models.FixtureSiteAlpha, kind)
	var invalid models.ValidationErrors
	if !errors.As(err, &invalid) || len(invalid) != 1 {
		t.Fatalf("got %v want one invalid cell", err)
	}
	if m.Len() != 1 {
		t.Fatalf("session with invalid cells was closed")
	}
	if len(store.History()) != 1 {
		t.Fatalf("valid record not saved: history rows %d", len(store.History()))
	}
	if got := session.View().Pending; len(got) != 1 || got[0].Error == "" {
		t.Fatalf("remaining pending: %+v", got)
	}
}

func TestSessionFailedSaveKeepsEdits(t *testing.T) {
	m, store := newManager(t)
	ctx := operator(7)
	kind := models.TableKindGeneration
	session, _ := m.Begin(ctx, models.FixtureSiteAlpha, kind)
	_, _ = m.Stage(ctx, session.ID, models.FixtureSiteAlpha, kind, "gen-site-alpha-2025-08-19", "remarks", "meter swap")

	store.FailNextSave(errors.New("db unavailable"))
	err := m.Commit(ctx, session.ID, models.FixtureSiteAlpha, kind)
	var saveErr *models.SaveError
	if !errors.As(err, &saveErr) {
		t.Fatalf("got %v want *SaveError", err)
	}
	if session.Table.Buffer.Len() != 1 || m.Len() != 1 {
		t.Fatalf("edits lost after failed save")
	}
	if err := m.Commit(ctx, session.ID, models.FixtureSiteAlpha, kind); err != nil {
		t.Fatalf("retry: %v", err)
	}
}

func TestSessionOwnershipAndScope(t *testing.T) {
	m, _ := newManager(t)
	kind := models.TableKindGrassCutting
	session, err := m.Begin(operator(7), models.FixtureSiteAlpha, kind)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	cases := map[string]struct {
		ctx    context.Context
		siteId string
		kind   models.TableKind
	}{
		"other user":  {operator(8), models.FixtureSiteAlpha, kind},
		"other site":  {operator(7), models.FixtureSiteBravo, kind},
		"other table": {operator(7), models.FixtureSiteAlpha, models.TableKindCleaning},
	}
	for name, tc := range cases {
		if _, err := m.Get(tc.ctx, session.ID, tc.siteId, tc.kind); !errors.Is(err, workflow.ErrSessionNotFound) {
			t.Fatalf("%s: got %v", name, err)
		}
	}

	if got, err := m.Lookup(operator(7), session.ID); err != nil || got != session {
		t.Fatalf("Lookup by owner: %v", err)
	}
	if _, err := m.Lookup(operator(8), session.ID); !errors.Is(err, workflow.ErrSessionNotFound) {
		t.Fatalf("Lookup by other user: got %v", err)
	}

	admin := utils.SetIsAdminInContext(operator(99), true)
	if _, err := m.Get(admin, session.ID, models.FixtureSiteAlpha, kind); err != nil {
		t.Fatalf("admin Get: %v", err)
	}

	stranger := utils.SetClientIdInContext(context.Background(), "someone-else")
	if _, err := m.Begin(stranger, models.FixtureSiteAlpha, kind); !errors.Is(err, utils.ErrorRecordNotFound) {
		t.Fatalf("foreign client Begin: got %v", err)
	}
}

func TestSessionDiscardAndExpiry(t *testing.T) {
	m, _ := newManager(t)
	ctx := operator(7)
	kind := models.TableKindGrassCutting

	session, _ := m.Begin(ctx, models.FixtureSiteAlpha, kind)
	_, _ = m.Stage(ctx, session.ID, models.FixtureSiteAlpha, kind, "gc-site-alpha-2025-08-19", "remarks", "x")
	if err := m.Discard(ctx, session.ID, models.FixtureSiteAlpha, kind); err != nil {
		t.Fatalf("Discard: %v", err)
	}
	if session.Table.Buffer.HasPending() || m.Len() != 0 {
		t.Fatalf("discard left edits behind")
	}

	session, _ = m.Begin(ctx, models.FixtureSiteAlpha, kind)
	later := fixtureNow.Add(workflow.DefaultSessionTTL + time.Minute)
	m.Now = func() time.Time { return later }
	if _, err := m.Get(ctx, session.ID, models.FixtureSiteAlpha, kind); !errors.Is(err, workflow.ErrSessionNotFound) {
		t.Fatalf("expired session: got %v", err)
	}
}
