package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"bitbucket.org/greenops/fieldops_backend/models"
	"bitbucket.org/greenops/fieldops_backend/utils"
	"github.com/google/uuid"
)

const DefaultSessionTTL = 2 * time.Hour

var ErrSessionNotFound = errors.New("edit session not found")

// EditSession is one operator's inline edit of one site table.
type EditSession struct {
	ID        string
	SiteId    string
	Kind      models.TableKind
	ClientId  string
	UserId    int
	UserName  string
	Site      *models.Site
	Table     *models.Table
	CreatedAt time.Time

	touchedAt time.Time
}

// SessionView is the wire form of an edit session.
type SessionView struct {
	ID      string                  `json:"id"`
	SiteId  string                  `json:"site_id"`
	Kind    models.TableKind        `json:"kind"`
	State   models.EditState        `json:"state"`
	Pending []models.PendingCell    `json:"pending"`
	Errors  models.ValidationErrors `json:"errors"`
	Created time.Time               `json:"created_at"`
}

func (s *EditSession) View() SessionView {
	errs := s.Table.Buffer.Errors()
	if errs == nil {
		errs = models.ValidationErrors{}
	}
	return SessionView{
		ID:      s.ID,
		SiteId:  s.SiteId,
		Kind:    s.Kind,
		State:   s.Table.Buffer.State(),
		Pending: s.Table.Buffer.Cells(),
		Errors:  errs,
		Created: s.CreatedAt,
	}
}

// SessionManager keeps edit sessions in process memory. Sessions idle for
// longer than TTL are dropped.
type SessionManager struct {
	Repo models.RecordRepository
	TTL  time.Duration
	// Now defaults to time.Now and is handed to every session table.
	Now func() time.Time

	mu       sync.Mutex
	sessions map[string]*EditSession
}

func NewSessionManager(repo models.RecordRepository) *SessionManager {
	return &SessionManager{
		Repo:     repo,
		TTL:      DefaultSessionTTL,
		sessions: make(map[string]*EditSession),
	}
}

func (m *SessionManager) now() time.Time {
	if m.Now != nil {
		return m.Now()
	}
	return time.Now()
}

// Begin loads the site table and opens it for editing.
func (m *SessionManager) Begin(ctx context.Context, siteId string, kind models.TableKind) (*EditSession, error) {
	table, site, err := models.LoadTable(ctx, m.Repo, siteId, kind)
	if err != nil {
		return nil, err
	}
	table.Now = m.now
	if err := table.Begin(); err != nil {
		return nil, err
	}

	now := m.now()
	session := &EditSession{
		ID:        uuid.NewString(),
		SiteId:    site.ID,
		Kind:      kind,
		ClientId:  site.ClientId,
		Site:      site,
		Table:     table,
		CreatedAt: now,
		touchedAt: now,
	}
	session.UserId, _ = utils.GetUserIdFromContext(ctx)
	session.UserName, _ = utils.GetUserNameFromContext(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sweepLocked(now)
	m.sessions[session.ID] = session
	return session, nil
}

// Lookup returns an open session of the caller by id alone.
func (m *SessionManager) Lookup(ctx context.Context, sessionId string) (*EditSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookupLocked(ctx, sessionId)
}

// Get returns the session when it belongs to the site table and the caller.
func (m *SessionManager) Get(ctx context.Context, sessionId, siteId string, kind models.TableKind) (*EditSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	session, err := m.lookupLocked(ctx, sessionId)
	if err != nil {
		return nil, err
	}
	if session.SiteId != siteId || session.Kind != kind {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (m *SessionManager) lookupLocked(ctx context.Context, sessionId string) (*EditSession, error) {
	now := m.now()
	session, ok := m.sessions[sessionId]
	if !ok || m.expired(session, now) {
		delete(m.sessions, sessionId)
		return nil, ErrSessionNotFound
	}
	if !ownedBy(ctx, session) {
		return nil, ErrSessionNotFound
	}
	session.touchedAt = now
	return session, nil
}

func (m *SessionManager) Stage(ctx context.Context, sessionId, siteId string, kind models.TableKind, recordId, fieldId, raw string) (*models.CellError, error) {
	session, err := m.Get(ctx, sessionId, siteId, kind)
	if err != nil {
		return nil, err
	}
	return session.Table.Stage(recordId, fieldId, raw)
}

// Commit saves the session through the repository. A fully committed
// session is closed; otherwise it stays open with its remaining edits.
func (m *SessionManager) Commit(ctx context.Context, sessionId, siteId string, kind models.TableKind) error {
	session, err := m.Get(ctx, sessionId, siteId, kind)
	if err != nil {
		return err
	}
	if err := CommitSession(ctx, m.Repo, session); err != nil {
		return err
	}
	m.remove(sessionId)
	return nil
}

func (m *SessionManager) Discard(ctx context.Context, sessionId, siteId string, kind models.TableKind) error {
	session, err := m.Get(ctx, sessionId, siteId, kind)
	if err != nil {
		return err
	}
	session.Table.Discard()
	m.remove(sessionId)
	return nil
}

func (m *SessionManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

func (m *SessionManager) remove(sessionId string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, sessionId)
}

func (m *SessionManager) expired(s *EditSession, now time.Time) bool {
	return m.TTL > 0 && now.Sub(s.touchedAt) > m.TTL
}

func (m *SessionManager) sweepLocked(now time.Time) {
	for id, s := range m.sessions {
		if m.expired(s, now) {
			delete(m.sessions, id)
		}
	}
}

func ownedBy(ctx context.Context, s *EditSession) bool {
	if isAdmin, _ := utils.GetIsAdminFromContext(ctx); isAdmin {
		return true
	}
	userId, _ := utils.GetUserIdFromContext(ctx)
	return s.UserId == userId
}
