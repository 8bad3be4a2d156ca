package store

import (
	"context"
	"sync"

	"gorm.io/gorm"

	oauthserver "github.com/kaz29/oauth-server"
	"github.com/kaz29/oauth-server/errors"
	"github.com/kaz29/oauth-server/models"
)

// NewScopeStore create scope store (memory)
func NewScopeStore() *ScopeStore {
	return &ScopeStore{
		data: make(map[string]oauthserver.ScopeInfo),
	}
}

// ScopeStore registered scope store (in-memory)
type ScopeStore struct {
	sync.RWMutex
	data map[string]oauthserver.ScopeInfo
}

// GetByID according to the ID for the scope information
func (ss *ScopeStore) GetByID(ctx context.Context, id string) (oauthserver.ScopeInfo, error) {
	ss.RLock()
	defer ss.RUnlock()

	if s, ok := ss.data[id]; ok {
		return s, nil
	}
	return nil, errors.ErrNotFound
}

// Set set scope information
func (ss *ScopeStore) Set(id string, scope oauthserver.ScopeInfo) (err error) {
	ss.Lock()
	defer ss.Unlock()

	ss.data[id] = scope
	return
}

// --- Persistent scope store ---

type DBScopeStore struct{ DB *gorm.DB }

func NewDBScopeStore(db *gorm.DB) *DBScopeStore { return &DBScopeStore{DB: db} }

// Upsert creates or updates a scope registration.
func (s *DBScopeStore) Upsert(ctx context.Context, sc *models.Scope) error {
	err := s.DB.WithContext(ctx).Exec(
		`INSERT INTO oauth2_scopes(id, description)
		 VALUES(?,?)
		 ON CONFLICT(id) DO UPDATE SET description=excluded.description, updated_at=CURRENT_TIMESTAMP`,
		sc.ID, sc.Description,
	).Error
	if err != nil {
		return errors.Storage(err)
	}
	return nil
}

// GetByID implements oauthserver.ScopeStore backed by DB.
func (s *DBScopeStore) GetByID(ctx context.Context, id string) (oauthserver.ScopeInfo, error) {
	var row struct {
		ID          string
		Description string
	}
	if err := s.DB.WithContext(ctx).Raw(`SELECT id, description FROM oauth2_scopes WHERE id=?`, id).Scan(&row).Error; err != nil {
		return nil, errors.Storage(err)
	}
	if row.ID == "" {
		return nil, errors.ErrNotFound
	}
	return &models.Scope{ID: row.ID, Description: row.Description}, nil
}

// List returns all registered scopes ordered by id.
func (s *DBScopeStore) List(ctx context.Context) ([]models.Scope, error) {
	var rows []struct {
		ID          string
		Description string
	}
	if err := s.DB.WithContext(ctx).Raw(`SELECT id, description FROM oauth2_scopes ORDER BY id`).Scan(&rows).Error; err != nil {
		return nil, errors.Storage(err)
	}
	out := make([]models.Scope, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Scope{ID: r.ID, Description: r.Description})
	}
	return out, nil
}

// Delete removes a scope by id.
func (s *DBScopeStore) Delete(ctx context.Context, id string) error {
	if err := s.DB.WithContext(ctx).Exec(`DELETE FROM oauth2_scopes WHERE id=?`, id).Error; err != nil {
		return errors.Storage(err)
	}
	return nil
}
