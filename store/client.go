package store

import (
	"context"
	"sync"

	"gorm.io/gorm"

	oauthserver "github.com/kaz29/oauth-server"
	"github.com/kaz29/oauth-server/errors"
	"github.com/kaz29/oauth-server/models"
)

// NewClientStore create client store (memory)
func NewClientStore() *ClientStore {
	return &ClientStore{
		data: make(map[string]oauthserver.ClientInfo),
	}
}

// ClientStore client information store (in-memory)
type ClientStore struct {
	sync.RWMutex
	data map[string]oauthserver.ClientInfo
}

// GetByID according to the ID for the client information
func (cs *ClientStore) GetByID(ctx context.Context, id string) (oauthserver.ClientInfo, error) {
	cs.RLock()
	defer cs.RUnlock()

	if c, ok := cs.data[id]; ok {
		return c, nil
	}
	return nil, errors.ErrNotFound
}

// Set set client information
func (cs *ClientStore) Set(id string, cli oauthserver.ClientInfo) (err error) {
	cs.Lock()
	defer cs.Unlock()

	cs.data[id] = cli
	return
}

// --- Persistent client store ---

// DBClientStore reads registered clients from the oauth2_clients table.
// Secrets in the table are bcrypt hashes, so rows come back as HashedClient
// and the manager verifies presented secrets through VerifyPassword.
type DBClientStore struct{ DB *gorm.DB }

func NewDBClientStore(db *gorm.DB) *DBClientStore { return &DBClientStore{DB: db} }

// Upsert creates or updates a client registration.
func (s *DBClientStore) Upsert(ctx context.Context, c *models.Client) error {
	err := s.DB.WithContext(ctx).Exec(
		`INSERT INTO oauth2_clients(id, secret, redirect_uri, public)
		 VALUES(?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET secret=excluded.secret, redirect_uri=excluded.redirect_uri, public=excluded.public, updated_at=CURRENT_TIMESTAMP`,
		c.ID, c.Secret, c.RedirectURI, c.Public,
	).Error
	if err != nil {
		return errors.Storage(err)
	}
	return nil
}

// GetByID implements oauthserver.ClientStore backed by DB.
func (s *DBClientStore) GetByID(ctx context.Context, id string) (oauthserver.ClientInfo, error) {
	var row struct {
		ID          string
		Secret      string
		RedirectURI string
		Public      bool
	}
	if err := s.DB.WithContext(ctx).Raw(`SELECT id, secret, redirect_uri, public FROM oauth2_clients WHERE id=?`, id).Scan(&row).Error; err != nil {
		return nil, errors.Storage(err)
	}
	if row.ID == "" {
		return nil, errors.ErrNotFound
	}
	return &models.HashedClient{Client: models.Client{ID: row.ID, Secret: row.Secret, RedirectURI: row.RedirectURI, Public: row.Public}}, nil
}

// List returns a page of clients ordered by id.
func (s *DBClientStore) List(ctx context.Context, offset, limit int) ([]models.Client, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 1000 {
		limit = 1000
	}
	if offset < 0 {
		offset = 0
	}
	var rows []struct {
		ID          string
		Secret      string
		RedirectURI string
		Public      bool
	}
	if err := s.DB.WithContext(ctx).Raw(`SELECT id, secret, redirect_uri, public FROM oauth2_clients ORDER BY id LIMIT ? OFFSET ?`, limit, offset).Scan(&rows).Error; err != nil {
		return nil, errors.Storage(err)
	}
	out := make([]models.Client, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Client{ID: r.ID, Secret: r.Secret, RedirectURI: r.RedirectURI, Public: r.Public})
	}
	return out, nil
}

// Delete removes a client by id.
func (s *DBClientStore) Delete(ctx context.Context, id string) error {
	if err := s.DB.WithContext(ctx).Exec(`DELETE FROM oauth2_clients WHERE id=?`, id).Error; err != nil {
		return errors.Storage(err)
	}
	return nil
}
