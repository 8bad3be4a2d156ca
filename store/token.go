package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/buntdb"

	oauthserver "github.com/kaz29/oauth-server"
	"github.com/kaz29/oauth-server/errors"
	"github.com/kaz29/oauth-server/models"
)

// NewMemoryTokenStore creates a token store backed by an in-memory buntdb.
func NewMemoryTokenStore() (oauthserver.TokenStore, error) {
	return NewFileTokenStore(":memory:")
}

// NewFileTokenStore creates a token store persisted to the given file.
func NewFileTokenStore(filename string) (oauthserver.TokenStore, error) {
	db, err := buntdb.Open(filename)
	if err != nil {
		return nil, errors.Storage(err)
	}
	return &TokenStore{db: db}, nil
}

// TokenStore stores token records in buntdb.
//
// Authorization codes are stored under their own key. Access and refresh
// tokens share a single record addressed by a basic ID, with the token
// strings acting as pointers to it. Every key carries a TTL so expired
// entries vanish without a sweeper.
type TokenStore struct {
	db *buntdb.DB
}

// Close releases the underlying database.
func (ts *TokenStore) Close() error {
	return ts.db.Close()
}

// Create persists the token record with TTLs derived from its expirations.
func (ts *TokenStore) Create(ctx context.Context, info oauthserver.TokenInfo) error {
	ct := time.Now()
	jv, err := json.Marshal(info)
	if err != nil {
		return err
	}

	err = ts.db.Update(func(tx *buntdb.Tx) error {
		if code := info.GetCode(); code != "" {
			_, _, err := tx.Set(ts.codeKey(code), string(jv), &buntdb.SetOptions{Expires: true, TTL: info.GetCodeExpiresIn()})
			return err
		}

		basicID := uuid.Must(uuid.NewRandom()).String()
		aexp := info.GetAccessExpiresIn()
		rexp := aexp

		if refresh := info.GetRefresh(); refresh != "" {
			rexp = info.GetRefreshCreateAt().Add(info.GetRefreshExpiresIn()).Sub(ct)
			if aexp > rexp {
				aexp = rexp
			}
			_, _, err := tx.Set(ts.refreshKey(refresh), basicID, &buntdb.SetOptions{Expires: true, TTL: rexp})
			if err != nil {
				return err
			}
		}

		if _, _, err := tx.Set(ts.basicKey(basicID), string(jv), &buntdb.SetOptions{Expires: true, TTL: rexp}); err != nil {
			return err
		}
		_, _, err := tx.Set(ts.accessKey(info.GetAccess()), basicID, &buntdb.SetOptions{Expires: true, TTL: aexp})
		return err
	})
	if err != nil {
		return errors.Storage(err)
	}
	return nil
}

// TakeByCode reads and deletes the record for the authorization code in a
// single transaction, so of any number of concurrent callers exactly one
// receives the record and the rest get errors.ErrNotFound.
func (ts *TokenStore) TakeByCode(ctx context.Context, code string) (oauthserver.TokenInfo, error) {
	var info oauthserver.TokenInfo

	err := ts.db.Update(func(tx *buntdb.Tx) error {
		jv, err := tx.Get(ts.codeKey(code))
		if err != nil {
			return err
		}
		if _, err = tx.Delete(ts.codeKey(code)); err != nil {
			return err
		}
		info, err = ts.parseToken(jv)
		return err
	})
	if err == buntdb.ErrNotFound {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Storage(err)
	}
	return info, nil
}

// TakeByRefresh reads and invalidates the record for the refresh token in a
// single transaction. The shared record and the access pointer stay in place
// so the rotation logic can still remove the superseded access token.
func (ts *TokenStore) TakeByRefresh(ctx context.Context, refresh string) (oauthserver.TokenInfo, error) {
	var info oauthserver.TokenInfo

	err := ts.db.Update(func(tx *buntdb.Tx) error {
		basicID, err := tx.Get(ts.refreshKey(refresh))
		if err != nil {
			return err
		}
		jv, err := tx.Get(ts.basicKey(basicID))
		if err != nil {
			return err
		}
		if _, err = tx.Delete(ts.refreshKey(refresh)); err != nil {
			return err
		}
		info, err = ts.parseToken(jv)
		return err
	})
	if err == buntdb.ErrNotFound {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Storage(err)
	}
	return info, nil
}

// RemoveByCode deletes the record bound to the authorization code.
func (ts *TokenStore) RemoveByCode(ctx context.Context, code string) error {
	return ts.remove(ts.codeKey(code))
}

// RemoveByAccess deletes the access token pointer.
func (ts *TokenStore) RemoveByAccess(ctx context.Context, access string) error {
	return ts.remove(ts.accessKey(access))
}

// RemoveByRefresh deletes the refresh token pointer.
func (ts *TokenStore) RemoveByRefresh(ctx context.Context, refresh string) error {
	return ts.remove(ts.refreshKey(refresh))
}

// GetByCode returns the record for the authorization code without consuming it.
func (ts *TokenStore) GetByCode(ctx context.Context, code string) (oauthserver.TokenInfo, error) {
	return ts.getData(ts.codeKey(code))
}

// GetByAccess returns the record the access token points at.
func (ts *TokenStore) GetByAccess(ctx context.Context, access string) (oauthserver.TokenInfo, error) {
	basicID, err := ts.getBasicID(ts.accessKey(access))
	if err != nil {
		return nil, err
	}
	return ts.getData(ts.basicKey(basicID))
}

// GetByRefresh returns the record the refresh token points at.
func (ts *TokenStore) GetByRefresh(ctx context.Context, refresh string) (oauthserver.TokenInfo, error) {
	basicID, err := ts.getBasicID(ts.refreshKey(refresh))
	if err != nil {
		return nil, err
	}
	return ts.getData(ts.basicKey(basicID))
}

func (ts *TokenStore) remove(key string) error {
	err := ts.db.Update(func(tx *buntdb.Tx) error {
		_, err := tx.Delete(key)
		return err
	})
	if err == nil || err == buntdb.ErrNotFound {
		return nil
	}
	return errors.Storage(err)
}

func (ts *TokenStore) getData(key string) (oauthserver.TokenInfo, error) {
	var info oauthserver.TokenInfo

	err := ts.db.View(func(tx *buntdb.Tx) error {
		jv, err := tx.Get(key)
		if err != nil {
			return err
		}
		info, err = ts.parseToken(jv)
		return err
	})
	if err == buntdb.ErrNotFound {
		return nil, errors.ErrNotFound
	}
	if err != nil {
		return nil, errors.Storage(err)
	}
	return info, nil
}

func (ts *TokenStore) getBasicID(key string) (string, error) {
	var basicID string

	err := ts.db.View(func(tx *buntdb.Tx) error {
		v, err := tx.Get(key)
		if err != nil {
			return err
		}
		basicID = v
		return nil
	})
	if err == buntdb.ErrNotFound {
		return "", errors.ErrNotFound
	}
	if err != nil {
		return "", errors.Storage(err)
	}
	return basicID, nil
}

func (ts *TokenStore) parseToken(jv string) (oauthserver.TokenInfo, error) {
	var tm models.Token
	if err := json.Unmarshal([]byte(jv), &tm); err != nil {
		return nil, err
	}
	return &tm, nil
}

func (ts *TokenStore) codeKey(code string) string {
	return "code:" + code
}

func (ts *TokenStore) basicKey(basicID string) string {
	return "data:" + basicID
}

func (ts *TokenStore) accessKey(access string) string {
	return "access:" + access
}

func (ts *TokenStore) refreshKey(refresh string) string {
	return "refresh:" + refresh
}
