// Package gorillastore provides a session store compatible with Gorilla
// sessions (github.com/gorilla/sessions) that keeps session data in a
// Backend, such as a *sessionstore.Store.
//
// The session cookie contains only the session id, signed and encrypted
// with keys derived from one or more secrets. The first secret is used
// for new cookies and all secrets are tried when decoding, so secrets can
// be rotated by prepending a new one.
package gorillastore

import (
	"context"
	"crypto/sha256"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/jjeffery/errors"
	"golang.org/x/crypto/hkdf"
)

// minSecretLength is the minimum number of bytes in a secret.
const minSecretLength = 16

// Backend stores session payloads by session id. A Get for a missing or
// expired session returns (nil, nil).
type Backend interface {
	Get(ctx context.Context, sid string) (map[string]interface{}, error)
	Set(ctx context.Context, sid string, sess interface{}) error
	Destroy(ctx context.Context, sid string) error
}

type sessionStore struct {
	options sessions.Options
	backend Backend
	codecs  []securecookie.Codec
}

// New creates a new store suitable for use with Gorilla sessions. Session
// data is persisted using backend and options provides information about
// the session cookies. At least one secret is required.
func New(backend Backend, options sessions.Options, secrets ...[]byte) (sessions.Store, error) {
	if len(secrets) == 0 {
		return nil, errors.New("no secret supplied")
	}
	ss := &sessionStore{
		options: options,
		backend: backend,
	}
	for _, secret := range secrets {
		if len(secret) < minSecretLength {
			return nil, errors.With("length", len(secret)).New("secret too short")
		}
		codec := securecookie.New(newKeyPair(secret))
		if options.MaxAge > 0 {
			codec.MaxAge(options.MaxAge)
		}
		ss.codecs = append(ss.codecs, codec)
	}
	return ss, nil
}

// newKeyPair takes a secret and prepares a hash key and an encryption
// key using the HKDF key derivation function.
func newKeyPair(secret []byte) ([]byte, []byte) {
	kdf := hkdf.New(sha256.New, secret, nil, nil)

	hashKey := make([]byte, 32)
	encryptKey := make([]byte, 32)
	kdf.Read(hashKey)
	kdf.Read(encryptKey)

	return hashKey, encryptKey
}

// Get returns a cached session.
func (ss *sessionStore) Get(r *http.Request, name string) (*sessions.Session, error) {
	return sessions.GetRegistry(r).Get(ss, name)
}

// New creates and return a new session.
//
// Note that New should never return a nil session, even in the case of
// an error if using the Registry infrastructure to cache the session.
func (ss *sessionStore) New(r *http.Request, name string) (*sessions.Session, error) {
	session := sessions.NewSession(ss, name)
	// make a copy
	options := ss.options
	session.Options = &options
	session.IsNew = true
	c, err := r.Cookie(name)
	if err == http.ErrNoCookie {
		return session, nil
	}
	if err != nil {
		err = errors.Wrap(err, "cannot obtain cookie")
		return session, err
	}
	var sid string
	err = securecookie.DecodeMulti(name, c.Value, &sid, ss.codecs...)
	if err != nil {
		err = errors.Wrap(err, "cannot decode cookie")
		return session, err
	}
	payload, err := ss.backend.Get(r.Context(), sid)
	if err != nil {
		return session, err
	}
	if payload != nil {
		// session data exists, so not new
		session.ID = sid
		session.IsNew = false
		if values, ok := payload["values"].(map[string]interface{}); ok {
			for k, v := range values {
				session.Values[k] = v
			}
		}
	}
	return session, nil
}

// Save persists session to the backend.
func (ss *sessionStore) Save(r *http.Request, w http.ResponseWriter, session *sessions.Session) error {
	// Marked for deletion.
	if session.Options.MaxAge < 0 {
		http.SetCookie(w, sessions.NewCookie(session.Name(), "", session.Options))
		if session.ID != "" {
			if err := ss.backend.Destroy(r.Context(), session.ID); err != nil {
				return err
			}
		}
		return nil
	}

	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if err := ss.backend.Set(r.Context(), session.ID, payload(session)); err != nil {
		return err
	}
	encoded, err := securecookie.EncodeMulti(session.Name(), session.ID, ss.codecs...)
	if err != nil {
		return errors.Wrap(err, "cannot encode cookie")
	}
	http.SetCookie(w, sessions.NewCookie(session.Name(), encoded, session.Options))
	return nil
}

// payload builds the data saved for a session. Values with keys that
// are not strings are not saved.
func payload(session *sessions.Session) map[string]interface{} {
	cookie := make(map[string]interface{})
	if session.Options.MaxAge > 0 {
		cookie["maxAge"] = int64(session.Options.MaxAge) * 1000
	}
	values := make(map[string]interface{})
	for k, v := range session.Values {
		if ks, ok := k.(string); ok {
			values[ks] = v
		}
	}
	return map[string]interface{}{
		"cookie": cookie,
		"values": values,
	}
}
