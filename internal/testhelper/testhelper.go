// Package testhelper contains tests shared by the storage providers and
// session stores in this module.
package testhelper

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/sessions"
)

const sessionName = "session-key"

// SessionStoreTest tests Gorilla session store functionality. Each call
// to newStore should return a store with empty persistent storage.
func SessionStoreTest(t *testing.T, newStore func() sessions.Store) {
	t.Helper()
	store := newStore()

	// new session with a value and a flash
	session, req, rsp := getSession(t, store, "")
	if !session.IsNew {
		t.Errorf("got=existing, want=new session")
	}
	if flashes := session.Flashes(); len(flashes) != 0 {
		t.Errorf("got=%v, want=no flashes", flashes)
	}
	session.Values["user"] = "alice"
	session.AddFlash("welcome")
	cookie := saveSession(t, session, req, rsp)

	// the saved session is returned, and the flash is read once
	session, req, rsp = getSession(t, store, cookie)
	if session.IsNew {
		t.Errorf("got=new, want=existing session")
	}
	if got, want := session.Values["user"], "alice"; got != want {
		t.Errorf("got=%v, want=%v", got, want)
	}
	if flashes := session.Flashes(); len(flashes) != 1 || flashes[0] != "welcome" {
		t.Errorf("got=%v, want=[welcome]", flashes)
	}
	saveSession(t, session, req, rsp)

	session, req, rsp = getSession(t, store, cookie)
	if flashes := session.Flashes(); len(flashes) != 0 {
		t.Errorf("got=%v, want=no flashes", flashes)
	}

	// negative MaxAge deletes the session
	session.Options.MaxAge = -1
	if err := session.Save(req, rsp); err != nil {
		t.Fatalf("cannot delete session: %v", err)
	}
	session, _, _ = getSession(t, store, cookie)
	if !session.IsNew {
		t.Errorf("got=existing, want=new session after deletion")
	}
	if got := session.Values["user"]; got != nil {
		t.Errorf("got=%v, want=nil", got)
	}
}

// getSession reads the session from a new request carrying cookie, which may be blank.
func getSession(t *testing.T, store sessions.Store, cookie string) (*sessions.Session, *http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "http://localhost:8080/", nil)
	if cookie != "" {
		req.Header.Add("Cookie", cookie)
	}
	session, err := store.Get(req, sessionName)
	if err != nil {
		t.Fatalf("cannot get session: %v", err)
	}
	return session, req, httptest.NewRecorder()
}

// saveSession saves the session and returns the cookie that was set.
func saveSession(t *testing.T, session *sessions.Session, req *http.Request, rsp *httptest.ResponseRecorder) string {
	t.Helper()
	if err := session.Save(req, rsp); err != nil {
		t.Fatalf("cannot save session: %v", err)
	}
	cookies := rsp.Header()["Set-Cookie"]
	if len(cookies) != 1 {
		t.Fatalf("got=%v, want=one cookie", cookies)
	}
	return cookies[0]
}
