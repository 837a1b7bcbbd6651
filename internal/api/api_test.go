package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/jotter/internal/models"
	"github.com/starford/jotter/internal/testutil"
)

const (
	testCookieName = "jotter_test"
	testSecret     = "0123456789abcdef0123456789abcdef"
)

// testEnv builds a router over fresh in-memory stores.
func testEnv(t *testing.T) http.Handler {
	t.Helper()
	gw, _ := testutil.Gateway(t)
	cookies := NewSessionCookie(CookieOptions{Name: testCookieName, Secret: testSecret, MaxAge: 3600})
	return NewRouter(gw, cookies)
}

// client remembers the session cookie between requests, like a browser.
type client struct {
	t      *testing.T
	router http.Handler
	cookie *http.Cookie
}

func newClient(t *testing.T, router http.Handler) *client {
	return &client{t: t, router: router}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if c.cookie != nil {
		req.AddCookie(c.cookie)
	}
	w := httptest.NewRecorder()
	c.router.ServeHTTP(w, req)

	for _, ck := range w.Result().Cookies() {
		if ck.Name != testCookieName {
			continue
		}
		if ck.MaxAge < 0 {
			c.cookie = nil
		} else {
			c.cookie = ck
		}
	}
	return w
}

func (c *client) register(user, pass string) {
	c.t.Helper()
	w := c.do(http.MethodPost, "/register", map[string]string{"username": user, "password": pass})
	if w.Code != http.StatusCreated {
		c.t.Fatalf("register %s = %d, body = %s", user, w.Code, w.Body.String())
	}
}

func (c *client) list() []models.IndexedNote {
	c.t.Helper()
	w := c.do(http.MethodGet, "/notes", nil)
	if w.Code != http.StatusOK {
		c.t.Fatalf("list = %d, body = %s", w.Code, w.Body.String())
	}
	var resp NoteListResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		c.t.Fatal(err)
	}
	if resp.Total != len(resp.Notes) {
		c.t.Errorf("total = %d, len = %d", resp.Total, len(resp.Notes))
	}
	return resp.Notes
}

func TestRegisterSetsSignedCookie(t *testing.T) {
	c := newClient(t, testEnv(t))
	c.register("alice", "password1")
	if c.cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !c.cookie.HttpOnly {
		t.Error("cookie should be HttpOnly")
	}

	w := c.do(http.MethodGet, "/me", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me = %d", w.Code)
	}
	var resp UserResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.User.Username != "alice" || resp.User.ID != 1 {
		t.Errorf("me = %+v", resp.User)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("$2a$")) {
		t.Error("password hash leaked in response")
	}
}

func TestTamperedCookieRejected(t *testing.T) {
	c := newClient(t, testEnv(t))
	c.register("alice", "password1")
	c.cookie.Value += "AAAA"

	if w := c.do(http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("tampered cookie = %d, want 401", w.Code)
	}
}

func TestRegisterErrors(t *testing.T) {
	c := newClient(t, testEnv(t))
	c.register("alice", "password1")

	cases := []struct {
		name string
		body any
		want int
	}{
		{"duplicate", map[string]string{"username": " alice", "password": "x"}, http.StatusConflict},
		{"missing password", map[string]string{"username": "bob"}, http.StatusBadRequest},
		{"blank username", map[string]string{"username": "   ", "password": "x"}, http.StatusBadRequest},
		{"not json", "oops", http.StatusBadRequest},
	}
	for _, tc := range cases {
		if w := c.do(http.MethodPost, "/register", tc.body); w.Code != tc.want {
			t.Errorf("%s = %d, want %d", tc.name, w.Code, tc.want)
		}
	}
}

func TestLogin(t *testing.T) {
	router := testEnv(t)
	newClient(t, router).register("alice", "password1")

	c := newClient(t, router)
	if w := c.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("bad password = %d, want 401", w.Code)
	}
	unknown := c.do(http.MethodPost, "/login", map[string]string{"username": "ghost", "password": "wrong"})
	if unknown.Code != http.StatusUnauthorized {
		t.Errorf("unknown user = %d, want 401", unknown.Code)
	}
	if w := c.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "password1"}); w.Code != http.StatusOK {
		t.Fatalf("login = %d", w.Code)
	}
	if w := c.do(http.MethodGet, "/notes", nil); w.Code != http.StatusOK {
		t.Errorf("notes after login = %d", w.Code)
	}
}

func TestLoginFailureBodiesMatch(t *testing.T) {
	router := testEnv(t)
	newClient(t, router).register("alice", "password1")
	c := newClient(t, router)

	a := c.do(http.MethodPost, "/login", map[string]string{"username": "alice", "password": "wrong"})
	b := c.do(http.MethodPost, "/login", map[string]string{"username": "ghost", "password": "wrong"})
	if a.Body.String() != b.Body.String() {
		t.Errorf("bodies differ: %q vs %q", a.Body.String(), b.Body.String())
	}
}

func TestNotesRequireSession(t *testing.T) {
	c := newClient(t, testEnv(t))
	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/notes"},
		{http.MethodPost, "/notes"},
		{http.MethodGet, "/notes/0"},
		{http.MethodPut, "/notes/0"},
		{http.MethodDelete, "/notes/0"},
		{http.MethodDelete, "/notes/id/abc"},
		{http.MethodGet, "/me"},
	} {
		if w := c.do(rt.method, rt.path, nil); w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", rt.method, rt.path, w.Code)
		}
	}
}

func TestNoteCRUD(t *testing.T) {
	c := newClient(t, testEnv(t))
	c.register("alice", "password1")

	w := c.do(http.MethodPost, "/notes", NoteRequest{Title: "Alice Note", Content: "Secret"})
	if w.Code != http.StatusCreated {
		t.Fatalf("create = %d, body = %s", w.Code, w.Body.String())
	}
	var created models.IndexedNote
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Index != 0 || created.ID == "" || created.Title != "Alice Note" {
		t.Errorf("created = %+v", created)
	}

	if w := c.do(http.MethodPost, "/notes", NoteRequest{}); w.Code != http.StatusNoContent {
		t.Errorf("empty create = %d, want 204", w.Code)
	}
	if got := c.list(); len(got) != 1 {
		t.Fatalf("len = %d after empty create", len(got))
	}

	if w := c.do(http.MethodPut, "/notes/0", NoteRequest{Content: "changed"}); w.Code != http.StatusNoContent {
		t.Errorf("update = %d", w.Code)
	}
	w = c.do(http.MethodGet, "/notes/0", nil)
	var got models.IndexedNote
	_ = json.Unmarshal(w.Body.Bytes(), &got)
	if got.Title != "Untitled" || got.Content != "changed" || got.ID != created.ID {
		t.Errorf("after update = %+v", got)
	}

	if w := c.do(http.MethodPut, "/notes/9", NoteRequest{Title: "x"}); w.Code != http.StatusNoContent {
		t.Errorf("out-of-range update = %d, want 204", w.Code)
	}
	if w := c.do(http.MethodGet, "/notes/9", nil); w.Code != http.StatusNotFound {
		t.Errorf("out-of-range get = %d, want 404", w.Code)
	}
	if w := c.do(http.MethodGet, "/notes/abc", nil); w.Code != http.StatusBadRequest {
		t.Errorf("bad index = %d, want 400", w.Code)
	}

	if w := c.do(http.MethodDelete, "/notes/0", nil); w.Code != http.StatusNoContent {
		t.Errorf("delete = %d", w.Code)
	}
	if got := c.list(); len(got) != 0 {
		t.Errorf("len = %d after delete", len(got))
	}
}

func TestNoteByID(t *testing.T) {
	c := newClient(t, testEnv(t))
	c.register("alice", "password1")
	for _, title := range []string{"a", "b", "c"} {
		c.do(http.MethodPost, "/notes", NoteRequest{Title: title})
	}
	target := c.list()[2]
	c.do(http.MethodDelete, "/notes/0", nil)

	if w := c.do(http.MethodPut, "/notes/id/"+target.ID, NoteRequest{Title: "C"}); w.Code != http.StatusNoContent {
		t.Errorf("update by id = %d", w.Code)
	}
	notes := c.list()
	if len(notes) != 2 || notes[1].Title != "C" {
		t.Errorf("notes = %+v", notes)
	}
	if w := c.do(http.MethodDelete, "/notes/id/"+target.ID, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete by id = %d", w.Code)
	}
	if notes := c.list(); len(notes) != 1 || notes[0].Title != "b" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestNoteMarkupEscaped(t *testing.T) {
	c := newClient(t, testEnv(t))
	c.register("alice", "password1")
	c.do(http.MethodPost, "/notes", NoteRequest{Title: "<img src=x onerror=alert(1)>", Content: "ok"})
	notes := c.list()
	if len(notes) != 1 || notes[0].Title != "&lt;img src=x onerror=alert(1)&gt;" {
		t.Errorf("notes = %+v", notes)
	}
}

func TestIsolationAndLogout(t *testing.T) {
	router := testEnv(t)
	alice := newClient(t, router)
	bob := newClient(t, router)

	alice.register("alice", "password1")
	alice.do(http.MethodPost, "/notes", NoteRequest{Title: "Alice Note", Content: "Secret"})
	bob.register("bob", "password2")
	bob.do(http.MethodPost, "/notes", NoteRequest{Title: "Bob Note", Content: "Private"})

	if got := alice.list(); len(got) != 1 || got[0].Title != "Alice Note" {
		t.Errorf("alice sees %+v", got)
	}
	if got := bob.list(); len(got) != 1 || got[0].Title != "Bob Note" {
		t.Errorf("bob sees %+v", got)
	}
	// Bob cannot reach alice's note by position.
	bob.do(http.MethodDelete, "/notes/0", nil)
	if got := alice.list(); len(got) != 1 {
		t.Errorf("alice lost a note to bob's delete")
	}

	stale := *alice.cookie
	if w := alice.do(http.MethodPost, "/logout", nil); w.Code != http.StatusNoContent {
		t.Fatalf("logout = %d", w.Code)
	}
	if alice.cookie != nil {
		t.Error("logout did not clear cookie")
	}
	alice.cookie = &stale
	if w := alice.do(http.MethodGet, "/notes", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("stale session = %d, want 401", w.Code)
	}
	if w := alice.do(http.MethodPost, "/logout", nil); w.Code != http.StatusNoContent {
		t.Errorf("second logout = %d, want 204", w.Code)
	}
}

func TestEventsStreamFollowsNotebook(t *testing.T) {
	router := testEnv(t)
	alice := newClient(t, router)
	alice.register("alice", "password1")

	anon := newClient(t, router)
	if w := anon.do(http.MethodGet, "/events", nil); w.Code != http.StatusUnauthorized {
		t.Fatalf("events without session = %d, want 401", w.Code)
	}

	srv := httptest.NewServer(router)
	defer srv.Close()

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/events", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.AddCookie(alice.cookie)
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Type") != "text/event-stream" {
		t.Fatalf("events = %d %q", resp.StatusCode, resp.Header.Get("Content-Type"))
	}

	lines := make(chan string)
	go func() {
		defer close(lines)
		rd := bufio.NewReader(resp.Body)
		for {
			line, err := rd.ReadString('\n')
			if err != nil {
				return
			}
			lines <- strings.TrimSpace(line)
		}
	}()

	alice.do(http.MethodPost, "/notes", NoteRequest{Title: "from another tab"})
	waitFor := func(want string) {
		t.Helper()
		timeout := time.After(2 * time.Second)
		for {
			select {
			case line, ok := <-lines:
				if !ok {
					t.Fatalf("stream ended before %q", want)
				}
				if line == want {
					return
				}
			case <-timeout:
				t.Fatalf("timeout waiting for %q", want)
			}
		}
	}
	waitFor("event: note.created")

	alice.do(http.MethodPost, "/logout", nil)
	timeout := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-lines:
			if !ok {
				return
			}
		case <-timeout:
			t.Fatal("stream still open after logout")
		}
	}
}
