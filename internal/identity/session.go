package identity

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Session tracks the current user and notifies dependents on every change.
// Dependents tear their channels down on a nil user and rebuild on the next
// non-nil one, so a stale identity never keeps broadcasting.
type Session struct {
	mu      sync.RWMutex
	baseURL string
	client  *http.Client
	user    *User
	subs    map[int]func(*User)
	nextSub int
}

// NewSession points at the auth API base URL (no trailing slash).
func NewSession(baseURL string) *Session {
	return &Session{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
		subs:    make(map[int]func(*User)),
	}
}

type authResponse struct {
	Success bool   `json:"success"`
	Token   string `json:"token"`
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

func (s *Session) post(path string, body any) (*authResponse, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Post(s.baseURL+path, "application/json", bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("auth request failed: %w", err)
	}
	defer resp.Body.Close()
	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("auth response unreadable: %w", err)
	}
	if !ar.Success {
		if ar.Message == "" {
			ar.Message = "authentication failed"
		}
		return nil, fmt.Errorf("%s", ar.Message)
	}
	return &ar, nil
}

// SignIn authenticates and installs the user. The auth API is a mock with no
// server-side identity, so the stable user id is minted here.
func (s *Session) SignIn(email, password string) error {
	resp, err := s.post("/login", map[string]string{"username": email, "password": password})
	if err != nil {
		return err
	}
	id := resp.UserID
	if id == "" {
		id = uuid.NewString()
	}
	s.setUser(newUser(id, email, ""))
	return nil
}

// SignUp registers and signs the user in under the chosen username.
func (s *Session) SignUp(email, password, username string) error {
	resp, err := s.post("/signup", map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	id := resp.UserID
	if id == "" {
		id = uuid.NewString()
	}
	s.setUser(newUser(id, email, username))
	return nil
}

// SignOut clears the user and notifies dependents so they release channels.
func (s *Session) SignOut() {
	s.setUser(nil)
}

// Current returns the signed-in user, or nil.
func (s *Session) Current() *User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Subscribe registers a synchronous session-change callback and returns its
// cancel func. The callback fires immediately with the current user.
func (s *Session) Subscribe(fn func(*User)) func() {
	s.mu.Lock()
	id := s.nextSub
	s.nextSub++
	s.subs[id] = fn
	current := s.user
	s.mu.Unlock()
	fn(current)
	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

func (s *Session) setUser(u *User) {
	s.mu.Lock()
	s.user = u
	fns := make([]func(*User), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	if u != nil {
		log.Printf("[identity] signed in as %s (%s)", u.Username, u.ID)
	} else {
		log.Printf("[identity] signed out")
	}
	for _, fn := range fns {
		fn(u)
	}
}

// newUser resolves the display name and color seed the way the presence
// components always have: username, then email local part, then "Anonymous";
// color seeds from username, then full email, then id.
func newUser(id, email, username string) *User {
	display := username
	if display == "" {
		if at := strings.IndexByte(email, '@'); at > 0 {
			display = email[:at]
		}
	}
	if display == "" {
		display = "Anonymous"
	}
	seed := username
	if seed == "" {
		seed = email
	}
	if seed == "" {
		seed = id
	}
	return &User{ID: id, Email: email, Username: display, Color: ColorFor(seed)}
}
