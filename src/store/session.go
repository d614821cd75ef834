package store

import (
	"sync"

	"github.com/username/fxportal/src/models"
	"golang.org/x/oauth2"
)

// SessionState is the session slice of a workspace.
type SessionState struct {
	Session        models.Session `json:"session"`
	Loading        bool           `json:"loading"`
	ErrorMessage   string         `json:"errorMessage,omitempty"`
	SuccessMessage string         `json:"successMessage,omitempty"`
	// Probed is set once the auto-login probe has resolved for this workspace.
	Probed bool `json:"-"`
}

// SessionAction is the closed set of session transitions.
type SessionAction interface {
	sessionAction()
}

type LoginStarted struct{}

type LoginSucceeded struct {
	Session models.Session
}

type LoginFailed struct {
	Message string
}

type SignupStarted struct{}

type SignupSucceeded struct {
	Session models.Session
	Message string
}

type SignupFailed struct {
	Message string
}

// LoggedOut clears the session. Message is shown on the login page, e.g. for an expired session.
type LoggedOut struct {
	Message string
}

// SessionRestored carries the tokens of a persisted session; identity is resolved by the probe.
type SessionRestored struct {
	Session models.Session
}

// AutoLoginResolved ends the probe. A zero Session means the probe failed and is never surfaced.
type AutoLoginResolved struct {
	Session models.Session
}

type TokensRefreshed struct {
	Token *oauth2.Token
}

type MessageSet struct {
	Error   string
	Success string
}

type MessagesCleared struct{}

func (LoginStarted) sessionAction()      {}
func (LoginSucceeded) sessionAction()    {}
func (LoginFailed) sessionAction()       {}
func (SignupStarted) sessionAction()     {}
func (SignupSucceeded) sessionAction()   {}
func (SignupFailed) sessionAction()      {}
func (LoggedOut) sessionAction()         {}
func (SessionRestored) sessionAction()   {}
func (AutoLoginResolved) sessionAction() {}
func (TokensRefreshed) sessionAction()   {}
func (MessageSet) sessionAction()        {}
func (MessagesCleared) sessionAction()   {}

// ReduceSession applies an action to a session state and returns the next state.
func ReduceSession(state SessionState, action SessionAction) SessionState {
	switch a := action.(type) {
	case LoginStarted, SignupStarted:
		state.Loading = true
		state.ErrorMessage = ""
		state.SuccessMessage = ""
	case LoginSucceeded:
		state = SessionState{Session: a.Session.Clone(), Probed: true}
	case SignupSucceeded:
		state = SessionState{Session: a.Session.Clone(), Probed: true, SuccessMessage: a.Message}
	case LoginFailed:
		state.Loading = false
		state.ErrorMessage = a.Message
		state.SuccessMessage = ""
	case SignupFailed:
		state.Loading = false
		state.ErrorMessage = a.Message
		state.SuccessMessage = ""
	case LoggedOut:
		state = SessionState{Probed: true, ErrorMessage: a.Message}
	case SessionRestored:
		restored := a.Session.Clone()
		restored.Email = ""
		restored.Roles = nil
		state = SessionState{Session: restored}
	case AutoLoginResolved:
		state.Loading = false
		state.Probed = true
		state.Session = a.Session.Clone()
	case TokensRefreshed:
		if state.Session.IDToken != "" {
			state.Session = state.Session.WithToken(a.Token)
		}
	case MessageSet:
		state.ErrorMessage = a.Error
		state.SuccessMessage = a.Success
	case MessagesCleared:
		state.ErrorMessage = ""
		state.SuccessMessage = ""
	}
	return state
}

// SessionView is the read-only side of a session store.
type SessionView interface {
	State() SessionState
}

// SessionStore holds one workspace session. Dispatch is reserved to the auth service.
type SessionStore struct {
	mu    sync.RWMutex
	state SessionState
}

func NewSessionStore() *SessionStore {
	return &SessionStore{}
}

// State returns a copy of the current state.
func (s *SessionStore) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	state := s.state
	state.Session = state.Session.Clone()
	return state
}

// Dispatch reduces action into the store and returns the new state.
func (s *SessionStore) Dispatch(action SessionAction) SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = ReduceSession(s.state, action)
	state := s.state
	state.Session = state.Session.Clone()
	return state
}
