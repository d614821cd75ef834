package model

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// PortalSession maps an opaque portal session id onto the backend tokens of a signed-in user.
type PortalSession struct {
	ID           string
	Email        string
	IDToken      string
	RefreshToken string
	Roles        []string
	ExpiresAt    time.Time
	UserAgent    string
	ClientIP     string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LoginEvent is one row of login_history.
type LoginEvent struct {
	Email     string    `json:"email"`
	IPAddress string    `json:"ip_address"`
	UserAgent string    `json:"user_agent"`
	LoginAt   time.Time `json:"login_at"`
}

var ErrSessionNotFound = errors.New("session not found")

func joinRoles(roles []string) string {
	return strings.Join(roles, ",")
}

func splitRoles(raw string) []string {
	roles := []string{}
	for _, role := range strings.Split(raw, ",") {
		if role = strings.TrimSpace(role); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}

// CreateSession writes the session row, replacing any row with the same id.
// CreatedAt and UpdatedAt are stamped when zero.
func CreateSession(db *sql.DB, s *PortalSession) error {
	now := time.Now().UTC()
	if s.CreatedAt.IsZero() {
		s.CreatedAt = now
	}
	s.UpdatedAt = now

	_, err := db.Exec(`
		INSERT INTO portal_sessions
			(id, email, id_token, refresh_token, roles, expires_at, user_agent, client_ip, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			id_token = excluded.id_token,
			refresh_token = excluded.refresh_token,
			roles = excluded.roles,
			expires_at = excluded.expires_at,
			user_agent = excluded.user_agent,
			client_ip = excluded.client_ip,
			created_at = excluded.created_at,
			updated_at = excluded.updated_at`,
		s.ID, s.Email, s.IDToken, s.RefreshToken, joinRoles(s.Roles), s.ExpiresAt.Unix(),
		s.UserAgent, s.ClientIP, s.CreatedAt.Unix(), s.UpdatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("error creating session %s: %w", s.ID, err)
	}
	return nil
}

// GetSessionByID returns the session row, or ErrSessionNotFound when it is missing or expired.
func GetSessionByID(db *sql.DB, id string) (*PortalSession, error) {
	var (
		s                               PortalSession
		roles                           string
		expiresAt, createdAt, updatedAt int64
	)
	err := db.QueryRow(`
		SELECT id, email, id_token, refresh_token, roles, expires_at, user_agent, client_ip, created_at, updated_at
		FROM portal_sessions WHERE id = ?`, id,
	).Scan(&s.ID, &s.Email, &s.IDToken, &s.RefreshToken, &roles, &expiresAt, &s.UserAgent, &s.ClientIP, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error fetching session %s: %w", id, err)
	}

	s.Roles = splitRoles(roles)
	s.ExpiresAt = time.Unix(expiresAt, 0).UTC()
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	s.UpdatedAt = time.Unix(updatedAt, 0).UTC()

	if !time.Now().Before(s.ExpiresAt) {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

// UpdateSessionTokens stores rotated backend tokens and the identity resolved for them.
func UpdateSessionTokens(db *sql.DB, id, email, idToken, refreshToken string, roles []string) error {
	res, err := db.Exec(`
		UPDATE portal_sessions
		SET email = ?, id_token = ?, refresh_token = ?, roles = ?, updated_at = ?
		WHERE id = ?`,
		email, idToken, refreshToken, joinRoles(roles), time.Now().UTC().Unix(), id,
	)
	if err != nil {
		return fmt.Errorf("error updating session %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrSessionNotFound
	}
	return nil
}

// DeleteSession removes a session row. Deleting a missing row is not an error.
func DeleteSession(db *sql.DB, id string) error {
	if _, err := db.Exec(`DELETE FROM portal_sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("error deleting session %s: %w", id, err)
	}
	return nil
}

// DeleteExpiredSessions purges every session that expired before now.
func DeleteExpiredSessions(db *sql.DB, now time.Time) (int64, error) {
	res, err := db.Exec(`DELETE FROM portal_sessions WHERE expires_at <= ?`, now.Unix())
	if err != nil {
		return 0, fmt.Errorf("error purging expired sessions: %w", err)
	}
	return res.RowsAffected()
}

// RecordLogin appends a login_history row.
func RecordLogin(db *sql.DB, email, ipAddress, userAgent string) error {
	_, err := db.Exec(`
		INSERT INTO login_history (email, ip_address, user_agent, login_at)
		VALUES (?, ?, ?, ?)`,
		email, ipAddress, userAgent, time.Now().UTC().Unix(),
	)
	if err != nil {
		return fmt.Errorf("error recording login for %s: %w", email, err)
	}
	return nil
}

// ListLoginHistory returns the most recent logins of a user, newest first.
func ListLoginHistory(db *sql.DB, email string, limit int) ([]LoginEvent, error) {
	rows, err := db.Query(`
		SELECT email, ip_address, user_agent, login_at
		FROM login_history WHERE email = ?
		ORDER BY login_at DESC, id DESC LIMIT ?`, email, limit)
	if err != nil {
		return nil, fmt.Errorf("error listing login history for %s: %w", email, err)
	}
	defer rows.Close()

	events := []LoginEvent{}
	for rows.Next() {
		var (
			e       LoginEvent
			loginAt int64
		)
		if err := rows.Scan(&e.Email, &e.IPAddress, &e.UserAgent, &loginAt); err != nil {
			return nil, fmt.Errorf("error scanning login history: %w", err)
		}
		e.LoginAt = time.Unix(loginAt, 0).UTC()
		events = append(events, e)
	}
	return events, rows.Err()
}
