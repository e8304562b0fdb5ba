package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// IsDuplicate reports whether err is a unique-constraint violation.
func IsDuplicate(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// ---------------------------------------------------------------------------
// Profiles

func (s *PostgresStore) CreateProfile(ctx context.Context, profile Profile) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (id, display_name, email, password_hash, role, bio, avatar_url)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, profile.ID, profile.DisplayName, profile.Email, profile.PasswordHash, profile.Role, profile.Bio, profile.AvatarURL)
	if err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetProfile(ctx context.Context, profileID string) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, role, bio, avatar_url, ban_reason, banned_until, created_at, updated_at
		FROM profiles
		WHERE id=$1
	`, profileID).Scan(&p.ID, &p.DisplayName, &p.Email, &p.Role, &p.Bio, &p.AvatarURL, &p.BanReason, &p.BannedUntil, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetProfileByEmail(ctx context.Context, email string) (Profile, error) {
	var p Profile
	err := s.db.QueryRowContext(ctx, `
		SELECT id, display_name, email, password_hash, role, bio, avatar_url, ban_reason, banned_until, created_at, updated_at
		FROM profiles
		WHERE email=$1
	`, email).Scan(&p.ID, &p.DisplayName, &p.Email, &p.PasswordHash, &p.Role, &p.Bio, &p.AvatarURL, &p.BanReason, &p.BannedUntil, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) UpdateProfileBio(ctx context.Context, profileID, bio, avatarURL string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles SET bio=$2, avatar_url=$3, updated_at=NOW() WHERE id=$1
	`, profileID, bio, avatarURL)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ---------------------------------------------------------------------------
// Ban lifecycle

// SetBan marks a profile banned with an optional expiry; nil means permanent.
func (s *PostgresStore) SetBan(ctx context.Context, profileID, reason string, until *time.Time) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET role='banned', ban_reason=$2, banned_until=$3, updated_at=NOW()
		WHERE id=$1
	`, profileID, reason, until)
	if err != nil {
		return fmt.Errorf("set ban: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) ClearBan(ctx context.Context, profileID string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET role='user', ban_reason='', banned_until=NULL, updated_at=NOW()
		WHERE id=$1
	`, profileID)
	if err != nil {
		return fmt.Errorf("clear ban: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReconcileExpiredBan restores an expired timed ban to role=user in a single
// conditional statement. Safe to run concurrently with itself: whichever
// caller lands first wins and the other updates zero rows.
func (s *PostgresStore) ReconcileExpiredBan(ctx context.Context, profileID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE profiles
		SET role='user', ban_reason='', banned_until=NULL, updated_at=NOW()
		WHERE id=$1 AND role='banned' AND banned_until IS NOT NULL AND banned_until <= NOW()
	`, profileID)
	if err != nil {
		return false, fmt.Errorf("reconcile expired ban: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reconcile expired ban rows: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) ListExpiredBans(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id FROM profiles
		WHERE role='banned' AND banned_until IS NOT NULL AND banned_until <= $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("list expired bans: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan expired ban: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expired bans: %w", err)
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Resource ownership

// ResourceOwner returns the owning profile ID for an owned, mutable entity.
// A missing row surfaces as sql.ErrNoRows so callers can distinguish absence
// from an authorization failure.
func (s *PostgresStore) ResourceOwner(ctx context.Context, resourceType, resourceID string) (string, error) {
	var query string
	switch resourceType {
	case "post":
		query = `SELECT author_id FROM posts WHERE id=$1`
	case "comment":
		query = `SELECT author_id FROM comments WHERE id=$1`
	case "group":
		query = `SELECT creator_id FROM groups WHERE id=$1`
	case "focus_group":
		query = `SELECT mentor_id FROM focus_groups WHERE id=$1`
	default:
		return "", fmt.Errorf("unknown resource type %q", resourceType)
	}

	var ownerID string
	if err := s.db.QueryRowContext(ctx, query, resourceID).Scan(&ownerID); err != nil {
		return "", err
	}
	return ownerID, nil
}

// ---------------------------------------------------------------------------
// Posts

func (s *PostgresStore) InsertPost(ctx context.Context, post Post) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO posts (id, author_id, group_id, body, image_url)
		VALUES ($1, $2, $3, $4, $5)
	`, post.ID, post.AuthorID, post.GroupID, post.Body, post.ImageURL)
	if err != nil {
		return fmt.Errorf("insert post: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPost(ctx context.Context, postID string) (Post, error) {
	var p Post
	err := s.db.QueryRowContext(ctx, `
		SELECT id, author_id, group_id, body, image_url, created_at, updated_at
		FROM posts
		WHERE id=$1
	`, postID).Scan(&p.ID, &p.AuthorID, &p.GroupID, &p.Body, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Post{}, err
	}
	return p, nil
}

func (s *PostgresStore) UpdatePostBody(ctx context.Context, postID, body string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE posts SET body=$2, updated_at=NOW() WHERE id=$1
	`, postID, body)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) DeletePost(ctx context.Context, postID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM posts WHERE id=$1`, postID)
	if err != nil {
		return false, fmt.Errorf("delete post: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete post rows: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) ListRecentPosts(ctx context.Context, limit int) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, group_id, body, image_url, created_at, updated_at
		FROM posts
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("list recent posts: %w", err)
	}
	return scanPosts(rows)
}

func (s *PostgresStore) ListGroupPosts(ctx context.Context, groupID string, limit int) ([]Post, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, author_id, group_id, body, image_url, created_at, updated_at
		FROM posts
		WHERE group_id=$1
		ORDER BY created_at DESC
		LIMIT $2
	`, groupID, limit)
	if err != nil {
		return nil, fmt.Errorf("list group posts: %w", err)
	}
	return scanPosts(rows)
}

func scanPosts(rows *sql.Rows) ([]Post, error) {
	defer rows.Close()
	items := make([]Post, 0)
	for rows.Next() {
		var p Post
		if err := rows.Scan(&p.ID, &p.AuthorID, &p.GroupID, &p.Body, &p.ImageURL, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan post: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate posts: %w", err)
	}
	return items, nil
}

// ---------------------------------------------------------------------------
// Comments

func (s *PostgresStore) InsertComment(ctx context.Context, comment Comment) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO comments (id, post_id, author_id, body)
		VALUES ($1, $2, $3, $4)
	`, comment.ID, comment.PostID, comment.AuthorID, comment.Body)
	if err != nil {
		return fmt.Errorf("insert comment: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteComment(ctx context.Context, commentID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM comments WHERE id=$1`, commentID)
	if err != nil {
		return false, fmt.Errorf("delete comment: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete comment rows: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) ListPostComments(ctx context.Context, postID string) ([]Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, post_id, author_id, body, created_at
		FROM comments
		WHERE post_id=$1
		ORDER BY created_at ASC
	`, postID)
	if err != nil {
		return nil, fmt.Errorf("list comments: %w", err)
	}
	defer rows.Close()

	items := make([]Comment, 0)
	for rows.Next() {
		var c Comment
		if err := rows.Scan(&c.ID, &c.PostID, &c.AuthorID, &c.Body, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan comment: %w", err)
		}
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate comments: %w", err)
	}
	return items, nil
}

// ---------------------------------------------------------------------------
// Blocks

func (s *PostgresStore) InsertBlock(ctx context.Context, blockerID, blockedID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO blocks (blocker_id, blocked_id)
		VALUES ($1, $2)
		ON CONFLICT (blocker_id, blocked_id) DO NOTHING
	`, blockerID, blockedID)
	if err != nil {
		return fmt.Errorf("insert block: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM blocks WHERE blocker_id=$1 AND blocked_id=$2
	`, blockerID, blockedID)
	if err != nil {
		return false, fmt.Errorf("delete block: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete block rows: %w", err)
	}
	return rows > 0, nil
}

// ListBlockedCounterparts returns every profile the given profile has a block
// edge with, in either direction.
func (s *PostgresStore) ListBlockedCounterparts(ctx context.Context, profileID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT blocked_id FROM blocks WHERE blocker_id=$1
		UNION
		SELECT blocker_id FROM blocks WHERE blocked_id=$1
	`, profileID)
	if err != nil {
		return nil, fmt.Errorf("list blocked counterparts: %w", err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate blocks: %w", err)
	}
	return ids, nil
}

// ---------------------------------------------------------------------------
// Focus groups and seat capacity

// CreateFocusGroup inserts the paired communication group and the focus group
// as one transaction; a failure on the second insert rolls back the first.
func (s *PostgresStore) CreateFocusGroup(ctx context.Context, group Group, fg FocusGroup) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin create focus group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO groups (id, name, description, creator_id)
		VALUES ($1, $2, $3, $4)
	`, group.ID, group.Name, group.Description, group.CreatorID); err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO focus_groups (id, mentor_id, group_id, name, description, total_spots, available_spots, is_full)
		VALUES ($1, $2, $3, $4, $5, $6, $6, FALSE)
	`, fg.ID, fg.MentorID, fg.GroupID, fg.Name, fg.Description, fg.TotalSpots); err != nil {
		return fmt.Errorf("insert focus group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit create focus group: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetFocusGroup(ctx context.Context, focusGroupID string) (FocusGroup, error) {
	var fg FocusGroup
	err := s.db.QueryRowContext(ctx, `
		SELECT id, mentor_id, group_id, name, description, total_spots, available_spots, is_full, created_at
		FROM focus_groups
		WHERE id=$1
	`, focusGroupID).Scan(&fg.ID, &fg.MentorID, &fg.GroupID, &fg.Name, &fg.Description, &fg.TotalSpots, &fg.AvailableSpots, &fg.IsFull, &fg.CreatedAt)
	if err != nil {
		return FocusGroup{}, err
	}
	return fg, nil
}

func (s *PostgresStore) ListFocusGroups(ctx context.Context) ([]FocusGroup, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mentor_id, group_id, name, description, total_spots, available_spots, is_full, created_at
		FROM focus_groups
		ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list focus groups: %w", err)
	}
	defer rows.Close()

	items := make([]FocusGroup, 0)
	for rows.Next() {
		var fg FocusGroup
		if err := rows.Scan(&fg.ID, &fg.MentorID, &fg.GroupID, &fg.Name, &fg.Description, &fg.TotalSpots, &fg.AvailableSpots, &fg.IsFull, &fg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan focus group: %w", err)
		}
		items = append(items, fg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate focus groups: %w", err)
	}
	return items, nil
}

// DeleteFocusGroupCascade removes a focus group, its paired group's
// memberships, and the paired group, in that order, as one transaction.
// Returns false when the focus group was already gone.
func (s *PostgresStore) DeleteFocusGroupCascade(ctx context.Context, focusGroupID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin delete focus group: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var groupID string
	err = tx.QueryRowContext(ctx, `
		SELECT group_id FROM focus_groups WHERE id=$1 FOR UPDATE
	`, focusGroupID).Scan(&groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup focus group: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM focus_groups WHERE id=$1`, focusGroupID); err != nil {
		return false, fmt.Errorf("delete focus group: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM group_memberships WHERE group_id=$1`, groupID); err != nil {
		return false, fmt.Errorf("delete memberships: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID); err != nil {
		return false, fmt.Errorf("delete group: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit delete focus group: %w", err)
	}
	return true, nil
}

// ReserveSeat performs the compare-and-decrement: the availability check, the
// decrement, and the is_full transition execute as one statement. Returns
// false when no seat was available (or the group does not exist).
func (s *PostgresStore) ReserveSeat(ctx context.Context, focusGroupID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE focus_groups
		SET available_spots = available_spots - 1,
		    is_full = (available_spots - 1 = 0)
		WHERE id=$1 AND available_spots > 0
	`, focusGroupID)
	if err != nil {
		return false, fmt.Errorf("reserve seat: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("reserve seat rows: %w", err)
	}
	return rows > 0, nil
}

// ReleaseSeat returns one seat, capped at total_spots, and clears is_full in
// the same statement.
func (s *PostgresStore) ReleaseSeat(ctx context.Context, focusGroupID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE focus_groups
		SET available_spots = LEAST(available_spots + 1, total_spots),
		    is_full = FALSE
		WHERE id=$1
	`, focusGroupID)
	if err != nil {
		return fmt.Errorf("release seat: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Group memberships

func (s *PostgresStore) InsertGroupMembership(ctx context.Context, m GroupMembership) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO group_memberships (id, group_id, profile_id)
		VALUES ($1, $2, $3)
	`, m.ID, m.GroupID, m.ProfileID)
	if err != nil {
		return fmt.Errorf("insert membership: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteGroupMembership(ctx context.Context, groupID, profileID string) (bool, error) {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM group_memberships WHERE group_id=$1 AND profile_id=$2
	`, groupID, profileID)
	if err != nil {
		return false, fmt.Errorf("delete membership: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete membership rows: %w", err)
	}
	return rows > 0, nil
}

func (s *PostgresStore) ListGroupMembers(ctx context.Context, groupID string) ([]Member, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.profile_id, p.display_name, m.created_at
		FROM group_memberships m
		JOIN profiles p ON p.id = m.profile_id
		WHERE m.group_id=$1
		ORDER BY m.created_at ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group members: %w", err)
	}
	defer rows.Close()

	items := make([]Member, 0)
	for rows.Next() {
		var m Member
		if err := rows.Scan(&m.ProfileID, &m.DisplayName, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate members: %w", err)
	}
	return items, nil
}

// ---------------------------------------------------------------------------
// Refresh sessions and token revocation (Postgres fallback when Redis is not
// configured)

func (s *PostgresStore) SaveRefreshSession(ctx context.Context, tokenHash string, profile Profile, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO refresh_sessions (token_hash, profile_id, expires_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (token_hash) DO UPDATE SET profile_id=EXCLUDED.profile_id, expires_at=EXCLUDED.expires_at, revoked_at=NULL
	`, tokenHash, profile.ID, expiresAt)
	if err != nil {
		return fmt.Errorf("save refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) LookupRefreshSession(ctx context.Context, tokenHash string) (Profile, error) {
	const query = `
		SELECT p.id, p.display_name, p.email, p.role
		FROM refresh_sessions rs
		JOIN profiles p ON p.id = rs.profile_id
		WHERE rs.token_hash = $1
			AND rs.revoked_at IS NULL
			AND rs.expires_at > NOW()
	`
	var p Profile
	err := s.db.QueryRowContext(ctx, query, tokenHash).Scan(&p.ID, &p.DisplayName, &p.Email, &p.Role)
	if err != nil {
		return Profile{}, err
	}
	return p, nil
}

func (s *PostgresStore) RevokeRefreshSession(ctx context.Context, tokenHash string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE refresh_sessions SET revoked_at=NOW() WHERE token_hash=$1
	`, tokenHash)
	if err != nil {
		return fmt.Errorf("revoke refresh session: %w", err)
	}
	return nil
}

func (s *PostgresStore) RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO revoked_access_tokens (jti, expires_at)
		VALUES ($1, $2)
		ON CONFLICT (jti) DO NOTHING
	`, jti, expiresAt)
	if err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func (s *PostgresStore) IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error) {
	var revoked bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM revoked_access_tokens WHERE jti=$1)`, jti).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("check revoked token: %w", err)
	}
	return revoked, nil
}
