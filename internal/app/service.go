package app

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"campfire/api/internal/auth"
	"campfire/api/internal/authpw"
	"campfire/api/internal/blob"
	"campfire/api/internal/config"
	"campfire/api/internal/moderation"
	"campfire/api/internal/rbac"
	"campfire/api/internal/search"
	"campfire/api/internal/store"
	"campfire/api/internal/util"
	"campfire/api/internal/visibility"
)

// Resource types accepted by Authorize.
const (
	ResourcePost       = "post"
	ResourceComment    = "comment"
	ResourceFocusGroup = "focus_group"
)

// Session is what a valid access token resolves to.
type Session struct {
	Token        string
	RefreshToken string
	ProfileID    string
	DisplayName  string
	Role         string
	JTI          string
	ExpiresAt    time.Time
}

// Principal is a profile with its effective role, after any expired timed ban
// has been reconciled.
type Principal struct {
	ID          string
	DisplayName string
	Role        rbac.Role
	BanReason   string
	BannedUntil *time.Time
}

func (p Principal) Banned() bool { return p.Role == rbac.RoleBanned }

type dataStore interface {
	GetProfile(ctx context.Context, profileID string) (store.Profile, error)
	GetProfileByEmail(ctx context.Context, email string) (store.Profile, error)
	CreateProfile(ctx context.Context, profile store.Profile) error
	SetBan(ctx context.Context, profileID, reason string, until *time.Time) error
	ClearBan(ctx context.Context, profileID string) error
	ReconcileExpiredBan(ctx context.Context, profileID string) (bool, error)
	ListExpiredBans(ctx context.Context, now time.Time) ([]string, error)
	ResourceOwner(ctx context.Context, resourceType, resourceID string) (string, error)
	InsertPost(ctx context.Context, post store.Post) error
	GetPost(ctx context.Context, postID string) (store.Post, error)
	UpdatePostBody(ctx context.Context, postID, body string) error
	DeletePost(ctx context.Context, postID string) (bool, error)
	ListRecentPosts(ctx context.Context, limit int) ([]store.Post, error)
	ListGroupPosts(ctx context.Context, groupID string, limit int) ([]store.Post, error)
	InsertComment(ctx context.Context, comment store.Comment) error
	DeleteComment(ctx context.Context, commentID string) (bool, error)
	ListPostComments(ctx context.Context, postID string) ([]store.Comment, error)
	InsertBlock(ctx context.Context, blockerID, blockedID string) error
	DeleteBlock(ctx context.Context, blockerID, blockedID string) (bool, error)
	ListBlockedCounterparts(ctx context.Context, profileID string) ([]string, error)
	CreateFocusGroup(ctx context.Context, group store.Group, fg store.FocusGroup) error
	GetFocusGroup(ctx context.Context, focusGroupID string) (store.FocusGroup, error)
	ListFocusGroups(ctx context.Context) ([]store.FocusGroup, error)
	DeleteFocusGroupCascade(ctx context.Context, focusGroupID string) (bool, error)
	ReserveSeat(ctx context.Context, focusGroupID string) (bool, error)
	ReleaseSeat(ctx context.Context, focusGroupID string) error
	InsertGroupMembership(ctx context.Context, m store.GroupMembership) error
	DeleteGroupMembership(ctx context.Context, groupID, profileID string) (bool, error)
	ListGroupMembers(ctx context.Context, groupID string) ([]store.Member, error)
	RevokeAccessToken(ctx context.Context, jti string, expiresAt time.Time) error
	IsAccessTokenRevoked(ctx context.Context, jti string) (bool, error)
	Ping(ctx context.Context) error
}

// SessionStore is the refresh session backend: Redis when configured, the
// Postgres store otherwise.
type SessionStore interface {
	SaveRefreshSession(ctx context.Context, tokenHash string, profile store.Profile, expiresAt time.Time) error
	LookupRefreshSession(ctx context.Context, tokenHash string) (store.Profile, error)
	RevokeRefreshSession(ctx context.Context, tokenHash string) error
}

type postIndex interface {
	Search(q search.Query) search.Response
	IndexPost(p search.PostRecord)
	DeletePost(id string)
}

type uploader interface {
	Upload(ctx context.Context, filename, contentType string, size int64, body io.Reader) (string, error)
}

type Service struct {
	cfg      config.Config
	store    dataStore
	sessions SessionStore
	creds    *authpw.Service
	signer   *auth.Signer
	search   postIndex
	blobs    uploader
}

// New wires the service. sessions may be the Redis store or the Postgres
// fallback; searchSvc and blobs may be nil when not configured.
func New(cfg config.Config, dataStore dataStore, sessions SessionStore, searchSvc postIndex, blobs uploader) *Service {
	return &Service{
		cfg:      cfg,
		store:    dataStore,
		sessions: sessions,
		creds:    authpw.NewService(dataStore),
		signer:   auth.NewSigner([]byte(cfg.JWTSecret)),
		search:   searchSvc,
		blobs:    blobs,
	}
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// ---------------------------------------------------------------------------
// Identity and authorization

// ResolvePrincipal loads a profile and reconciles an expired timed ban before
// returning the effective role. Permanent bans (nil expiry) never reconcile.
func (s *Service) ResolvePrincipal(ctx context.Context, profileID string) (Principal, error) {
	profile, err := s.store.GetProfile(ctx, profileID)
	if errors.Is(err, sql.ErrNoRows) {
		return Principal{}, errUnauthenticated()
	}
	if err != nil {
		return Principal{}, err
	}

	if profile.Role == string(rbac.RoleBanned) && profile.BannedUntil != nil && !time.Now().Before(*profile.BannedUntil) {
		if _, err := s.store.ReconcileExpiredBan(ctx, profileID); err != nil {
			return Principal{}, err
		}
		profile, err = s.store.GetProfile(ctx, profileID)
		if err != nil {
			return Principal{}, err
		}
	}

	return Principal{
		ID:          profile.ID,
		DisplayName: profile.DisplayName,
		Role:        rbac.Normalize(profile.Role),
		BanReason:   profile.BanReason,
		BannedUntil: profile.BannedUntil,
	}, nil
}

// Authorize decides whether the principal may perform an action on a
// resource. A missing resource reports NOT_FOUND before any ownership
// comparison, so 403 never leaks resource existence.
func (s *Service) Authorize(ctx context.Context, p Principal, action rbac.Action, resourceType, resourceID string) error {
	if p.Banned() {
		return errBanned(p.BanReason)
	}
	if action == rbac.ActionCreate {
		if !rbac.Can(p.Role, action, false) {
			return errForbidden()
		}
		return nil
	}

	ownerID, err := s.store.ResourceOwner(ctx, resourceType, resourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return errNotFound(resourceLabel(resourceType))
	}
	if err != nil {
		return err
	}
	if !rbac.Can(p.Role, action, ownerID == p.ID) {
		return errForbidden()
	}
	return nil
}

func resourceLabel(resourceType string) string {
	switch resourceType {
	case ResourcePost:
		return "Post"
	case ResourceComment:
		return "Comment"
	case ResourceFocusGroup:
		return "Focus group"
	default:
		return "Resource"
	}
}

// ---------------------------------------------------------------------------
// Ban lifecycle

// ImposeBan bans a profile. A nil until means permanent; otherwise the ban
// expires lazily at next resolve or via the sweep, whichever comes first.
func (s *Service) ImposeBan(ctx context.Context, session Session, targetID, reason string, until *time.Time) error {
	actor, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return err
	}
	if !rbac.CanModerate(actor.Role) {
		return errForbidden()
	}
	if targetID == actor.ID {
		return errConflict("Cannot ban yourself")
	}

	if err := s.store.SetBan(ctx, targetID, reason, until); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("Profile")
		}
		return err
	}
	return nil
}

func (s *Service) LiftBan(ctx context.Context, session Session, targetID string) error {
	actor, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return err
	}
	if !rbac.CanModerate(actor.Role) {
		return errForbidden()
	}

	if err := s.store.ClearBan(ctx, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("Profile")
		}
		return err
	}
	return nil
}

// SweepExpiredBans restores every profile whose timed ban has lapsed. Per-row
// failures are logged and skipped so one bad row cannot stall the sweep.
func (s *Service) SweepExpiredBans(ctx context.Context) (int, error) {
	ids, err := s.store.ListExpiredBans(ctx, time.Now())
	if err != nil {
		return 0, err
	}

	restored := 0
	for _, id := range ids {
		reconciled, err := s.store.ReconcileExpiredBan(ctx, id)
		if err != nil {
			log.Printf("ban sweep: reconcile %s: %v", id, err)
			continue
		}
		if reconciled {
			restored++
		}
	}
	return restored, nil
}

// ---------------------------------------------------------------------------
// Posts and comments

type CreatePostInput struct {
	Body     string
	GroupID  string
	ImageURL string
}

// moderateBody sanitizes a body for storage and validates its plain-text
// projection, so a policy word split by allowed markup still trips the
// language rule.
func moderateBody(raw string) (string, error) {
	body := moderation.Sanitize(raw, moderation.RichText)
	plain := moderation.Sanitize(body, moderation.PlainText)
	if verdict := moderation.Validate(plain); !verdict.IsValid {
		return "", errValidation(verdict.Reason)
	}
	return body, nil
}

// CreatePost sanitizes and validates the body, then persists and indexes the
// post. Sanitization runs first so policy words cannot hide inside markup.
func (s *Service) CreatePost(ctx context.Context, session Session, input CreatePostInput) (store.Post, error) {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return store.Post{}, err
	}
	if err := s.Authorize(ctx, p, rbac.ActionCreate, ResourcePost, ""); err != nil {
		return store.Post{}, err
	}

	body, err := moderateBody(input.Body)
	if err != nil {
		return store.Post{}, err
	}

	post := store.Post{
		ID:       util.NewID("post"),
		AuthorID: p.ID,
		Body:     body,
		ImageURL: input.ImageURL,
	}
	if input.GroupID != "" {
		groupID := input.GroupID
		post.GroupID = &groupID
	}

	if err := s.store.InsertPost(ctx, post); err != nil {
		return store.Post{}, err
	}
	s.indexPost(post)
	return post, nil
}

func (s *Service) EditPost(ctx context.Context, session Session, postID, body string) (store.Post, error) {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return store.Post{}, err
	}
	if err := s.Authorize(ctx, p, rbac.ActionEdit, ResourcePost, postID); err != nil {
		return store.Post{}, err
	}

	clean, err := moderateBody(body)
	if err != nil {
		return store.Post{}, err
	}

	if err := s.store.UpdatePostBody(ctx, postID, clean); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Post{}, errNotFound("Post")
		}
		return store.Post{}, err
	}

	post, err := s.store.GetPost(ctx, postID)
	if err != nil {
		return store.Post{}, err
	}
	s.indexPost(post)
	return post, nil
}

func (s *Service) DeletePost(ctx context.Context, session Session, postID string) error {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return err
	}
	if err := s.Authorize(ctx, p, rbac.ActionDelete, ResourcePost, postID); err != nil {
		return err
	}

	deleted, err := s.store.DeletePost(ctx, postID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Post")
	}
	if s.search != nil {
		s.search.DeletePost(postID)
	}
	return nil
}

func (s *Service) indexPost(post store.Post) {
	if s.search == nil {
		return
	}
	record := search.PostRecord{ID: post.ID, AuthorID: post.AuthorID, Body: post.Body}
	if post.GroupID != nil {
		record.GroupID = *post.GroupID
	}
	s.search.IndexPost(record)
}

// CreateComment persists a plain-text comment under an existing post.
func (s *Service) CreateComment(ctx context.Context, session Session, postID, body string) (store.Comment, error) {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return store.Comment{}, err
	}
	if err := s.Authorize(ctx, p, rbac.ActionCreate, ResourceComment, ""); err != nil {
		return store.Comment{}, err
	}

	if _, err := s.store.GetPost(ctx, postID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Comment{}, errNotFound("Post")
		}
		return store.Comment{}, err
	}

	clean := moderation.Sanitize(body, moderation.PlainText)
	if verdict := moderation.Validate(clean); !verdict.IsValid {
		return store.Comment{}, errValidation(verdict.Reason)
	}

	comment := store.Comment{
		ID:       util.NewID("cmt"),
		PostID:   postID,
		AuthorID: p.ID,
		Body:     clean,
	}
	if err := s.store.InsertComment(ctx, comment); err != nil {
		return store.Comment{}, err
	}
	return comment, nil
}

func (s *Service) DeleteComment(ctx context.Context, session Session, commentID string) error {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return err
	}
	if err := s.Authorize(ctx, p, rbac.ActionDelete, ResourceComment, commentID); err != nil {
		return err
	}

	deleted, err := s.store.DeleteComment(ctx, commentID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Comment")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Reads, all behind the visibility filter

func (s *Service) blockSet(ctx context.Context, viewerID string) (visibility.BlockSet, error) {
	ids, err := s.store.ListBlockedCounterparts(ctx, viewerID)
	if err != nil {
		return nil, err
	}
	return visibility.NewBlockSet(ids), nil
}

func (s *Service) Feed(ctx context.Context, session Session, limit int) ([]store.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	posts, err := s.store.ListRecentPosts(ctx, limit)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blockSet(ctx, session.ProfileID)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(posts, blocks), nil
}

func (s *Service) GroupFeed(ctx context.Context, session Session, groupID string, limit int) ([]store.Post, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	posts, err := s.store.ListGroupPosts(ctx, groupID, limit)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blockSet(ctx, session.ProfileID)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(posts, blocks), nil
}

func (s *Service) PostComments(ctx context.Context, session Session, postID string) ([]store.Comment, error) {
	if _, err := s.store.GetPost(ctx, postID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Post")
		}
		return nil, err
	}
	comments, err := s.store.ListPostComments(ctx, postID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blockSet(ctx, session.ProfileID)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(comments, blocks), nil
}

func (s *Service) FocusGroupMembers(ctx context.Context, session Session, focusGroupID string) ([]store.Member, error) {
	fg, err := s.store.GetFocusGroup(ctx, focusGroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errNotFound("Focus group")
		}
		return nil, err
	}
	members, err := s.store.ListGroupMembers(ctx, fg.GroupID)
	if err != nil {
		return nil, err
	}
	blocks, err := s.blockSet(ctx, session.ProfileID)
	if err != nil {
		return nil, err
	}
	return visibility.Filter(members, blocks), nil
}

func (s *Service) ListFocusGroups(ctx context.Context) ([]store.FocusGroup, error) {
	return s.store.ListFocusGroups(ctx)
}

func (s *Service) SearchPosts(ctx context.Context, session Session, q search.Query) (search.Response, error) {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}, nil
	}
	resp := s.search.Search(q)
	blocks, err := s.blockSet(ctx, session.ProfileID)
	if err != nil {
		return search.Response{}, err
	}
	resp.Results = visibility.Filter(resp.Results, blocks)
	return resp, nil
}

// ---------------------------------------------------------------------------
// Blocks

func (s *Service) BlockProfile(ctx context.Context, session Session, targetID string) error {
	if targetID == session.ProfileID {
		return errConflict("Cannot block yourself")
	}
	if _, err := s.store.GetProfile(ctx, targetID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("Profile")
		}
		return err
	}
	return s.store.InsertBlock(ctx, session.ProfileID, targetID)
}

func (s *Service) UnblockProfile(ctx context.Context, session Session, targetID string) error {
	deleted, err := s.store.DeleteBlock(ctx, session.ProfileID, targetID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Block")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Focus groups

type CreateFocusGroupInput struct {
	Name        string
	Description string
	TotalSpots  int
}

// CreateFocusGroup creates the focus group and its paired communication group
// atomically. Only mentors and admins may host.
func (s *Service) CreateFocusGroup(ctx context.Context, session Session, input CreateFocusGroupInput) (store.FocusGroup, error) {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return store.FocusGroup{}, err
	}
	if p.Banned() {
		return store.FocusGroup{}, errBanned(p.BanReason)
	}
	if !rbac.CanHostFocusGroup(p.Role) {
		return store.FocusGroup{}, errForbidden()
	}

	name := moderation.Sanitize(input.Name, moderation.PlainText)
	if verdict := moderation.Validate(name); !verdict.IsValid {
		return store.FocusGroup{}, errValidation(verdict.Reason)
	}
	if input.TotalSpots <= 0 {
		return store.FocusGroup{}, errValidation("invalid_capacity")
	}
	description := moderation.Sanitize(input.Description, moderation.PlainText)

	group := store.Group{
		ID:          util.NewID("grp"),
		Name:        name,
		Description: description,
		CreatorID:   p.ID,
	}
	fg := store.FocusGroup{
		ID:             util.NewID("fg"),
		MentorID:       p.ID,
		GroupID:        group.ID,
		Name:           name,
		Description:    description,
		TotalSpots:     input.TotalSpots,
		AvailableSpots: input.TotalSpots,
	}
	if err := s.store.CreateFocusGroup(ctx, group, fg); err != nil {
		return store.FocusGroup{}, err
	}
	return fg, nil
}

// DeleteFocusGroup cascades: the focus group, its paired group's memberships,
// and the paired group all go in one transaction. A second delete of the same
// group reports NOT_FOUND.
func (s *Service) DeleteFocusGroup(ctx context.Context, session Session, focusGroupID string) error {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return err
	}
	if err := s.Authorize(ctx, p, rbac.ActionDelete, ResourceFocusGroup, focusGroupID); err != nil {
		return err
	}

	deleted, err := s.store.DeleteFocusGroupCascade(ctx, focusGroupID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Focus group")
	}
	return nil
}

// JoinFocusGroup reserves a seat and then records the membership. The seat
// reservation is the atomic gate: when the membership insert fails the seat
// is released so capacity never leaks.
func (s *Service) JoinFocusGroup(ctx context.Context, session Session, focusGroupID string) error {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return err
	}
	if p.Banned() {
		return errBanned(p.BanReason)
	}

	fg, err := s.store.GetFocusGroup(ctx, focusGroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("Focus group")
		}
		return err
	}

	reserved, err := s.store.ReserveSeat(ctx, focusGroupID)
	if err != nil {
		return err
	}
	if !reserved {
		// Distinguish a full group from one deleted since the fetch above.
		if _, err := s.store.GetFocusGroup(ctx, focusGroupID); errors.Is(err, sql.ErrNoRows) {
			return errNotFound("Focus group")
		}
		return errCapacity()
	}

	membership := store.GroupMembership{
		ID:        util.NewID("mem"),
		GroupID:   fg.GroupID,
		ProfileID: p.ID,
	}
	if err := s.store.InsertGroupMembership(ctx, membership); err != nil {
		if releaseErr := s.store.ReleaseSeat(ctx, focusGroupID); releaseErr != nil {
			log.Printf("join focus group: release seat %s: %v", focusGroupID, releaseErr)
		}
		if store.IsDuplicate(err) {
			return errConflict("Already a member")
		}
		return err
	}
	return nil
}

func (s *Service) LeaveFocusGroup(ctx context.Context, session Session, focusGroupID string) error {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return err
	}
	if p.Banned() {
		return errBanned(p.BanReason)
	}

	fg, err := s.store.GetFocusGroup(ctx, focusGroupID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errNotFound("Focus group")
		}
		return err
	}

	deleted, err := s.store.DeleteGroupMembership(ctx, fg.GroupID, p.ID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound("Membership")
	}
	return s.store.ReleaseSeat(ctx, focusGroupID)
}

// ---------------------------------------------------------------------------
// Uploads

func (s *Service) UploadImage(ctx context.Context, session Session, filename, contentType string, size int64, body io.Reader) (string, error) {
	p, err := s.ResolvePrincipal(ctx, session.ProfileID)
	if err != nil {
		return "", err
	}
	if p.Banned() {
		return "", errBanned(p.BanReason)
	}
	if s.blobs == nil {
		return "", domainError(http.StatusServiceUnavailable, "UPLOADS_DISABLED", "Uploads are not configured", nil)
	}

	url, err := s.blobs.Upload(ctx, filename, contentType, size, body)
	if err != nil {
		switch {
		case errors.Is(err, blob.ErrTooLarge):
			return "", errValidation("too_large")
		case errors.Is(err, blob.ErrUnsupportedType):
			return "", errValidation("unsupported_type")
		}
		return "", err
	}
	return url, nil
}

// ---------------------------------------------------------------------------
// Accounts and sessions

func (s *Service) SignUp(ctx context.Context, email, password, displayName string) (Session, error) {
	profile, err := s.creds.SignUp(ctx, authpw.SignUpRequest{
		Email:       email,
		Password:    password,
		DisplayName: displayName,
	})
	if err != nil {
		if errors.Is(err, authpw.ErrEmailTaken) {
			return Session{}, errConflict("Email already registered")
		}
		return Session{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), nil)
	}
	return s.issueSession(ctx, profile)
}

func (s *Service) SignIn(ctx context.Context, email, password string) (Session, error) {
	profile, err := s.creds.SignIn(ctx, email, password)
	if err != nil {
		return Session{}, domainError(http.StatusUnauthorized, "UNAUTHENTICATED", "Invalid email or password", nil)
	}
	return s.issueSession(ctx, profile)
}

// Refresh rotates the refresh token: the presented one is revoked and a fresh
// pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	tokenHash := auth.HashToken(refreshToken)
	profile, err := s.sessions.LookupRefreshSession(ctx, tokenHash)
	if err != nil {
		return Session{}, errUnauthenticated()
	}
	if err := s.sessions.RevokeRefreshSession(ctx, tokenHash); err != nil {
		return Session{}, err
	}

	// Re-read so a ban imposed since issue invalidates the snapshot.
	current, err := s.ResolvePrincipal(ctx, profile.ID)
	if err != nil {
		return Session{}, err
	}
	profile.Role = string(current.Role)
	profile.DisplayName = current.DisplayName
	return s.issueSession(ctx, profile)
}

func (s *Service) issueSession(ctx context.Context, profile store.Profile) (Session, error) {
	now := time.Now()
	expiresAt := now.Add(s.cfg.AccessTTL)
	jti := util.NewID("jti")

	token, err := s.signer.Issue(auth.Claims{
		Sub:  profile.ID,
		Name: profile.DisplayName,
		Role: profile.Role,
		JTI:  jti,
		Iat:  now.Unix(),
		Exp:  expiresAt.Unix(),
	})
	if err != nil {
		return Session{}, err
	}

	refresh := util.NewToken()
	refreshExpires := now.Add(s.cfg.RefreshTTL)
	if err := s.sessions.SaveRefreshSession(ctx, auth.HashToken(refresh), profile, refreshExpires); err != nil {
		return Session{}, err
	}

	return Session{
		Token:        token,
		RefreshToken: refresh,
		ProfileID:    profile.ID,
		DisplayName:  profile.DisplayName,
		Role:         profile.Role,
		JTI:          jti,
		ExpiresAt:    expiresAt,
	}, nil
}

// SessionFromToken verifies the token, checks revocation, and resolves the
// principal so the session carries the current role, not the issue-time one.
func (s *Service) SessionFromToken(ctx context.Context, token string) (Session, error) {
	claims, err := s.signer.Parse(token)
	if err != nil {
		return Session{}, err
	}
	revoked, err := s.store.IsAccessTokenRevoked(ctx, claims.JTI)
	if err != nil {
		return Session{}, err
	}
	if revoked {
		return Session{}, auth.ErrInvalidToken
	}

	principal, err := s.ResolvePrincipal(ctx, claims.Sub)
	if err != nil {
		return Session{}, err
	}

	return Session{
		Token:       token,
		ProfileID:   principal.ID,
		DisplayName: principal.DisplayName,
		Role:        string(principal.Role),
		JTI:         claims.JTI,
		ExpiresAt:   time.Unix(claims.Exp, 0),
	}, nil
}

func (s *Service) Logout(ctx context.Context, session Session, refreshToken string) error {
	if session.JTI != "" {
		_ = s.store.RevokeAccessToken(ctx, session.JTI, session.ExpiresAt)
	}
	if strings.TrimSpace(refreshToken) != "" {
		_ = s.sessions.RevokeRefreshSession(ctx, auth.HashToken(refreshToken))
	}
	return nil
}
