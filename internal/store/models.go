package store

import "time"

// Profile is the persisted account record. Role, ban reason and ban expiry are
// three distinct fields; a ban never hides inside the role string or the bio.
type Profile struct {
	ID           string
	DisplayName  string
	Email        string
	PasswordHash string
	Role         string
	Bio          string
	AvatarURL    string
	BanReason    string
	BannedUntil  *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Post struct {
	ID        string
	AuthorID  string
	GroupID   *string
	Body      string
	ImageURL  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Post) AuthoredBy() string { return p.AuthorID }

type Comment struct {
	ID        string
	PostID    string
	AuthorID  string
	Body      string
	CreatedAt time.Time
}

func (c Comment) AuthoredBy() string { return c.AuthorID }

// Group is the communication channel paired 1:1 with a focus group.
type Group struct {
	ID          string
	Name        string
	Description string
	CreatorID   string
	CreatedAt   time.Time
}

type GroupMembership struct {
	ID        string
	GroupID   string
	ProfileID string
	CreatedAt time.Time
}

// Member is the joined row returned for member lists.
type Member struct {
	ProfileID   string
	DisplayName string
	JoinedAt    time.Time
}

func (m Member) AuthoredBy() string { return m.ProfileID }

// FocusGroup is a mentor-led group with bounded seat capacity. The invariant
// 0 <= available_spots <= total_spots and is_full == (available_spots == 0)
// is maintained by single-statement conditional updates, never read-then-write.
type FocusGroup struct {
	ID             string
	MentorID       string
	GroupID        string
	Name           string
	Description    string
	TotalSpots     int
	AvailableSpots int
	IsFull         bool
	CreatedAt      time.Time
}

// Block is a directed edge; its visibility effect is symmetric at read time.
type Block struct {
	BlockerID string
	BlockedID string
	CreatedAt time.Time
}
