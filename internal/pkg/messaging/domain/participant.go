package messaging

import "time"

// ParticipantRole expresses the role within a room.
// Item rooms carry an owner and a finder; direct rooms use the plain
// participant role.
type ParticipantRole string

const (
	RoleOwner       ParticipantRole = "owner"
	RoleFinder      ParticipantRole = "finder"
	RoleParticipant ParticipantRole = "participant"
)

// Complement returns the counterpart role for the other side of an item room.
func (r ParticipantRole) Complement() ParticipantRole {
	switch r {
	case RoleOwner:
		return RoleFinder
	case RoleFinder:
		return RoleOwner
	default:
		return RoleParticipant
	}
}

// Participant captures membership of one user in one room.
// Primary key: (RoomID, UserID); a user appears at most once per room.
type Participant struct {
	RoomID   string          `db:"room_id"`
	UserID   string          `db:"user_id"`
	Role     ParticipantRole `db:"role"`
	JoinedAt time.Time       `db:"joined_at"`
}
