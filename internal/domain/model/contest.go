// Package model contains domain models passed between layers.
package model

import "time"

// PlayerRef points at a Player by identity.
type PlayerRef struct {
	ID string `json:"_id" yaml:"id"`
}

// Player is a global player identity with display attributes.
type Player struct {
	ID          string `json:"_id" yaml:"id"`
	Nickname    string `json:"nickname" yaml:"nickname"`
	DisplayName string `json:"displayName,omitempty" yaml:"display_name"`
	MajsoulID   int64  `json:"-" yaml:"majsoul_id"`
}

// Team is a contest team. A player belongs to a team when their id appears in Players.
type Team struct {
	ID      string      `json:"_id" yaml:"id"`
	Name    string      `json:"name" yaml:"name"`
	Image   string      `json:"image,omitempty" yaml:"image"`
	Anthem  string      `json:"anthem,omitempty" yaml:"anthem"`
	Color   string      `json:"color,omitempty" yaml:"color"`
	Players []PlayerRef `json:"players" yaml:"players"`
}

// HasPlayer reports whether playerID is a member of the team.
func (t Team) HasPlayer(playerID string) bool {
	for _, p := range t.Players {
		if p.ID == playerID {
			return true
		}
	}
	return false
}

// Contest is a multi-session team tournament.
type Contest struct {
	ID         string `json:"_id" yaml:"id"`
	FriendlyID int64  `json:"majsoulFriendlyId" yaml:"friendly_id"`
	MajsoulID  int64  `json:"-" yaml:"majsoul_id"`
	Name       string `json:"name" yaml:"name"`
	Tag        string `json:"tag,omitempty" yaml:"tag"`
	Teams      []Team `json:"teams,omitempty" yaml:"teams"`
}

// Summary returns the contest without its team roster.
func (c Contest) Summary() Contest {
	c.Teams = nil
	return c
}

// Session is a scheduled block of play within a contest.
type Session struct {
	ID            string    `json:"_id" yaml:"id"`
	ContestID     string    `json:"contestId" yaml:"contest_id"`
	ScheduledTime time.Time `json:"scheduledTime" yaml:"scheduled_time"`
}

// Roster bundles the teams and players of one contest.
type Roster struct {
	Teams   []Team
	Players []Player
}

// TeamPatch carries the editable display attributes of a team.
type TeamPatch struct {
	Image  *string `json:"image" validate:"omitempty,max=2048"`
	Anthem *string `json:"anthem" validate:"omitempty,max=256"`
}

// Empty reports whether the patch changes nothing.
func (p TeamPatch) Empty() bool {
	return p.Image == nil && p.Anthem == nil
}
