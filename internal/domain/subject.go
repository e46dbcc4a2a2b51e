package domain

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// ErrNoNickname is returned by Subject.Nickname when none is set.
var ErrNoNickname = errors.New("subject has no nickname")

// Subject is an entity that can hold balances, usually a player.
type Subject struct {
	id       uuid.UUID
	nickname string
}

// NewSubject creates a subject. A nil id is rejected.
func NewSubject(id uuid.UUID, nickname string) (Subject, error) {
	if id == uuid.Nil {
		return Subject{}, Invalid("subject_id", "must be set")
	}
	s := Subject{id: id}
	s.SwapNickname(nickname)
	return s, nil
}

func (s Subject) ID() uuid.UUID { return s.id }

// Nickname returns an ERROR response when no nickname is set.
func (s Subject) Nickname() Response[string] {
	if s.nickname == "" {
		return Fail[string](ErrNoNickname)
	}
	return OK(s.nickname)
}

// SwapNickname replaces the nickname and returns the previous one.
// Blank input clears it.
func (s *Subject) SwapNickname(v string) Response[string] {
	return swapString(&s.nickname, v)
}

// Validate checks the invariants a stored subject must hold.
func (s Subject) Validate() error {
	if s.id == uuid.Nil {
		return Invalid("subject_id", "must be set")
	}
	return nil
}

type subjectJSON struct {
	ID       uuid.UUID `json:"id"`
	Nickname string    `json:"nickname,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (s Subject) MarshalJSON() ([]byte, error) {
	return json.Marshal(subjectJSON{ID: s.id, Nickname: s.nickname})
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Subject) UnmarshalJSON(data []byte) error {
	var w subjectJSON
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	*s = RestoreSubject(w.ID, w.Nickname)
	return nil
}

// RestoreSubject rebuilds a subject from stored columns.
func RestoreSubject(id uuid.UUID, nickname string) Subject {
	return Subject{id: id, nickname: nickname}
}
