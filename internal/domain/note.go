package domain

import (
	"strings"
	"time"
)

// DefaultNoteTitle is used when a note is created without a title.
const DefaultNoteTitle = "Untitled"

type Note struct {
	ID           int64     `json:"id"`
	CreatedBy    int64     `json:"created_by"`
	Title        string    `json:"title"`
	Text         *string   `json:"text"`
	CreatedAt    time.Time `json:"created_at"`
	LastModified time.Time `json:"last_modified"`
	VersionNum   int       `json:"version_num"`
	Versions     *string   `json:"-"`
}

// NewNote builds an unsaved note owned by createdBy. The unit of work assigns
// the id, timestamps and the first version number on commit.
func NewNote(createdBy int64, title string, text *string) *Note {
	if title == "" {
		title = DefaultNoteTitle
	}
	return &Note{
		CreatedBy:  createdBy,
		Title:      title,
		Text:       text,
		VersionNum: 1,
	}
}

// TextValue returns the note body, or "" when it is absent.
func (n *Note) TextValue() string {
	if n.Text == nil {
		return ""
	}
	return *n.Text
}

// VersionsValue returns the raw version log, or "" when it is absent.
func (n *Note) VersionsValue() string {
	if n.Versions == nil {
		return ""
	}
	return *n.Versions
}

// Snapshot captures the fields archived into the version log.
func (n *Note) Snapshot() NoteSnapshot {
	return NoteSnapshot{
		Title:        n.Title,
		Text:         copyString(n.Text),
		LastModified: n.LastModified,
		VersionNum:   n.VersionNum,
	}
}

func copyString(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

// NoteSnapshot is the prior state of a loaded note. It is never persisted as
// such; it only lives in the unit of work between load and commit.
type NoteSnapshot struct {
	Title        string
	Text         *string
	LastModified time.Time
	VersionNum   int
}

// ValidateNote checks the preconditions for creating or updating a note.
func ValidateNote(creator *User, title string) error {
	if creator == nil || creator.ID == 0 {
		return ErrInvalidOwner
	}
	if strings.TrimSpace(title) == "" {
		return ErrEmptyTitle
	}
	return nil
}

type CreateNoteRequest struct {
	Title string  `json:"title"`
	Text  *string `json:"text"`
}

type UpdateNoteRequest struct {
	ID    int64   `json:"id"`
	Title string  `json:"title"`
	Text  *string `json:"text"`
}

type NoteIDResponse struct {
	NoteID int64 `json:"note_id"`
}

type NoteResponse struct {
	ID             int64   `json:"id"`
	CreatedBy      int64   `json:"created_by"`
	Title          string  `json:"title"`
	Text           *string `json:"text"`
	TsCreatedAt    float64 `json:"ts_created_at"`
	TsLastModified float64 `json:"ts_last_modified"`
	VersionNum     int     `json:"version_num"`
	Versions       []int   `json:"versions"`
}

// Timestamp converts t to epoch seconds.
func Timestamp(t time.Time) float64 {
	if t.IsZero() {
		return 0
	}
	return float64(t.UnixNano()) / float64(time.Second)
}
