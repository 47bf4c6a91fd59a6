package versioning

import (
	"context"
	"fmt"
	"time"

	"notebook-server/internal/domain"

	"go.uber.org/zap"
)

// SystemIdentity is recorded as modified_by when no user is authenticated.
const SystemIdentity = "system"

// Fields written into every archived entry.
const (
	FieldTitle        = "title"
	FieldText         = "text"
	FieldLastModified = "last_modified"
	FieldVersionNum   = "version_num"
	FieldVersionAt    = "version_at"
	FieldModifiedBy   = "modified_by"
)

// IdentityFunc returns the authenticated principal carried by ctx.
type IdentityFunc func(ctx context.Context) (string, bool)

// Snapshots is the side table a unit of work keeps for the notes it loaded.
// It is discarded with the unit of work.
type Snapshots interface {
	Snapshot(noteID int64) (domain.NoteSnapshot, bool)
	SetSnapshot(noteID int64, s domain.NoteSnapshot)
}

// Recorder archives the prior state of every note that changes inside a unit
// of work. It keeps no state of its own.
type Recorder struct {
	identity IdentityFunc
	clock    domain.Clock
	logger   *zap.SugaredLogger
}

func NewRecorder(identity IdentityFunc, clock domain.Clock, logger *zap.SugaredLogger) *Recorder {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Recorder{
		identity: identity,
		clock:    clock,
		logger:   logger,
	}
}

// OnLoaded captures the state of a note freshly read from storage.
func (r *Recorder) OnLoaded(snapshots Snapshots, note *domain.Note) {
	if note == nil || note.ID == 0 {
		return
	}
	snapshots.SetSnapshot(note.ID, note.Snapshot())
}

// BeforeCommit archives the captured state of each dirty note under its
// current version number and moves the note to the next version. Notes with
// no captured state (created in this unit of work) only get their
// modification time stamped.
func (r *Recorder) BeforeCommit(ctx context.Context, snapshots Snapshots, dirty []*domain.Note) error {
	now := r.clock.Now()
	modifiedBy := r.modifiedBy(ctx)

	for _, note := range dirty {
		if note.ID != 0 {
			if prior, ok := snapshots.Snapshot(note.ID); ok {
				if err := r.archive(note, prior, now, modifiedBy); err != nil {
					return fmt.Errorf("note %d: %w", note.ID, err)
				}
			}
		}
		note.LastModified = now
	}
	return nil
}

func (r *Recorder) archive(note *domain.Note, prior domain.NoteSnapshot, now time.Time, modifiedBy string) error {
	log := DecodeLenient(note.VersionsValue(), r.logger.With("note_id", note.ID))

	entry := Entry{
		FieldTitle:        prior.Title,
		FieldText:         nil,
		FieldLastModified: prior.LastModified,
		FieldVersionNum:   prior.VersionNum,
		FieldVersionAt:    now,
		FieldModifiedBy:   modifiedBy,
	}
	if prior.Text != nil {
		entry[FieldText] = *prior.Text
	}
	log[Key(note.VersionNum)] = entry

	encoded, err := Encode(log)
	if err != nil {
		return err
	}
	note.Versions = &encoded
	note.VersionNum++

	r.logger.Debugw("note version archived",
		"note_id", note.ID,
		"archived_version", note.VersionNum-1,
		"modified_by", modifiedBy,
	)
	return nil
}

func (r *Recorder) modifiedBy(ctx context.Context) string {
	if r.identity == nil {
		return SystemIdentity
	}
	if id, ok := r.identity(ctx); ok && id != "" {
		return id
	}
	return SystemIdentity
}
