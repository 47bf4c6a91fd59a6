package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"

	"notebook-server/internal/domain"
	"notebook-server/internal/versioning"

	"go.uber.org/zap"
)

var (
	ErrUnitOfWorkDone  = errors.New("unit of work already finished")
	ErrOwnerReassigned = errors.New("note owner cannot be changed")
)

// NoteHook observes the note lifecycle inside a unit of work. OnLoaded runs
// for every note materialized from storage, BeforeCommit once per commit with
// the notes about to be written.
type NoteHook interface {
	OnLoaded(snapshots versioning.Snapshots, note *domain.Note)
	BeforeCommit(ctx context.Context, snapshots versioning.Snapshots, dirty []*domain.Note) error
}

// Tx gives access to the repositories of one unit of work.
type Tx interface {
	Notes() NoteRepository
	Users() UserRepository
}

// Transactor runs work atomically.
type Transactor interface {
	Do(ctx context.Context, fn func(tx Tx) error) error
}

// Store opens units of work on a database.
type Store struct {
	db     *sql.DB
	clock  domain.Clock
	hooks  []NoteHook
	logger *zap.SugaredLogger
}

func NewStore(db *sql.DB, clock domain.Clock, logger *zap.SugaredLogger, hooks ...NoteHook) *Store {
	if clock == nil {
		clock = domain.RealClock{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Store{
		db:     db,
		clock:  clock,
		hooks:  hooks,
		logger: logger,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Begin starts a unit of work bound to ctx. It must end with Commit or
// Rollback.
func (s *Store) Begin(ctx context.Context) (*UnitOfWork, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	uow := &UnitOfWork{
		ctx:       ctx,
		tx:        tx,
		clock:     s.clock,
		hooks:     s.hooks,
		logger:    s.logger,
		identity:  make(map[int64]*trackedNote),
		removed:   make(map[int64]*domain.Note),
		snapshots: make(snapshotTable),
	}
	uow.notes = &noteRepository{uow: uow}
	uow.users = &userRepository{uow: uow}
	return uow, nil
}

// Do runs fn in a unit of work and commits it when fn succeeds. A panic in
// fn rolls the unit of work back before propagating.
func (s *Store) Do(ctx context.Context, fn func(tx Tx) error) error {
	uow, err := s.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			uow.Rollback()
			panic(p)
		}
	}()

	if err := fn(uow); err != nil {
		uow.Rollback()
		return err
	}
	return uow.Commit()
}

// trackedNote remembers the persisted column values a note was loaded with.
type trackedNote struct {
	note      *domain.Note
	title     string
	text      *string
	createdBy int64
}

func (t *trackedNote) changed() bool {
	return t.note.Title != t.title || !equalText(t.note.Text, t.text)
}

func equalText(a, b *string) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

type snapshotTable map[int64]domain.NoteSnapshot

func (t snapshotTable) Snapshot(noteID int64) (domain.NoteSnapshot, bool) {
	s, ok := t[noteID]
	return s, ok
}

func (t snapshotTable) SetSnapshot(noteID int64, s domain.NoteSnapshot) {
	t[noteID] = s
}

// UnitOfWork is a single transaction with an identity map of the notes it has
// loaded. Note changes are written on Commit; user changes are written
// immediately inside the transaction. It is single use.
type UnitOfWork struct {
	ctx    context.Context
	tx     *sql.Tx
	clock  domain.Clock
	hooks  []NoteHook
	logger *zap.SugaredLogger

	identity  map[int64]*trackedNote
	added     []*domain.Note
	removed   map[int64]*domain.Note
	snapshots snapshotTable
	done      bool

	notes *noteRepository
	users *userRepository
}

func (u *UnitOfWork) Notes() NoteRepository { return u.notes }

func (u *UnitOfWork) Users() UserRepository { return u.users }

// materialize returns the tracked instance for a scanned note, registering it
// and running the load hooks the first time the id is seen.
func (u *UnitOfWork) materialize(n *domain.Note) *domain.Note {
	if t, ok := u.identity[n.ID]; ok {
		return t.note
	}
	u.identity[n.ID] = &trackedNote{
		note:      n,
		title:     n.Title,
		text:      copyText(n.Text),
		createdBy: n.CreatedBy,
	}
	for _, h := range u.hooks {
		h.OnLoaded(u.snapshots, n)
	}
	return n
}

func copyText(s *string) *string {
	if s == nil {
		return nil
	}
	c := *s
	return &c
}

func (u *UnitOfWork) add(n *domain.Note) {
	for _, existing := range u.added {
		if existing == n {
			return
		}
	}
	u.added = append(u.added, n)
}

func (u *UnitOfWork) remove(n *domain.Note) {
	if n.ID == 0 {
		for i, existing := range u.added {
			if existing == n {
				u.added = append(u.added[:i], u.added[i+1:]...)
				return
			}
		}
		return
	}
	u.removed[n.ID] = n
}

// forgetOwner drops every tracked note of userID; their rows are gone.
func (u *UnitOfWork) forgetOwner(userID int64) {
	for id, t := range u.identity {
		if t.createdBy == userID {
			delete(u.identity, id)
			delete(u.removed, id)
		}
	}
	kept := u.added[:0]
	for _, n := range u.added {
		if n.CreatedBy != userID {
			kept = append(kept, n)
		}
	}
	u.added = kept
}

// dirty returns the notes to be written: new notes first, then loaded notes
// whose persisted fields differ from the values they were loaded with.
func (u *UnitOfWork) dirty() ([]*domain.Note, error) {
	var out []*domain.Note
	out = append(out, u.added...)

	var changed []*trackedNote
	for id, t := range u.identity {
		if _, gone := u.removed[id]; gone {
			continue
		}
		if t.note.CreatedBy != t.createdBy {
			return nil, fmt.Errorf("note %d: %w", id, ErrOwnerReassigned)
		}
		if t.changed() {
			changed = append(changed, t)
		}
	}
	sort.Slice(changed, func(i, j int) bool { return changed[i].note.ID < changed[j].note.ID })
	for _, t := range changed {
		out = append(out, t.note)
	}
	return out, nil
}

// Commit runs the before-commit hooks, writes every pending note change and
// commits the transaction. Any failure rolls everything back.
func (u *UnitOfWork) Commit() error {
	if u.done {
		return ErrUnitOfWorkDone
	}
	defer u.finish()

	if err := u.flush(); err != nil {
		if rbErr := u.tx.Rollback(); rbErr != nil {
			u.logger.Errorw("rollback failed", "error", rbErr)
		}
		return err
	}
	if err := u.tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// Rollback discards the unit of work. It is a no-op after Commit.
func (u *UnitOfWork) Rollback() {
	if u.done {
		return
	}
	defer u.finish()
	if err := u.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		u.logger.Errorw("rollback failed", "error", err)
	}
}

func (u *UnitOfWork) finish() {
	u.done = true
	u.snapshots = nil
}

func (u *UnitOfWork) flush() error {
	dirty, err := u.dirty()
	if err != nil {
		return err
	}

	if len(dirty) > 0 {
		for _, h := range u.hooks {
			if err := h.BeforeCommit(u.ctx, u.snapshots, dirty); err != nil {
				return fmt.Errorf("before commit hook: %w", err)
			}
		}
	}

	now := u.clock.Now()
	for _, n := range dirty {
		if n.ID == 0 {
			if err := u.notes.insert(n, now); err != nil {
				return err
			}
			continue
		}
		if err := u.notes.update(n); err != nil {
			return err
		}
	}

	ids := make([]int64, 0, len(u.removed))
	for id := range u.removed {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		if err := u.notes.deleteRow(id); err != nil {
			return err
		}
	}
	return nil
}
