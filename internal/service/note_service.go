package service

import (
	"context"
	"errors"

	"notebook-server/internal/cache"
	"notebook-server/internal/domain"
	"notebook-server/internal/repository"
	"notebook-server/internal/versioning"

	"go.uber.org/zap"
)

type NoteService struct {
	store  repository.Transactor
	cache  cache.NoteCache
	logger *zap.SugaredLogger
}

func NewNoteService(store repository.Transactor, noteCache cache.NoteCache, logger *zap.SugaredLogger) *NoteService {
	if noteCache == nil {
		noteCache = cache.NewNopNoteCache()
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &NoteService{
		store:  store,
		cache:  noteCache,
		logger: logger,
	}
}

// Create stores a new note owned by the caller.
func (s *NoteService) Create(ctx context.Context, actor domain.Principal, req *domain.CreateNoteRequest) (*domain.Note, error) {
	var note *domain.Note
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		creator, err := findCreator(tx, actor.UserID)
		if err != nil {
			return err
		}
		if err := domain.ValidateNote(creator, req.Title); err != nil {
			return err
		}
		note = domain.NewNote(creator.ID, req.Title, req.Text)
		tx.Notes().Add(note)
		return nil
	})
	if err != nil {
		return nil, unexpected("Unable to create the note", err)
	}

	s.logger.Infow("note created", "note_id", note.ID, "user", actor.Username)
	return note, nil
}

// Update replaces the title and text of a note. The previous state is
// archived into the note's version log on commit.
func (s *NoteService) Update(ctx context.Context, actor domain.Principal, req *domain.UpdateNoteRequest) (*domain.Note, error) {
	var note *domain.Note
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		var err error
		note, err = findAccessible(tx, actor, req.ID)
		if err != nil {
			return err
		}
		author, err := findCreator(tx, note.CreatedBy)
		if err != nil {
			return err
		}
		if err := domain.ValidateNote(author, req.Title); err != nil {
			return err
		}
		note.Title = req.Title
		note.Text = req.Text
		return nil
	})
	if err != nil {
		return nil, unexpected("Unable to update the note", err)
	}

	s.cache.Invalidate(ctx, note.ID)
	return note, nil
}

func (s *NoteService) Get(ctx context.Context, actor domain.Principal, id int64) (*domain.NoteResponse, error) {
	if cached, ok := s.cache.Get(ctx, id); ok {
		if !actor.CanAccess(cached.CreatedBy) {
			return nil, domain.ErrForbidden
		}
		return cached, nil
	}

	var resp *domain.NoteResponse
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		note, err := findAccessible(tx, actor, id)
		if err != nil {
			return err
		}
		resp = s.toResponse(note)
		return nil
	})
	if err != nil {
		return nil, unexpected("Unable to get the note", err)
	}

	s.cache.Set(ctx, resp)
	return resp, nil
}

// Versions returns the archived versions of a note, oldest first.
func (s *NoteService) Versions(ctx context.Context, actor domain.Principal, id int64) ([]*domain.NoteVersion, error) {
	var history []*domain.NoteVersion
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		note, err := findAccessible(tx, actor, id)
		if err != nil {
			return err
		}
		history = s.versionLog(note).History()
		return nil
	})
	if err != nil {
		return nil, unexpected("Unable to get the note versions", err)
	}
	return history, nil
}

func (s *NoteService) Delete(ctx context.Context, actor domain.Principal, id int64) error {
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		note, err := findAccessible(tx, actor, id)
		if err != nil {
			return err
		}
		tx.Notes().Delete(note)
		return nil
	})
	if err != nil {
		return unexpected("Unable to delete the note", err)
	}

	s.cache.Invalidate(ctx, id)
	s.logger.Infow("note deleted", "note_id", id, "user", actor.Username)
	return nil
}

// List pages through the caller's notes. Admins see every note.
func (s *NoteService) List(ctx context.Context, actor domain.Principal, query domain.ListQuery) (*domain.Page[*domain.NoteResponse], error) {
	ownerID := actor.UserID
	if actor.IsAdmin {
		ownerID = 0
	}

	var page *domain.Page[*domain.NoteResponse]
	err := s.store.Do(ctx, func(tx repository.Tx) error {
		notes, err := tx.Notes().List(query, ownerID)
		if err != nil {
			return err
		}
		page = domain.MapPage(notes, s.toResponse)
		return nil
	})
	if err != nil {
		return nil, unexpected("Unable to list the notes", err)
	}
	return page, nil
}

func (s *NoteService) versionLog(note *domain.Note) versioning.Log {
	return versioning.DecodeLenient(note.VersionsValue(), s.logger.With("note_id", note.ID))
}

func (s *NoteService) toResponse(note *domain.Note) *domain.NoteResponse {
	return &domain.NoteResponse{
		ID:             note.ID,
		CreatedBy:      note.CreatedBy,
		Title:          note.Title,
		Text:           note.Text,
		TsCreatedAt:    domain.Timestamp(note.CreatedAt),
		TsLastModified: domain.Timestamp(note.LastModified),
		VersionNum:     note.VersionNum,
		Versions:       s.versionLog(note).Versions(),
	}
}

// findCreator loads the owner of a note. A missing user is an invalid owner.
func findCreator(tx repository.Tx, userID int64) (*domain.User, error) {
	if userID == 0 {
		return nil, domain.ErrInvalidOwner
	}
	user, err := tx.Users().FindByID(userID)
	if err != nil {
		if errors.Is(err, domain.ErrUserNotFound) {
			return nil, domain.ErrInvalidOwner
		}
		return nil, err
	}
	return user, nil
}

func findAccessible(tx repository.Tx, actor domain.Principal, id int64) (*domain.Note, error) {
	note, err := tx.Notes().FindByID(id)
	if err != nil {
		return nil, err
	}
	if !actor.CanAccess(note.CreatedBy) {
		return nil, domain.ErrForbidden
	}
	return note, nil
}
