package repository

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"notebook-server/internal/domain"
)

// NoteRepository reads and stages notes inside a unit of work. Staged changes
// are written when the unit of work commits.
type NoteRepository interface {
	Add(note *domain.Note)
	FindByID(id int64) (*domain.Note, error)
	// List pages through notes. An ownerID of 0 lists every owner.
	List(query domain.ListQuery, ownerID int64) (*domain.Page[*domain.Note], error)
	Delete(note *domain.Note)
}

type noteRepository struct {
	uow *UnitOfWork
}

const noteFields = "id, created_by, title, text, created_at, last_modified, version_num, versions"

func (r *noteRepository) Add(note *domain.Note) {
	r.uow.add(note)
}

func (r *noteRepository) Delete(note *domain.Note) {
	r.uow.remove(note)
}

func (r *noteRepository) FindByID(id int64) (*domain.Note, error) {
	if _, gone := r.uow.removed[id]; gone {
		return nil, domain.ErrNoteNotFound
	}
	if t, ok := r.uow.identity[id]; ok {
		return t.note, nil
	}

	row := r.uow.tx.QueryRowContext(r.uow.ctx, "SELECT "+noteFields+" FROM notes WHERE id = ?", id)
	note, err := scanNote(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNoteNotFound
		}
		return nil, fmt.Errorf("failed to find note: %w", err)
	}
	return r.uow.materialize(note), nil
}

func (r *noteRepository) List(query domain.ListQuery, ownerID int64) (*domain.Page[*domain.Note], error) {
	var scope []condition
	if ownerID != 0 {
		scope = append(scope, condition{clause: "created_by = ?", args: []any{ownerID}})
	}
	stmt, err := buildList(noteColumns, query, scope...)
	if err != nil {
		return nil, err
	}

	var total int
	if err := r.uow.tx.QueryRowContext(r.uow.ctx, "SELECT COUNT(*) FROM notes"+stmt.where, stmt.args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("failed to count notes: %w", err)
	}

	args := append(append([]any{}, stmt.args...), stmt.limit, stmt.offset)
	rows, err := r.uow.tx.QueryContext(r.uow.ctx,
		"SELECT "+noteFields+" FROM notes"+stmt.where+" ORDER BY "+stmt.orderBy+" LIMIT ? OFFSET ?", args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}
	defer rows.Close()

	var scanned []*domain.Note
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		scanned = append(scanned, note)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list notes: %w", err)
	}

	notes := make([]*domain.Note, 0, len(scanned))
	for _, n := range scanned {
		notes = append(notes, r.uow.materialize(n))
	}
	q := query
	q.Normalize()
	return domain.NewPage(notes, q.Page, q.PerPage, total), nil
}

func (r *noteRepository) insert(note *domain.Note, now time.Time) error {
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	if note.LastModified.IsZero() {
		note.LastModified = now
	}
	if note.VersionNum == 0 {
		note.VersionNum = 1
	}

	res, err := r.uow.tx.ExecContext(r.uow.ctx,
		`INSERT INTO notes (created_by, title, text, created_at, last_modified, version_num, versions)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		note.CreatedBy, note.Title, note.Text, note.CreatedAt, note.LastModified, note.VersionNum, note.Versions,
	)
	if err != nil {
		return fmt.Errorf("failed to create note: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read note id: %w", err)
	}
	note.ID = id
	return nil
}

func (r *noteRepository) update(note *domain.Note) error {
	_, err := r.uow.tx.ExecContext(r.uow.ctx,
		`UPDATE notes SET title = ?, text = ?, last_modified = ?, version_num = ?, versions = ? WHERE id = ?`,
		note.Title, note.Text, note.LastModified, note.VersionNum, note.Versions, note.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update note %d: %w", note.ID, err)
	}
	return nil
}

func (r *noteRepository) deleteRow(id int64) error {
	if _, err := r.uow.tx.ExecContext(r.uow.ctx, "DELETE FROM notes WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete note %d: %w", id, err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanNote(row rowScanner) (*domain.Note, error) {
	var (
		n            domain.Note
		text         sql.NullString
		versions     sql.NullString
		createdAt    sql.NullTime
		lastModified sql.NullTime
	)
	if err := row.Scan(&n.ID, &n.CreatedBy, &n.Title, &text, &createdAt, &lastModified, &n.VersionNum, &versions); err != nil {
		return nil, err
	}
	if text.Valid {
		n.Text = &text.String
	}
	if versions.Valid {
		n.Versions = &versions.String
	}
	n.CreatedAt = createdAt.Time.UTC()
	n.LastModified = lastModified.Time.UTC()
	return &n, nil
}
