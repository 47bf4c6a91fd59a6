package versioning

import "notebook-server/internal/domain"

// History renders the log as archived versions in ascending order.
func (l Log) History() []*domain.NoteVersion {
	versions := l.Versions()
	out := make([]*domain.NoteVersion, 0, len(versions))
	for _, v := range versions {
		entry, _ := l.Get(v)
		nv := &domain.NoteVersion{
			Version:    v,
			Title:      entry.String(FieldTitle),
			ModifiedBy: entry.String(FieldModifiedBy),
		}
		if text, ok := entry[FieldText].(string); ok {
			nv.Text = &text
		}
		if ts, ok := entry.Float(FieldLastModified); ok {
			nv.LastModified = &ts
		}
		if ts, ok := entry.Float(FieldVersionAt); ok {
			nv.VersionAt = &ts
		}
		out = append(out, nv)
	}
	return out
}
