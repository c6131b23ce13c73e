package fastdb

import "github.com/meigma/fastdb/core/internal/format"

// LookupName resolves a feature name recorded with FeatureBuilder.SetName.
// It reports false when the database has no name index or the name is unknown.
func (db *DB) LookupName(name string) (*Feature, bool) {
	db.namesOnce.Do(db.buildNames)
	ref, ok := db.names[name]
	if !ok {
		return nil, false
	}
	return db.TryGetFeature(ref)
}

func (db *DB) buildNames() {
	l, ok := db.LayerByName(NameLayer)
	if !ok {
		return
	}
	nameField, okName := l.FieldIndex("name")
	refField, okRef := l.FieldIndex("ref")
	if !okName || !okRef || l.fields[nameField].Type != format.FieldSTR || l.fields[refField].Type != format.FieldREF {
		db.log().Warn("ignoring malformed name layer", "layer", l.Index())
		return
	}
	names := make(map[string]FeatureRef, l.FeatureCount())
	for i := range l.FeatureCount() {
		s, err := l.str(i, nameField)
		if err != nil {
			db.log().Warn("ignoring malformed name layer", "layer", l.Index(), "error", err)
			return
		}
		if _, dup := names[s]; !dup {
			names[s] = readRef(l.row(i)[l.fields[refField].Offset:])
		}
	}
	db.names = names
}
