package migration

import "encoding/json"

// IDMap maps a source primary key to the id the destination assigned
type IDMap map[int64]interface{}

// Lookup returns the destination id for a source id
func (m IDMap) Lookup(oldID int64) (interface{}, bool) {
	newID, ok := m[oldID]
	return newID, ok
}

// Add records oldID → newID. Entries are never overwritten; false is
// returned when oldID is already present.
func (m IDMap) Add(oldID int64, newID interface{}) bool {
	if _, exists := m[oldID]; exists {
		return false
	}
	m[oldID] = newID
	return true
}

// Registry holds one IDMap per entity that later steps reference. It is
// owned by the engine and handed explicitly to every migrator.
type Registry struct {
	Schools    IDMap
	Classrooms IDMap
	Students   IDMap
	Staff      IDMap
	Guards     IDMap
	Users      IDMap
}

func NewRegistry() *Registry {
	return &Registry{
		Schools:    IDMap{},
		Classrooms: IDMap{},
		Students:   IDMap{},
		Staff:      IDMap{},
		Guards:     IDMap{},
		Users:      IDMap{},
	}
}

// Tables returns the maps keyed by the names used in the mappings export
func (r *Registry) Tables() map[string]IDMap {
	return map[string]IDMap{
		"schools":    r.Schools,
		"classrooms": r.Classrooms,
		"students":   r.Students,
		"staff":      r.Staff,
		"guards":     r.Guards,
		"users":      r.Users,
	}
}

func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.Tables())
}
