package models

import "sort"

// ManifestEntry краткое состояние одной записи: версия и хеш содержимого.
// Хеш нужен для детерминированного tie-break при равных версиях.
type ManifestEntry struct {
	ContentHash string `json:"content_hash" msgpack:"h"`
	Version     uint64 `json:"version" msgpack:"v"`
}

// Manifest отображение id -> версия, без payload
type Manifest map[string]ManifestEntry

// IDs возвращает отсортированный список id манифеста
func (m Manifest) IDs() []string {
	ids := make([]string, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Clone создает копию манифеста
func (m Manifest) Clone() Manifest {
	c := make(Manifest, len(m))
	for id, e := range m {
		c[id] = e
	}
	return c
}
