package visualcache

// StructureKind tags the shape of an extracted answer structure so
// consumers can switch on it instead of probing map keys.
type StructureKind string

const (
	KindThemes        StructureKind = "themes"
	KindTimeline      StructureKind = "timeline"
	KindEntities      StructureKind = "entities"
	KindRelationships StructureKind = "relationships"
	// KindUnstructured carries raw key/value pairs for shapes the
	// classifier couldn't map to a known variant.
	KindUnstructured StructureKind = "unstructured"
)

// Theme is one grouped topic extracted from an answer.
type Theme struct {
	Name  string   `json:"name"`
	Items []string `json:"items,omitempty"`
}

// TimelineEvent is one dated entry on an extracted timeline.
type TimelineEvent struct {
	Label string `json:"label"`
	Date  string `json:"date,omitempty"`
}

// Entity is a named thing extracted from an answer.
type Entity struct {
	Name string `json:"name"`
	Kind string `json:"kind,omitempty"`
}

// Relationship links two entities.
type Relationship struct {
	From  string `json:"from"`
	To    string `json:"to"`
	Label string `json:"label,omitempty"`
}

// Structure is the extracted shape of an answer, tagged by Kind. Only the
// fields matching the kind are populated; Raw holds the unstructured
// fallback.
type Structure struct {
	Kind          StructureKind     `json:"kind"`
	Themes        []Theme           `json:"themes,omitempty"`
	Events        []TimelineEvent   `json:"events,omitempty"`
	Entities      []Entity          `json:"entities,omitempty"`
	Relationships []Relationship    `json:"relationships,omitempty"`
	Raw           map[string]string `json:"raw,omitempty"`
}

// ThemeCount reports how many themes the structure identified. Visual
// generation needs at least two to produce a meaningful diagram.
func (s Structure) ThemeCount() int {
	return len(s.Themes)
}
