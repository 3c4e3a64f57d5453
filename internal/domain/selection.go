package domain

import (
	"encoding/json"
	"sort"
)

// Selection is a set of answer ids. Order is irrelevant and duplicates collapse.
type Selection map[string]struct{}

// NewSelection builds a set from ids.
func NewSelection(ids ...string) Selection {
	s := make(Selection, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Selection) Has(id string) bool {
	_, ok := s[id]
	return ok
}

func (s Selection) Len() int { return len(s) }

// Equal reports set equality.
func (s Selection) Equal(other Selection) bool {
	if len(s) != len(other) {
		return false
	}
	for id := range s {
		if _, ok := other[id]; !ok {
			return false
		}
	}
	return true
}

func (s Selection) Clone() Selection {
	out := make(Selection, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// IDs returns the members sorted lexically.
func (s Selection) IDs() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// OrderedBy returns the members in the order their answers appear in the question.
func (s Selection) OrderedBy(q Question) []string {
	ids := make([]string, 0, len(s))
	for _, a := range q.Answers {
		if s.Has(a.ID) {
			ids = append(ids, a.ID)
		}
	}
	return ids
}

func (s Selection) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.IDs())
}

func (s *Selection) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*s = NewSelection(ids...)
	return nil
}
