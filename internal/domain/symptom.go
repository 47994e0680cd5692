package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Symptom identifies a loggable condition from the fixed catalog.
type Symptom string

const (
	SymptomCramps     Symptom = "cramps"
	SymptomHeadache   Symptom = "headache"
	SymptomMoodSwings Symptom = "mood-swings"
	SymptomFatigue    Symptom = "fatigue"
	SymptomBloating   Symptom = "bloating"
)

// SymptomInfo describes a catalog entry.
type SymptomInfo struct {
	ID   Symptom `json:"id"`
	Name string  `json:"name"`
}

// catalog order is also the order symptoms are listed in.
var catalog = []SymptomInfo{
	{SymptomCramps, "Cramps"},
	{SymptomHeadache, "Headache"},
	{SymptomMoodSwings, "Mood Swings"},
	{SymptomFatigue, "Fatigue"},
	{SymptomBloating, "Bloating"},
}

// SymptomCatalog returns a copy of the symptom catalog.
func SymptomCatalog() []SymptomInfo {
	out := make([]SymptomInfo, len(catalog))
	copy(out, catalog)
	return out
}

func (s Symptom) index() int {
	for i, c := range catalog {
		if c.ID == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s belongs to the catalog.
func (s Symptom) Valid() bool { return s.index() >= 0 }

// ParseSymptom resolves a catalog id, a display name ("Mood Swings") or a
// legacy 1-based numeric id. Lookup is case-insensitive.
func ParseSymptom(raw string) (Symptom, bool) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if n, err := strconv.Atoi(v); err == nil {
		if n >= 1 && n <= len(catalog) {
			return catalog[n-1].ID, true
		}
		return "", false
	}
	for _, c := range catalog {
		if v == string(c.ID) || v == strings.ToLower(c.Name) {
			return c.ID, true
		}
	}
	return "", false
}

// SymptomSet is a set of catalog symptoms. The zero value is empty.
type SymptomSet uint8

// NewSymptomSet builds a set from symptoms, ignoring ids outside the catalog.
func NewSymptomSet(symptoms ...Symptom) SymptomSet {
	var set SymptomSet
	for _, s := range symptoms {
		if i := s.index(); i >= 0 {
			set |= 1 << i
		}
	}
	return set
}

func (set SymptomSet) Has(s Symptom) bool {
	i := s.index()
	return i >= 0 && set&(1<<i) != 0
}

// Toggle flips membership of s. Symptoms outside the catalog leave the set
// unchanged.
func (set SymptomSet) Toggle(s Symptom) SymptomSet {
	i := s.index()
	if i < 0 {
		return set
	}
	return set ^ (1 << i)
}

func (set SymptomSet) Empty() bool { return set == 0 }

func (set SymptomSet) Len() int {
	n := 0
	for i := range catalog {
		if set&(1<<i) != 0 {
			n++
		}
	}
	return n
}

// List returns the members in catalog order.
func (set SymptomSet) List() []Symptom {
	out := make([]Symptom, 0, len(catalog))
	for i, c := range catalog {
		if set&(1<<i) != 0 {
			out = append(out, c.ID)
		}
	}
	return out
}

// Strings returns the member ids in catalog order.
func (set SymptomSet) Strings() []string {
	list := set.List()
	out := make([]string, len(list))
	for i, s := range list {
		out[i] = string(s)
	}
	return out
}

func (set SymptomSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(set.List())
}

func (set *SymptomSet) UnmarshalJSON(b []byte) error {
	var ids []Symptom
	if err := json.Unmarshal(b, &ids); err != nil {
		return err
	}
	*set = NewSymptomSet(ids...)
	return nil
}
