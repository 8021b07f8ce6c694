package runners

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/polisai/polis-dag/pkg/engine/runtime"
)

// NLPExtractRunner pulls capitalised names and a coarse relationship type out
// of free text. It is heuristic: names are runs of capitalised words, split on
// "and", commas, "&", "named" and "called".
type NLPExtractRunner struct{}

// Person is an extracted name.
type Person struct {
	Name string `json:"name"`
}

// Relationship links the first extracted person to another one.
type Relationship struct {
	From string `json:"from"`
	To   string `json:"to"`
	Type string `json:"type"`
}

// Extraction is the runner output.
type Extraction struct {
	Persons       []Person       `json:"persons"`
	Relationships []Relationship `json:"relationships"`
	RawText       string         `json:"rawText"`
}

var (
	nameSeparators = regexp.MustCompile(`(?i)( and |, | & | named | called )`)
	punctuation    = strings.NewReplacer(".", "", ",", "", "!", "", "?", "")
)

var skipWords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`had has have a an the is was are were son sons daughter daughters
		child children father mother parent parents brother sister sibling husband wife partner
		spouse named called who which that this these those and or remove delete add create
		everyone family in all each every some any no not`) {
		skipWords[w] = true
	}
}

// relationKeywords is checked in order; the first group with a match wins.
var relationKeywords = []struct {
	kind  string
	words []string
}{
	{"child", []string{"son", "child"}},
	{"parent", []string{"father", "dad", "parent"}},
	{"sibling", []string{"brother", "sister", "sibling"}},
	{"partner", []string{"husband", "wife", "partner", "spouse"}},
}

func (NLPExtractRunner) Execute(_ context.Context, input any, _ runtime.Config, _ runtime.RunContext) (any, error) {
	text, ok := input.(string)
	if !ok {
		raw, err := json.Marshal(input)
		if err != nil {
			return nil, err
		}
		text = string(raw)
	}
	return Extract(text), nil
}

// Extract runs the heuristic over text.
func Extract(text string) Extraction {
	names := newOrderedSet()

	words := strings.Fields(nameSeparators.ReplaceAllString(text, " | "))
	var current []string
	flush := func() {
		name := strings.Join(current, " ")
		if len(name) > 1 && !skipWords[strings.ToLower(name)] {
			names.add(capitalizeName(name))
		}
		current = current[:0]
	}
	for _, word := range words {
		if word == "|" {
			flush()
			continue
		}
		clean := punctuation.Replace(word)
		switch {
		case startsUpper(word):
			if utf8.RuneCountInString(clean) > 1 && !skipWords[strings.ToLower(clean)] {
				current = append(current, clean)
			}
		case len(current) > 0 && !skipWords[strings.ToLower(clean)]:
			current = append(current, clean)
		}
	}
	flush()

	// Standalone capitalised words are added as well, so "Ada met Bob" yields
	// both the run and each name.
	for _, word := range words {
		clean := punctuation.Replace(word)
		if utf8.RuneCountInString(clean) > 2 && startsUpper(clean) && !skipWords[strings.ToLower(clean)] {
			names.add(capitalizeName(clean))
		}
	}

	out := Extraction{
		Persons:       make([]Person, 0, len(names.items)),
		Relationships: []Relationship{},
		RawText:       text,
	}
	for _, name := range names.items {
		out.Persons = append(out.Persons, Person{Name: name})
	}

	relType := relationType(strings.ToLower(text))
	if relType != "" && len(names.items) >= 2 {
		for _, name := range names.items[1:] {
			out.Relationships = append(out.Relationships, Relationship{From: names.items[0], To: name, Type: relType})
		}
	}
	return out
}

func relationType(lower string) string {
	for _, group := range relationKeywords {
		for _, w := range group.words {
			if strings.Contains(lower, w) {
				return group.kind
			}
		}
	}
	return ""
}

func startsUpper(word string) bool {
	r, _ := utf8.DecodeRuneInString(word)
	return unicode.IsUpper(r)
}

func capitalizeName(name string) string {
	parts := strings.Split(name, " ")
	for i, part := range parts {
		r, size := utf8.DecodeRuneInString(part)
		if r == utf8.RuneError {
			continue
		}
		parts[i] = string(unicode.ToUpper(r)) + strings.ToLower(part[size:])
	}
	return strings.Join(parts, " ")
}

type orderedSet struct {
	seen  map[string]bool
	items []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: map[string]bool{}}
}

func (s *orderedSet) add(v string) {
	if !s.seen[v] {
		s.seen[v] = true
		s.items = append(s.items, v)
	}
}
