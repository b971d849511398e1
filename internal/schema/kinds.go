package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/go-openapi/inflect"
)

// Kind is the semantic content of a generated column.
type Kind string

const (
	KindName        Kind = "name"
	KindFirstName   Kind = "first_name"
	KindLastName    Kind = "last_name"
	KindEmail       Kind = "email"
	KindCompany     Kind = "company"
	KindCity        Kind = "city"
	KindState       Kind = "state"
	KindAddress     Kind = "address"
	KindPhone       Kind = "phone"
	KindWord        Kind = "word"
	KindSentence    Kind = "sentence"
	KindParagraph   Kind = "paragraph"
	KindCatchPhrase Kind = "catch_phrase"
	KindInteger     Kind = "integer"
	KindFloat       Kind = "float"
	KindPrice       Kind = "price"
	KindTimestamp   Kind = "timestamp"
	KindDate        Kind = "date"
)

// DefaultDaysBack bounds generated timestamps to the last two years.
const DefaultDaysBack = 2 * 365

var kindTypes = map[Kind]ValueType{
	KindName:        TypeString,
	KindFirstName:   TypeString,
	KindLastName:    TypeString,
	KindEmail:       TypeString,
	KindCompany:     TypeString,
	KindCity:        TypeString,
	KindState:       TypeString,
	KindAddress:     TypeString,
	KindPhone:       TypeString,
	KindWord:        TypeString,
	KindSentence:    TypeString,
	KindParagraph:   TypeString,
	KindCatchPhrase: TypeString,
	KindInteger:     TypeInteger,
	KindFloat:       TypeFloat,
	KindPrice:       TypeFloat,
	KindTimestamp:   TypeTimestamp,
	KindDate:        TypeTimestamp,
}

// Kinds returns every supported kind, sorted.
func Kinds() []Kind {
	out := make([]Kind, 0, len(kindTypes))
	for k := range kindTypes {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// ParseKind validates a kind name.
func ParseKind(s string) (Kind, error) {
	k := Kind(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := kindTypes[k]; !ok {
		return "", fmt.Errorf("unknown column kind %q", s)
	}
	return k, nil
}

// ValueType returns the physical type a kind is stored as.
func (k Kind) ValueType() ValueType {
	if t, ok := kindTypes[k]; ok {
		return t
	}
	return TypeString
}

// Bounds returns the numeric range for integer, float and price columns.
func (c ColumnSpec) Bounds() (float64, float64) {
	lo, hi := 1.0, 1000.0
	switch c.Kind {
	case KindPrice:
		lo, hi = 5, 150
	case KindFloat:
		lo, hi = 0, 1000
	case KindInteger:
		lo, hi = 1, 100
	}
	if c.Min != nil {
		lo = *c.Min
	}
	if c.Max != nil {
		hi = *c.Max
	}
	if hi < lo {
		lo, hi = hi, lo
	}
	return lo, hi
}

// Limits on column bounds. Integer draws need the span to fit in an int64
// and timestamp offsets need the window to fit in a time.Duration.
const (
	MaxBoundMagnitude = 1 << 62
	MaxBoundSpan      = 1 << 62
	MaxDaysBack       = 36500
)

// Window returns how many days back timestamp columns may reach, capped at
// MaxDaysBack.
func (c ColumnSpec) Window() int {
	switch {
	case c.DaysBack > MaxDaysBack:
		return MaxDaysBack
	case c.DaysBack > 0:
		return c.DaysBack
	}
	return DefaultDaysBack
}

// keywordKinds maps description keywords to the column they imply. The
// column name is taken from the keyword itself.
var keywordKinds = []struct {
	word string
	kind Kind
}{
	{"first name", KindFirstName},
	{"last name", KindLastName},
	{"name", KindName},
	{"email", KindEmail},
	{"company", KindCompany},
	{"city", KindCity},
	{"state", KindState},
	{"address", KindAddress},
	{"phone", KindPhone},
	{"category", KindWord},
	{"status", KindWord},
	{"title", KindSentence},
	{"description", KindParagraph},
	{"comment", KindParagraph},
	{"quantity", KindInteger},
	{"age", KindInteger},
	{"rating", KindInteger},
	{"price", KindPrice},
	{"amount", KindPrice},
	{"salary", KindPrice},
	{"score", KindFloat},
	{"date", KindDate},
	{"timestamp", KindTimestamp},
}

var wordSplit = regexp.MustCompile(`[^a-z0-9_ ]+`)

// InferColumns derives value columns from a free-text table description.
// Keywords are matched on word boundaries; the owning table's singular name
// prefixes generic words so "name" in a "stores" description becomes
// "store_name".
func InferColumns(table, description string) []ColumnSpec {
	text := " " + wordSplit.ReplaceAllString(strings.ToLower(description), " ") + " "
	text = strings.ReplaceAll(text, "_", " ")
	singular := strings.ToLower(inflect.Singularize(table))

	seen := make(map[string]bool)
	var cols []ColumnSpec
	for _, kw := range keywordKinds {
		if !strings.Contains(text, " "+kw.word+" ") && !strings.Contains(text, " "+inflect.Pluralize(kw.word)+" ") {
			continue
		}
		text = strings.ReplaceAll(text, " "+kw.word+" ", " ")
		name := strings.ReplaceAll(kw.word, " ", "_")
		switch kw.kind {
		case KindName, KindWord, KindSentence, KindParagraph:
			name = singular + "_" + name
		case KindDate:
			name = "event_date"
		case KindTimestamp:
			name = "created_at"
		}
		if seen[name] {
			continue
		}
		seen[name] = true
		cols = append(cols, ColumnSpec{Name: name, Kind: kw.kind})
	}
	if len(cols) == 0 {
		cols = []ColumnSpec{
			{Name: singular + "_name", Kind: KindName},
			{Name: "created_at", Kind: KindTimestamp},
		}
	}
	return cols
}
