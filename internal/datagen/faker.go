package datagen

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"time"

	"github.com/JonMunkholm/synthdata/internal/schema"
)

// ── Word pools ──

var firstNames = []string{
	"James", "Mary", "Robert", "Patricia", "John", "Jennifer", "Michael", "Linda",
	"David", "Elizabeth", "William", "Barbara", "Richard", "Susan", "Joseph", "Jessica",
	"Thomas", "Sarah", "Charles", "Karen", "Christopher", "Lisa", "Daniel", "Nancy",
	"Matthew", "Betty", "Anthony", "Margaret", "Mark", "Sandra", "Donald", "Ashley",
	"Steven", "Dorothy", "Paul", "Kimberly", "Andrew", "Emily", "Joshua", "Donna",
	"Kevin", "Carol", "Brian", "Amanda", "George", "Melissa", "Olivia", "Sophia",
}

var lastNames = []string{
	"Smith", "Johnson", "Williams", "Brown", "Jones", "Garcia", "Miller", "Davis",
	"Rodriguez", "Martinez", "Hernandez", "Lopez", "Gonzalez", "Wilson", "Anderson",
	"Thomas", "Taylor", "Moore", "Jackson", "Martin", "Lee", "Perez", "Thompson",
	"White", "Harris", "Sanchez", "Clark", "Ramirez", "Lewis", "Robinson", "Walker",
	"Young", "Allen", "King", "Wright", "Scott", "Torres", "Nguyen", "Hill", "Patel",
}

var loremWords = []string{
	"lorem", "ipsum", "dolor", "sit", "amet", "consectetur", "adipiscing", "elit",
	"sed", "do", "eiusmod", "tempor", "incididunt", "ut", "labore", "et", "dolore",
	"magna", "aliqua", "product", "service", "platform", "digital", "cloud", "data",
	"system", "network", "security", "performance", "solution", "integration",
	"analytics", "automation", "management", "enterprise", "scalable", "reliable",
	"efficient", "innovative", "modern", "premium", "global", "customer", "market",
}

var emailDomains = []string{
	"gmail.com", "yahoo.com", "hotmail.com", "outlook.com", "protonmail.com",
	"icloud.com", "example.com", "company.org", "corp.net", "business.io",
}

var companySuffixes = []string{"Inc", "LLC", "Group", "Ltd", "Partners", "Holdings", "Co"}

var catchAdjectives = []string{
	"Seamless", "Robust", "Proactive", "Scalable", "User-centric", "Integrated",
	"Cross-platform", "Optimized", "Streamlined", "Adaptive",
}

var catchNouns = []string{
	"paradigm", "framework", "workflow", "synergy", "interface", "architecture",
	"initiative", "capability", "toolset", "pipeline",
}

var cities = []string{
	"Springfield", "Riverside", "Franklin", "Greenville", "Bristol", "Clinton",
	"Fairview", "Salem", "Madison", "Georgetown", "Arlington", "Ashland",
	"Oxford", "Jackson", "Burlington", "Manchester", "Milton", "Newport",
}

var states = []string{
	"AL", "AK", "AZ", "CA", "CO", "CT", "FL", "GA", "IL", "IN", "MA", "MI",
	"MN", "NC", "NJ", "NY", "OH", "OR", "PA", "TX", "VA", "WA", "WI",
}

var streetNames = []string{
	"Main", "Oak", "Pine", "Maple", "Cedar", "Elm", "Washington", "Lake",
	"Hill", "Park", "Church", "Sunset", "Highland", "River", "Meadow",
}

var streetTypes = []string{"St", "Ave", "Blvd", "Rd", "Ln", "Dr", "Ct", "Way"}

// Faker produces random column content from a seeded source. It is not safe
// for concurrent use; the engine owns one per run.
type Faker struct {
	rng *rand.Rand
	now time.Time
}

// NewFaker returns a faker drawing from rng. Timestamps are generated
// relative to now.
func NewFaker(rng *rand.Rand, now time.Time) *Faker {
	return &Faker{rng: rng, now: now}
}

func (f *Faker) from(pool []string) string {
	return pool[f.rng.Intn(len(pool))]
}

func (f *Faker) sentence(words int) string {
	parts := make([]string, words)
	for i := range parts {
		parts[i] = f.from(loremWords)
	}
	s := strings.Join(parts, " ")
	return strings.ToUpper(s[:1]) + s[1:] + "."
}

// Value returns one value for col. seq is the 1-based row number and is only
// used to keep emails readable and unique-ish.
func (f *Faker) Value(col schema.ColumnSpec, seq int) any {
	switch col.Kind {
	case schema.KindName:
		return f.from(firstNames) + " " + f.from(lastNames)
	case schema.KindFirstName:
		return f.from(firstNames)
	case schema.KindLastName:
		return f.from(lastNames)
	case schema.KindEmail:
		return fmt.Sprintf("%s.%s_%d@%s",
			strings.ToLower(f.from(firstNames)),
			strings.ToLower(f.from(lastNames)),
			seq,
			f.from(emailDomains),
		)
	case schema.KindCompany:
		return f.from(lastNames) + " " + f.from(companySuffixes)
	case schema.KindCity:
		return f.from(cities)
	case schema.KindState:
		return f.from(states)
	case schema.KindAddress:
		return fmt.Sprintf("%d %s %s", 1+f.rng.Intn(9999), f.from(streetNames), f.from(streetTypes))
	case schema.KindPhone:
		return fmt.Sprintf("(%03d) %03d-%04d", 200+f.rng.Intn(800), 200+f.rng.Intn(800), f.rng.Intn(10000))
	case schema.KindWord:
		return f.from(loremWords)
	case schema.KindSentence:
		return f.sentence(4 + f.rng.Intn(6))
	case schema.KindParagraph:
		n := 2 + f.rng.Intn(3)
		parts := make([]string, n)
		for i := range parts {
			parts[i] = f.sentence(5 + f.rng.Intn(8))
		}
		return strings.Join(parts, " ")
	case schema.KindCatchPhrase:
		return f.from(catchAdjectives) + " " + f.from(catchNouns)
	case schema.KindInteger:
		a, b := intRange(col.Bounds())
		if b < a {
			return a
		}
		return a + f.rng.Int63n(b-a+1)
	case schema.KindFloat:
		lo, hi := col.Bounds()
		return lo + f.rng.Float64()*(hi-lo)
	case schema.KindPrice:
		lo, hi := col.Bounds()
		return math.Round((lo+f.rng.Float64()*(hi-lo))*100) / 100
	case schema.KindTimestamp:
		offset := time.Duration(f.rng.Int63n(int64(col.Window()) * int64(24*time.Hour)))
		return f.now.Add(-offset).Truncate(time.Second)
	case schema.KindDate:
		t := f.now.AddDate(0, 0, -f.rng.Intn(col.Window()+1))
		return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	default:
		return f.from(loremWords)
	}
}

// intRange converts float bounds to integers whose span fits Int63n.
func intRange(lo, hi float64) (int64, int64) {
	const limit = schema.MaxBoundMagnitude
	clamp := func(v float64) float64 {
		if math.IsNaN(v) {
			return 0
		}
		return math.Max(-limit, math.Min(limit, v))
	}
	lo, hi = math.Ceil(clamp(lo)), math.Floor(clamp(hi))
	if hi-lo > schema.MaxBoundSpan {
		hi = lo + schema.MaxBoundSpan
	}
	return int64(lo), int64(hi)
}
