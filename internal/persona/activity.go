package persona

import (
	"math/rand"
	"sort"
	"strings"
	"time"
)

// The activity axis fakes a life running in the background: what the
// character is doing right now, how interruptible he is, and the mood
// it leaves him in. All selection is weighted and driven by the
// caller's random source.

type weightedPool struct {
	entries []string
	weight  int
}

var activityTypes = map[string]weightedPool{
	"restaurant_floor": {
		entries: []string{
			"on the floor",
			"busy night at the restaurant",
			"slow night, more time to think",
			"just seated a first date, hope it goes well",
			"working the bar",
		},
		weight: 25,
	},
	"restaurant_ops": {
		entries: []string{
			"at the restaurant early",
			"getting things ready for tonight",
			"dealing with vendor stuff",
			"short-staffed again",
			"closing up",
		},
		weight: 15,
	},
	"kids": {
		entries: []string{
			"morning with the kids",
			"just dropped Nora at school",
			"Liam's being Liam",
			"kid chaos",
			"Nora's asking a million questions",
		},
		weight: 20,
	},
	"jess": {
		entries: []string{
			"date night with Jess",
			"Jess just got home",
			"talking through schedule stuff with Jess",
			"quiet moment with Jess",
		},
		weight: 10,
	},
	"self": {
		entries: []string{
			"post-gym",
			"just ran",
			"coffee before the shift",
			"decompressing after close",
		},
		weight: 10,
	},
	"friends": {
		entries: []string{
			"Chris called about his marriage again",
			"talked to Mike about the restaurant",
			"catching up with Danny",
		},
		weight: 5,
	},
	"family_heavy": {
		entries: []string{
			"dad reached out again",
			"talked to my mom",
			"thinking about dad stuff",
		},
		weight: 5,
	},
	"life": {
		entries: []string{
			"running errands",
			"quiet afternoon",
			"transitioning to work mode",
			"late night, house is quiet",
		},
		weight: 10,
	},
}

type urgencyLevel struct {
	prefixes []string
	suffixes []string
	weight   int
}

var urgencyLevels = []urgencyLevel{
	{
		prefixes: []string{"in the middle of", "deep in", "slammed with"},
		suffixes: []string{" - what's up quick", ", can it wait?", ""},
		weight:   15,
	},
	{
		prefixes: []string{"just finished", "break from", "got a sec before"},
		suffixes: []string{". what's up", "", ". hey"},
		weight:   35,
	},
	{
		prefixes: []string{"done with", "post-", "just wrapped"},
		suffixes: []string{". what's going on", ". hey", ""},
		weight:   30,
	},
	{
		prefixes: []string{"supposed to be dealing with", "avoiding", "should be"},
		suffixes: []string{". save me", ". what's up", ". perfect timing"},
		weight:   20,
	},
}

var activityMoods = []weightedPool{
	{entries: []string{"good energy tonight", "needed that", "good one"}, weight: 20},
	{entries: []string{"", "", ""}, weight: 40},
	{entries: []string{"long one", "running on fumes", "could use a break"}, weight: 20},
	{entries: []string{"lot on my mind", "heavy stuff", "processing"}, weight: 10},
	{entries: []string{"feeling good", "solid day", "can't complain"}, weight: 10},
}

var timeWeights = map[string]map[string]int{
	"earlyMorning": {"kids": 40, "self": 30, "life": 20, "jess": 10},
	"midMorning":   {"kids": 30, "life": 25, "self": 25, "restaurant_ops": 20},
	"midday":       {"life": 30, "restaurant_ops": 30, "self": 20, "friends": 20},
	"afternoon":    {"restaurant_ops": 40, "life": 25, "self": 20, "friends": 15},
	"evening":      {"restaurant_floor": 50, "restaurant_ops": 25, "jess": 15, "life": 10},
	"lateNight":    {"restaurant_floor": 30, "life": 30, "self": 20, "jess": 20},
	"weekend":      {"kids": 30, "jess": 25, "restaurant_floor": 20, "friends": 15, "life": 10},
	"sunday":       {"kids": 40, "jess": 30, "life": 20, "friends": 10},
}

// timeKey buckets the local clock into the character's day rhythm.
func timeKey(now time.Time) string {
	switch now.Weekday() {
	case time.Sunday:
		return "sunday"
	case time.Saturday:
		return "weekend"
	}
	hour := now.Hour()
	switch {
	case hour >= 6 && hour < 10:
		return "earlyMorning"
	case hour >= 10 && hour < 12:
		return "midMorning"
	case hour >= 12 && hour < 15:
		return "midday"
	case hour >= 15 && hour < 18:
		return "afternoon"
	case hour >= 18 && hour < 23:
		return "evening"
	default:
		return "lateNight"
	}
}

func pickWeighted(rng *rand.Rand, weights map[string]int) string {
	total := 0
	// Stable iteration so the same seed picks the same entry.
	keys := make([]string, 0, len(weights))
	for k := range weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		total += weights[k]
	}
	n := rng.Intn(total)
	for _, k := range keys {
		n -= weights[k]
		if n < 0 {
			return k
		}
	}
	return keys[len(keys)-1]
}

func pickUrgency(rng *rand.Rand) urgencyLevel {
	total := 0
	for _, u := range urgencyLevels {
		total += u.weight
	}
	n := rng.Intn(total)
	for _, u := range urgencyLevels {
		n -= u.weight
		if n < 0 {
			return u
		}
	}
	return urgencyLevels[len(urgencyLevels)-1]
}

func pickMood(rng *rand.Rand) weightedPool {
	total := 0
	for _, m := range activityMoods {
		total += m.weight
	}
	n := rng.Intn(total)
	for _, m := range activityMoods {
		n -= m.weight
		if n < 0 {
			return m
		}
	}
	return activityMoods[len(activityMoods)-1]
}

// generateActivity renders the bracketed "right now" fragment for the
// given time bucket.
func generateActivity(rng *rand.Rand, key string) string {
	weights, ok := timeWeights[key]
	if !ok {
		weights = timeWeights["midday"]
	}
	activityType := pickWeighted(rng, weights)
	pool, ok := activityTypes[activityType]
	if !ok {
		pool = activityTypes["life"]
	}
	activity := pool.entries[rng.Intn(len(pool.entries))]

	urgency := pickUrgency(rng)
	prefix := urgency.prefixes[rng.Intn(len(urgency.prefixes))]
	suffix := urgency.suffixes[rng.Intn(len(urgency.suffixes))]

	mood := pickMood(rng)
	addition := mood.entries[rng.Intn(len(mood.entries))]

	result := strings.TrimSpace(prefix + " " + activity)
	if addition != "" {
		result += ". " + addition
	}
	result += suffix
	return "[" + result + "]"
}
