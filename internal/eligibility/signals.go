package eligibility

import (
	"regexp"
)

// Hand-tuned signal lists. Unlisted places are misclassified on purpose:
// the location gate is default-deny, so anything it cannot place is rejected.

// juniorSignals mark titles below the searched seniority.
var juniorSignals = []string{"junior", "associate", "entry level", "intern"}

// foreignSignals are countries, regions and cities outside the US.
var foreignSignals = []string{
	"india", "canada", "brazil", "mexico", "chile", "argentina", "colombia",
	"united kingdom", "uk", "ireland", "france", "germany", "spain", "italy",
	"netherlands", "sweden", "norway", "denmark", "finland", "poland", "portugal",
	"czech", "austria", "switzerland", "belgium", "romania", "hungary", "croatia",
	"israel", "dubai", "uae", "united arab emirates", "saudi", "qatar",
	"south africa", "nigeria", "kenya", "egypt",
	"japan", "korea", "china", "singapore", "indonesia", "australia",
	"new zealand", "philippines", "vietnam", "thailand", "malaysia", "taiwan",
	"emea", "apac", "latam", "latin america",
	"london", "paris", "berlin", "dublin", "amsterdam", "madrid", "barcelona",
	"munich", "tokyo", "sydney", "melbourne", "toronto", "vancouver", "montreal",
	"bangalore", "hyderabad", "mumbai", "delhi", "pune",
	"sao paulo", "tel aviv", "jakarta", "seoul",
}

// metroSignals identify the preferred metro (Greater Boston), where hybrid and on-site roles are fine.
var metroSignals = []string{
	"boston", "cambridge, ma", "somerville, ma", "brookline",
	"waltham", "newton, ma", "quincy, ma",
}

// pinnedStates pin a remote role to a US state outside the preferred metro.
var pinnedStates = []string{
	"alabama", "alaska", "arizona", "arkansas", "california", "colorado",
	"connecticut", "delaware", "florida", "georgia", "hawaii", "idaho",
	"illinois", "indiana", "iowa", "kansas", "kentucky", "louisiana",
	"maine", "maryland", "michigan", "minnesota", "mississippi", "missouri",
	"montana", "nebraska", "nevada", "new hampshire", "new jersey", "new mexico",
	"new york", "north carolina", "north dakota", "ohio", "oklahoma", "oregon",
	"pennsylvania", "rhode island", "south carolina", "south dakota",
	"tennessee", "texas", "utah", "vermont", "virginia", "washington",
	"west virginia", "wisconsin", "wyoming",
	"district of columbia",
}

// pinnedCities pin a remote role to a US city outside the preferred metro.
var pinnedCities = []string{
	"new york", "chicago", "denver", "austin", "seattle",
	"san francisco", "los angeles", "atlanta", "dallas", "houston",
	"miami", "philadelphia", "phoenix", "portland", "raleigh",
	"charlotte", "minneapolis", "detroit", "columbus", "indianapolis",
	"nashville", "salt lake", "tampa", "pittsburgh", "st. louis",
	"kansas city", "san diego", "san jose", "san antonio",
	"centennial", "mountain view", "palo alto", "sunnyvale",
}

// pinnedStateCodes are matched case-sensitively as whole words. MA is absent on purpose.
var pinnedStateCodes = []string{
	"AL", "AK", "AZ", "AR", "CA", "CO", "CT", "DE", "FL", "GA", "HI", "ID",
	"IL", "IN", "IA", "KS", "KY", "LA", "ME", "MD", "MI", "MN", "MS",
	"MO", "MT", "NE", "NV", "NH", "NJ", "NM", "NY", "NC", "ND", "OH", "OK",
	"OR", "PA", "RI", "SC", "SD", "TN", "TX", "UT", "VT", "VA", "WA", "WV",
	"WI", "WY", "DC",
}

// unqualifiedRemote are whole location strings that mean "remote, anywhere in the US".
var unqualifiedRemote = map[string]struct{}{
	"":                 {},
	"remote":           {},
	"remote - us east": {},
	"remote - us west": {},
	"us":               {},
	"u.s.":             {},
	"u.s.a.":           {},
}

// nationwidePhrases are checked only after pinning, since "Texas, USA" contains "usa".
var nationwidePhrases = []string{
	"united states",
	"united states - remote",
	"united states of america",
	"usa",
	"us remote",
	"remote - us",
	"remote us",
	"remote, us",
	"nationwide",
	"anywhere in the us",
	"anywhere in the world",
	"worldwide",
}

// restrictionPhrases introduce a region restriction inside a description.
var restrictionPhrases = []string{
	"must be located in",
	"must reside in",
	"candidates must be based in",
	"hiring remotely in",
	"remote from",
	"this role is open to candidates in",
	"open to remote candidates in",
	"based out of",
}

// restrictionWindow is how much text after a restriction phrase names the region.
const restrictionWindow = 100

// shortSignalLength is the longest signal that needs word boundaries ("uk" vs "bulk").
const shortSignalLength = 3

var (
	multiLocation = regexp.MustCompile(`^\d+ locations?$`)

	foreignShort     = wordPatterns(shortSignals(foreignSignals))
	stateCodePattern = wordPatterns(pinnedStateCodes)
)

func shortSignals(signals []string) []string {
	out := make([]string, 0)
	for _, s := range signals {
		if len(s) <= shortSignalLength {
			out = append(out, s)
		}
	}
	return out
}

func wordPatterns(words []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(words))
	for _, w := range words {
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(w)+`\b`))
	}
	return patterns
}
