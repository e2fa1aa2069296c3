package classifier

import "regexp"

// Tier is the model tier a turn is routed to.
type Tier string

const (
	TierL2 Tier = "L2"
	TierL3 Tier = "L3"
	TierL4 Tier = "L4"
)

// Config holds every threshold and phrase list the classifier consults.
// The fields carry mapstructure tags, but internal/config does not bind
// them: cmd/aided builds its classifier from DefaultConfig.
type Config struct {
	AddNewPattern string `mapstructure:"add_new_pattern"`

	StructuralPhrases []string `mapstructure:"structural_phrases"`
	QueryStarters     []string `mapstructure:"query_starters"`
	DomainPhrases     []string `mapstructure:"domain_phrases"`
	IntroWords        []string `mapstructure:"intro_words"`

	MinCommaSegments   int `mapstructure:"min_comma_segments"`
	MinNumericSegments int `mapstructure:"min_numeric_segments"`
}

// DefaultConfig returns a workable starting configuration. cmd/aided uses
// it as is; nothing in this repository loads classifier settings from bound
// configuration.
func DefaultConfig() Config {
	return Config{
		AddNewPattern: `(?i)^add a new ([a-z][a-z \-]*)`,
		StructuralPhrases: []string{
			"add a section", "create a", "set up a", "reorganize",
			"split the", "group the", "organize the", "make a table",
		},
		QueryStarters: []string{
			"how many", "who", "what's", "what is", "show me", "list",
			"when is", "where is", "which",
		},
		DomainPhrases: []string{
			"budget is", "got quotes", "starts",
		},
		IntroWords: []string{
			"these are", "here are", "add", "the following",
		},
		MinCommaSegments:   3,
		MinNumericSegments: 2,
	}
}

func (c Config) addNewRegexp() *regexp.Regexp {
	return regexp.MustCompile(c.AddNewPattern)
}
