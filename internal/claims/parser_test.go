package claims

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		claim    string
		typ      ClaimType
		subject  string
		relation string
		object   string
	}{
		{"AttributionVerb", "Thomas Edison invented the lightbulb", ClaimAttribution, "Thomas Edison", "invented", "the lightbulb"},
		{"AttributionRole", "Marie Curie is the discoverer of radium", ClaimAttribution, "Marie Curie", "discoverer", "radium"},
		{"LocationIn", "Paris is in France", ClaimLocation, "Paris", "in", "France"},
		{"LocationLocatedIn", "The Eiffel Tower is located in Paris", ClaimLocation, "The Eiffel Tower", "located in", "Paris"},
		{"LocationCapital", "Paris is the capital of France", ClaimLocation, "Paris", "", "France"},
		{"TemporalBorn", "Albert Einstein was born in 1879", ClaimTemporal, "Albert Einstein", "", "1879"},
		{"TemporalEvent", "The revolution happened in 1789", ClaimTemporal, "The revolution", "happened", "1789"},
		{"PropertyIs", "Paris is a city", ClaimProperty, "Paris", "", "city"},
		{"PropertyWas", "Napoleon was an emperor", ClaimProperty, "Napoleon", "", "emperor"},
		{"TrailingPeriod", "Paris is in France.", ClaimLocation, "Paris", "in", "France"},
		{"RepeatedTrailingPeriods", "Paris is in France..", ClaimLocation, "Paris", "in", "France"},
		{"CaseInsensitive", "paris IS IN france", ClaimLocation, "paris", "IN", "france"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			parsed, ok := Parse(tt.claim)
			require.True(t, ok)
			assert.Equal(t, tt.typ, parsed.Type)
			assert.Equal(t, tt.subject, parsed.Subject)
			assert.Equal(t, tt.relation, parsed.Relation)
			assert.Equal(t, tt.object, parsed.Object)
		})
	}

	t.Run("Unparseable", func(t *testing.T) {
		t.Parallel()
		for _, claim := range []string{"", "Blue", "Wow what a day"} {
			_, ok := Parse(claim)
			assert.False(t, ok, "claim %q should not parse", claim)
		}
	})

	t.Run("AttributionBeatsProperty", func(t *testing.T) {
		t.Parallel()
		// "wrote a" could match the property pattern; attribution is tried
		// first.
		parsed, ok := Parse("Tolstoy wrote a novel")
		require.True(t, ok)
		assert.Equal(t, ClaimAttribution, parsed.Type)
	})
}

func TestNormalizeRelation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"AtLocation", "atlocation"},
		{"part_of", "partof"},
		{"located-in", "locatedin"},
		{"Known For", "knownfor"},
		{"invented", "invented"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeRelation(tt.in))
	}
}
