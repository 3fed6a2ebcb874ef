package location

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func table() []Country {
	return []Country{
		{Name: "Kenya", Keywords: []KeywordWeight{
			{Keyword: "kenya", Weight: 5.0},
			{Keyword: "nairobi", Weight: 2.0},
		}},
		{Name: "Uganda", Keywords: []KeywordWeight{
			{Keyword: "uganda", Weight: 5.0},
			{Keyword: "kampala", Weight: 2.0},
		}},
	}
}

func TestClassifyNoMatch(t *testing.T) {
	c := New(table())
	res := c.Classify("nothing relevant here")
	assert.Nil(t, res.Label)
	assert.Equal(t, 0.0, res.Confidence)
}

func TestClassifyPrefersHigherScoringCountry(t *testing.T) {
	c := New(table())
	res := c.Classify("Protests erupt in Nairobi, Kenya over fuel prices")
	require.NotNil(t, res.Label)
	assert.Equal(t, "Kenya", *res.Label)
	assert.Greater(t, res.Confidence, 0.0)
}

func TestClassifyIsCaseInsensitive(t *testing.T) {
	c := New(table())
	res := c.Classify("KAMPALA is the capital of UGANDA")
	require.NotNil(t, res.Label)
	assert.Equal(t, "Uganda", *res.Label)
}
