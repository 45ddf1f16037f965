package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmailFieldSemicolons(t *testing.T) {
	got := NormalizeEmailField("a@example.com;b@example.com;a@example.com")
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got)
}

func TestNormalizeEmailFieldJSONArray(t *testing.T) {
	got := NormalizeEmailField(`["John@Example.com", "jane@example.com"]`)
	assert.Equal(t, []string{"john@example.com", "jane@example.com"}, got)
}

func TestNormalizeEmailFieldCommas(t *testing.T) {
	got := NormalizeEmailField("a@example.com, b@example.com")
	assert.Equal(t, []string{"a@example.com", "b@example.com"}, got)
}

func TestNormalizeEmailFieldCommaInsideSingleValue(t *testing.T) {
	// A comma is only a separator when every piece carries an address.
	got := NormalizeEmailField("Smith, John j.smith@example.com")
	assert.Equal(t, []string{"j.smith@example.com"}, got)
}

func TestNormalizeEmailFieldJunkText(t *testing.T) {
	got := NormalizeEmailField("Contact: bob@example.com (owner)")
	assert.Equal(t, []string{"bob@example.com"}, got)
}

func TestNormalizeEmailFieldQuoted(t *testing.T) {
	got := NormalizeEmailField(`"info@example.com"`)
	assert.Equal(t, []string{"info@example.com"}, got)
}

func TestNormalizeEmailFieldLowercases(t *testing.T) {
	got := NormalizeEmailField("SALES@Example.COM")
	assert.Equal(t, []string{"sales@example.com"}, got)
}

func TestNormalizeEmailFieldGarbage(t *testing.T) {
	assert.Nil(t, NormalizeEmailField(""))
	assert.Nil(t, NormalizeEmailField("   "))
	assert.Nil(t, NormalizeEmailField("call us at 555-0100"))
	assert.Nil(t, NormalizeEmailField("not-an-email"))
}

func TestNormalizeEmailFieldPreservesOrder(t *testing.T) {
	got := NormalizeEmailField("z@example.com;a@example.com;m@example.com")
	assert.Equal(t, []string{"z@example.com", "a@example.com", "m@example.com"}, got)
}
