package matcher

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"Lowercases", "Apple iPhone", "apple iphone"},
		{"Strips punctuation", "Apple iPhone 13 (Blue, 128 GB)", "apple iphone 13 blue 128 gb"},
		{"Slug", "apple-iphone-13-pro-max", "apple iphone 13 pro max"},
		{"Collapses whitespace", "  galaxy\t\tS21   ultra ", "galaxy s21 ultra"},
		{"Empty", "", ""},
		{"Only symbols", "--//..", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Normalize(tt.input))
		})
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	inputs := []string{
		"Apple iPhone 13 Pro Max Silver",
		"apple-iphone-13-pro-max",
		"HP Pavilion x360 (14\", 8GB/512GB)",
		"   ",
		"Ünïcode — Phone №5",
	}

	for _, in := range inputs {
		once := Normalize(in)
		assert.Equal(t, once, Normalize(once), "input %q", in)
	}
}

func TestIsMatch(t *testing.T) {
	substring := New(SubstringPolicy)
	prefix := New(PrefixPolicy)

	assert.True(t, substring.IsMatch("iphone 13", "apple-iphone-13-pro-max"))
	assert.False(t, prefix.IsMatch("iphone 13", "apple-iphone-13-pro-max"))
	assert.True(t, prefix.IsMatch("Apple iPhone 13", "apple-iphone-13-pro-max"))
	assert.False(t, substring.IsMatch("iphone 14", "apple-iphone-13-pro-max"))
}

func TestIsMatchRejectsEmptyQuery(t *testing.T) {
	for _, m := range []*Matcher{New(SubstringPolicy), New(PrefixPolicy)} {
		assert.False(t, m.IsMatch("", "anything at all"), m.Policy().Name())
		assert.False(t, m.IsMatch("   ", "anything at all"), m.Policy().Name())
		assert.False(t, m.IsMatch("!!!", "anything at all"), m.Policy().Name())
		assert.False(t, m.IsMatch("", ""), m.Policy().Name())
	}
}

func TestFilterKeepsOrder(t *testing.T) {
	m := New(SubstringPolicy)
	names := []string{"samsung galaxy s21", "apple iphone 13", "apple iphone 13 mini", "iphone 12"}

	assert.Equal(t, []int{1, 2}, m.Filter("iPhone 13", names))
	assert.Nil(t, m.Filter("", names))
}

func TestCustomPolicy(t *testing.T) {
	exact := New(PolicyFunc{Label: "exact", Fn: func(q, c string) bool { return q == c }})

	assert.True(t, exact.IsMatch("Dell Inspiron", "dell-inspiron"))
	assert.False(t, exact.IsMatch("Dell Inspiron", "dell inspiron 15"))
	assert.Equal(t, "exact", exact.Policy().Name())
}
