package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderDefaults(t *testing.T) {
	t.Parallel()

	ee := New(fmt.Errorf("test error")).Build()

	assert.Equal(t, "test error", ee.Error())
	assert.Equal(t, ComponentUnknown, ee.GetComponent())
	assert.Equal(t, CategoryGeneric, ee.Category)
	assert.False(t, ee.Timestamp.IsZero())
}

func TestBuilderFields(t *testing.T) {
	t.Parallel()

	ee := Newf("table %s unreadable", "arter.csv").
		Component("species").
		Category(CategoryClassification).
		Context("path", "arter.csv").
		Build()

	assert.Equal(t, "species", ee.GetComponent())
	assert.Equal(t, "classification", ee.GetCategory())
	assert.Equal(t, map[string]any{"path": "arter.csv"}, ee.GetContext())
}

func TestContextCopyIsIsolated(t *testing.T) {
	t.Parallel()

	ee := Newf("x").Context("k", 1).Build()
	ctx := ee.GetContext()
	ctx["k"] = 2

	assert.Equal(t, 1, ee.GetContext()["k"])
}

func TestDetectCategory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		msg  string
		want ErrorCategory
	}{
		{"timeout", "read timeout after 5s", CategoryTimeout},
		{"network", "connection refused", CategoryNetwork},
		{"file", "open logs/su-kobenhavn.log: no such file", CategoryFileIO},
		{"validation", "invalid selection value", CategoryValidation},
		{"generic", "something odd", CategoryGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, New(NewStd(tt.msg)).Build().Category)
		})
	}
}

func TestCategoryInheritedFromWrapped(t *testing.T) {
	t.Parallel()

	inner := Newf("row 3 malformed").Category(CategoryFileParsing).Build()
	outer := New(fmt.Errorf("load table: %w", inner)).Build()

	assert.Equal(t, CategoryFileParsing, outer.Category)
}

func TestIsCategory(t *testing.T) {
	t.Parallel()

	err := fmt.Errorf("wrapped: %w", Newf("user missing").Category(CategoryNotFound).Build())

	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.True(t, IsCategory(err, CategoryNotFound))
	assert.False(t, IsCategory(err, CategoryDatabase))
	assert.False(t, IsNotFound(fmt.Errorf("plain")))
}

func TestIsMatchesCategory(t *testing.T) {
	t.Parallel()

	a := Newf("a").Category(CategoryDelivery).Build()
	b := Newf("b").Category(CategoryDelivery).Build()
	c := Newf("c").Category(CategoryFetch).Build()

	assert.ErrorIs(t, a, b)
	assert.NotErrorIs(t, a, c)
}
