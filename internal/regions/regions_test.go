package regions

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSlugFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in     string
		want   string
		wantOK bool
	}{
		{"DOF København", "kobenhavn", true},
		{"dof københavn", "kobenhavn", true},
		{"DOF Nordsjælland", "nordsjaelland", true},
		{"kobenhavn", "kobenhavn", true},
		{"DOF Sydøstjylland", "ostjylland", true},
		{"DOF Atlantis", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, ok := SlugFor(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSharedSlugPreserved(t *testing.T) {
	t.Parallel()

	assert.True(t, Shared("ostjylland"))
	assert.ElementsMatch(t, []string{"DOF Sydøstjylland", "DOF Østjylland"}, NamesFor("ostjylland"))
	assert.False(t, Shared("fyn"))
}

func TestAllAndSlugs(t *testing.T) {
	t.Parallel()

	assert.Len(t, All(), 13)
	slugs := Slugs()
	assert.Len(t, slugs, 12)
	assert.Equal(t, "kobenhavn", slugs[0])
}
