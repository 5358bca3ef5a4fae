package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/fspotfs/fspotfs/catalog"
)

func TestCheckTags(t *testing.T) {
	tests := []struct {
		name string
		tags []catalog.Tag
		want []string
	}{
		{
			name: "healthy tree",
			tags: []catalog.Tag{
				{ID: 1, Name: "Places"},
				{ID: 2, Name: "Paris", ParentID: 1},
				{ID: 3, Name: "People"},
			},
		},
		{
			name: "empty name",
			tags: []catalog.Tag{{ID: 4, Name: ""}},
			want: []string{`tag 4 has an empty name`},
		},
		{
			name: "dot names",
			tags: []catalog.Tag{{ID: 5, Name: ".."}},
			want: []string{`tag 5 is named ".."`},
		},
		{
			name: "missing parent",
			tags: []catalog.Tag{{ID: 6, Name: "Lost", ParentID: 99}},
			want: []string{`tag "Lost" (6) has missing parent 99`},
		},
		{
			name: "cycle",
			tags: []catalog.Tag{
				{ID: 7, Name: "A", ParentID: 8},
				{ID: 8, Name: "B", ParentID: 7},
				{ID: 9, Name: "C", ParentID: 8},
			},
			want: []string{
				`tag "A" (7) is part of a parent cycle`,
				`tag "B" (8) is part of a parent cycle`,
			},
		},
		{
			name: "duplicate names",
			tags: []catalog.Tag{
				{ID: 11, Name: "Paris"},
				{ID: 10, Name: "Paris", ParentID: 11},
			},
			want: []string{`tag name "Paris" is used by 2 tags [10 11]`},
		},
		{
			name: "reserved root id",
			tags: []catalog.Tag{{ID: 0, Name: "Root"}},
			want: []string{`tag "Root" uses the reserved root id 0`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, checkTags(tt.tags))
		})
	}
}

func TestInCycle_SelfParent(t *testing.T) {
	byID := map[int64]catalog.Tag{3: {ID: 3, Name: "Loop", ParentID: 3}}
	assert.True(t, inCycle(3, byID))
}
