package sigmatch_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/maxgio92/sigmatch"
)

func TestAllocateName(t *testing.T) {
	tests := []struct {
		name     string
		base     string
		existing []string
		want     string
	}{
		{name: "free", base: "foo", existing: []string{"bar"}, want: "foo"},
		{name: "empty-registry", base: "foo", want: "foo"},
		{name: "taken", base: "foo", existing: []string{"foo"}, want: "foo_1"},
		{name: "first-suffix-taken", base: "foo", existing: []string{"foo", "foo_1"}, want: "foo_2"},
		{name: "gap", base: "foo", existing: []string{"foo", "foo_2"}, want: "foo_1"},
		{name: "suffix-only", base: "foo", existing: []string{"foo_1"}, want: "foo"},
		{name: "already-suffixed-base", base: "foo_1", existing: []string{"foo_1"}, want: "foo_1_1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := sigmatch.NewNameRegistry(tt.existing...)
			before := reg.Len()

			assert.Equal(t, tt.want, sigmatch.AllocateName(tt.base, reg))
			assert.Equal(t, before, reg.Len(), "allocation must not reserve the name")
		})
	}
}

func TestAllocateName_Sequence(t *testing.T) {
	reg := sigmatch.NewNameRegistry("Alpha")

	var got []string
	for i := 0; i < 3; i++ {
		name := sigmatch.AllocateName("Alpha", reg)
		reg.Add(name)
		got = append(got, name)
	}
	assert.Equal(t, []string{"Alpha_1", "Alpha_2", "Alpha_3"}, got)
	assert.True(t, reg.Contains("Alpha_3"))
}
