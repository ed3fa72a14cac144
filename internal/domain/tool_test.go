package domain

import (
	"testing"

	"github.com/hashicorp/go-version"
	"github.com/stretchr/testify/assert"
)

func TestTool_String(t *testing.T) {
	assert.Equal(t, "dotnet-serve", Tool{PackageID: "dotnet-serve"}.String())
	assert.Equal(t, "dotnet-serve 1.10.0", Tool{
		PackageID: "dotnet-serve",
		Version:   version.Must(version.NewVersion("1.10.0")),
	}.String())
}

func TestUpdateDescriptor_Available(t *testing.T) {
	v1 := version.Must(version.NewVersion("1.0.0"))
	v2 := version.Must(version.NewVersion("2.0.0"))

	tests := []struct {
		name string
		desc UpdateDescriptor
		want bool
	}{
		{"nothing discovered", UpdateDescriptor{Running: v1}, false},
		{"newer discovered", UpdateDescriptor{Running: v1, Discovered: v2}, true},
		{"same discovered", UpdateDescriptor{Running: v2, Discovered: v2}, false},
		{"older discovered", UpdateDescriptor{Running: v2, Discovered: v1}, false},
		{"unknown running version", UpdateDescriptor{Discovered: v1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.desc.Available())
		})
	}
}
