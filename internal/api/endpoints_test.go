package api

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsProtected(t *testing.T) {
	tests := []struct {
		method string
		want   bool
	}{
		{method: HealthCheck, want: false},
		{method: HealthWatch, want: false},
		{method: IdentityWhoAmI, want: true},
		{method: IdentityRevokeToken, want: false},
		{method: "/unknown.Service/Method", want: true},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			assert.Equal(t, tt.want, IsProtected(tt.method))
		})
	}
}
