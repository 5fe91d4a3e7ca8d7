package clientip_test

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrymomot/placelist/pkg/clientip"
)

func TestGetIP(t *testing.T) {
	t.Parallel()

	t.Run("remote addr fallback", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "203.0.113.7:54321"
		assert.Equal(t, "203.0.113.7", clientip.GetIP(r))
	})

	t.Run("x-forwarded-for first valid", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Forwarded-For", "garbage, 198.51.100.9, 10.0.0.1")
		assert.Equal(t, "198.51.100.9", clientip.GetIP(r))
	})

	t.Run("cloudflare header wins", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("CF-Connecting-IP", "192.0.2.55")
		r.Header.Set("X-Forwarded-For", "198.51.100.9")
		assert.Equal(t, "192.0.2.55", clientip.GetIP(r))
	})

	t.Run("x-real-ip", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/", nil)
		r.Header.Set("X-Real-IP", "198.51.100.20")
		assert.Equal(t, "198.51.100.20", clientip.GetIP(r))
	})

	t.Run("ipv6 remote addr", func(t *testing.T) {
		t.Parallel()
		r := httptest.NewRequest("GET", "/", nil)
		r.RemoteAddr = "[2001:db8::1]:443"
		assert.Equal(t, "2001:db8::1", clientip.GetIP(r))
	})
}

func TestSubnet(t *testing.T) {
	t.Parallel()

	tests := []struct {
		ip   string
		want string
	}{
		{"203.0.113.77", "203.0.113.0/24"},
		{"203.0.113.1", "203.0.113.0/24"},
		{"2001:db8:abcd:12:ffff::1", "2001:db8:abcd:12::/64"},
		{"not-an-ip", ""},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.ip, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, clientip.Subnet(tt.ip))
		})
	}
}
