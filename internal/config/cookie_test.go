package config

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToCookie(t *testing.T) {
	tests := []struct {
		name     string
		template CookieTemplate
		value    string
		want     *http.Cookie
	}{
		{
			name:     "defaults",
			template: CookieTemplate{Name: "foo"},
			value:    "bar",
			want: &http.Cookie{
				Name:  "foo",
				Value: "bar",
			},
		}, {
			name: "session",
			template: CookieTemplate{
				Name:     "__Host-Http-AuthGatewaySession",
				Path:     "/",
				Secure:   true,
				HTTPOnly: true,
				SameSite: CookieSameSiteLax,
			},
			value: "sid-123",
			want: &http.Cookie{
				Name:     "__Host-Http-AuthGatewaySession",
				Value:    "sid-123",
				Path:     "/",
				Secure:   true,
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			},
		}, {
			name: "strict same site",
			template: CookieTemplate{
				Name:     "gw",
				SameSite: CookieSameSiteStrict,
			},
			want: &http.Cookie{
				Name:     "gw",
				SameSite: http.SameSiteStrictMode,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.template.ToCookie(tt.value))
		})
	}
}
