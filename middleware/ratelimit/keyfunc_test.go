package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestDefaultKeyFunc(t *testing.T) {
	cases := []struct {
		name     string
		header   string
		trustXFF bool
		remote   string
		set      map[string]string
		want     string
	}{
		{
			name:   "header wins and is trimmed",
			header: "X-Client",
			remote: "10.0.0.1:1234",
			set:    map[string]string{"X-Client": " client-123 "},
			want:   "client-123",
		},
		{
			name:   "empty header falls back to remote host",
			header: "X-Client",
			remote: "10.0.0.1:1234",
			want:   "10.0.0.1",
		},
		{
			name:     "first X-Forwarded-For ip when trusted",
			trustXFF: true,
			remote:   "10.0.0.9:5555",
			set:      map[string]string{"X-Forwarded-For": "1.2.3.4, 5.6.7.8"},
			want:     "1.2.3.4",
		},
		{
			name:   "X-Forwarded-For ignored when not trusted",
			remote: "10.0.0.9:5555",
			set:    map[string]string{"X-Forwarded-For": "1.2.3.4"},
			want:   "10.0.0.9",
		},
		{
			name:     "blank X-Forwarded-For entry",
			trustXFF: true,
			remote:   "10.0.0.9:5555",
			set:      map[string]string{"X-Forwarded-For": " , 5.6.7.8"},
			want:     "10.0.0.9",
		},
		{
			name:   "remote without port is used as is",
			remote: "10.0.0.9",
			want:   "10.0.0.9",
		},
		{
			name: "nothing known",
			want: "unknown",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			fn := DefaultKeyFunc(tc.header, tc.trustXFF)

			r := httptest.NewRequest(http.MethodGet, "http://example/", nil)
			r.RemoteAddr = tc.remote
			for k, v := range tc.set {
				r.Header.Set(k, v)
			}

			if got := fn(r); got != tc.want {
				t.Fatalf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
