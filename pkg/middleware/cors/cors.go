package cors

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// New returns a CORS middleware for the booking frontends. An empty list allows any origin
// without credentials. Entries of the form "https://*.example.com" match any subdomain.
func New(allowedOrigins []string) gin.HandlerFunc {
	return cors.New(Config(allowedOrigins))
}

// Config builds the gin-contrib/cors settings for allowedOrigins.
func Config(allowedOrigins []string) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", "X-Requested-With", "X-Request-ID")
	cc.ExposeHeaders = []string{"Content-Disposition", "X-Request-ID", "Retry-After"}
	cc.MaxAge = 10 * time.Minute

	m := newMatcher(allowedOrigins)
	if m.any {
		cc.AllowAllOrigins = true
		return cc
	}
	cc.AllowOriginFunc = m.match
	cc.AllowCredentials = true
	return cc
}

type matcher struct {
	any      bool
	exact    map[string]struct{}
	suffixes []wildcard
}

type wildcard struct {
	scheme string
	suffix string
}

func newMatcher(origins []string) matcher {
	m := matcher{any: len(origins) == 0, exact: make(map[string]struct{}, len(origins))}
	for _, origin := range origins {
		origin = strings.TrimRight(strings.TrimSpace(origin), "/")
		switch {
		case origin == "*":
			m.any = true
		case strings.Contains(origin, "://*."):
			scheme, host, _ := strings.Cut(origin, "://*")
			m.suffixes = append(m.suffixes, wildcard{scheme: scheme + "://", suffix: host})
		case origin != "":
			m.exact[origin] = struct{}{}
		}
	}
	return m
}

func (m matcher) match(origin string) bool {
	origin = strings.TrimRight(origin, "/")
	if _, ok := m.exact[origin]; ok {
		return true
	}
	for _, w := range m.suffixes {
		if !strings.HasPrefix(origin, w.scheme) {
			continue
		}
		host := strings.TrimPrefix(origin, w.scheme)
		if strings.HasSuffix(host, w.suffix) && len(host) > len(w.suffix) {
			return true
		}
	}
	return false
}
