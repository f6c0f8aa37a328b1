package middleware

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// CacheConfig represents cache control configuration
type CacheConfig struct {
	MaxAge         int
	Private        bool
	NoStore        bool
	NoCache        bool
	MustRevalidate bool
	Vary           []string
}

// NoStoreConfig forbids any caching. Used for pages that may show a hash.
func NoStoreConfig() CacheConfig {
	return CacheConfig{
		Private: true,
		NoStore: true,
		NoCache: true,
		Vary:    []string{"Cookie"},
	}
}

// Cache adds cache control headers to responses. Non-GET responses are
// always no-store.
func Cache(config CacheConfig) gin.HandlerFunc {
	value := config.header()
	vary := strings.Join(config.Vary, ", ")

	return func(c *gin.Context) {
		if c.Request.Method != "GET" {
			c.Header("Cache-Control", "no-store")
		} else if value != "" {
			c.Header("Cache-Control", value)
		}
		if config.NoStore {
			c.Header("Pragma", "no-cache")
		}
		if vary != "" {
			c.Header("Vary", vary)
		}

		c.Next()
	}
}

func (config CacheConfig) header() string {
	directives := make([]string, 0, 5)

	if config.Private {
		directives = append(directives, "private")
	} else {
		directives = append(directives, "public")
	}
	if config.MaxAge > 0 && !config.NoStore {
		directives = append(directives, "max-age="+strconv.Itoa(config.MaxAge))
	}
	if config.NoStore {
		directives = append(directives, "no-store")
	}
	if config.NoCache {
		directives = append(directives, "no-cache")
	}
	if config.MustRevalidate {
		directives = append(directives, "must-revalidate")
	}

	return strings.Join(directives, ", ")
}
