package cache

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ark7/a7router/pkg/web/middleware"
	"go.uber.org/zap"
)

// ResponseConfig configures Responses
type ResponseConfig struct {
	Cache Cache
	// TTL of stored responses; zero uses the cache default
	TTL time.Duration
	// CacheControl is sent with every cacheable response when set
	CacheControl string
	Logger       *zap.Logger
}

// stored is the cached form of a response
type stored struct {
	Status      int    `json:"status"`
	ContentType string `json:"content_type,omitempty"`
	Body        []byte `json:"body"`
	ETag        string `json:"etag"`
}

// Key returns the cache key of GET path
func Key(path string) string {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	return "GET " + path
}

// ETag returns a strong entity tag for body
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return strconv.Quote(hex.EncodeToString(sum[:16]))
}

// Responses serves GET requests without a query from the cache. On a miss
// the rest of the chain is buffered and successful responses are stored.
// Responses carry an ETag and X-Cache HIT or MISS; a matching
// If-None-Match gets 304. Cache failures are logged and treated as misses.
func Responses(cfg ResponseConfig) middleware.Step {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *middleware.Context, next middleware.Next) error {
		if c.Method() != http.MethodGet || c.Request.URL.RawQuery != "" {
			return next()
		}
		key := Key(c.Path())

		data, err := cfg.Cache.Get(c.Context(), key)
		if err == nil {
			var s stored
			if err := json.Unmarshal(data, &s); err == nil {
				s.write(c.Writer, c.Request, cfg.CacheControl, "HIT")
				return nil
			}
			logger.Warn("discarding corrupt cache entry", zap.String("key", key))
		} else if !errors.Is(err, ErrMiss) {
			logger.Warn("cache lookup failed", zap.String("key", key), zap.Error(err))
		}

		w := c.Writer
		rec := &recorder{ResponseWriter: w, status: http.StatusOK}
		c.Writer = rec
		err = next()
		c.Writer = w
		if err != nil {
			return err
		}

		s := stored{
			Status:      rec.status,
			ContentType: w.Header().Get("Content-Type"),
			Body:        rec.body.Bytes(),
		}
		if s.Status < 200 || s.Status >= 300 {
			w.WriteHeader(s.Status)
			_, err := w.Write(s.Body)
			return err
		}

		s.ETag = ETag(s.Body)
		if data, err := json.Marshal(s); err == nil {
			if err := cfg.Cache.Set(c.Context(), key, data, cfg.TTL); err != nil {
				logger.Warn("cache store failed", zap.String("key", key), zap.Error(err))
			}
		}
		s.write(w, c.Request, cfg.CacheControl, "MISS")
		return nil
	}
}

// Invalidate drops the cached GET responses of the paths returned by
// paths. Use it after the writes that change them, with TeePost.
func Invalidate(cache Cache, paths func(*middleware.Context) []string) middleware.Step {
	return func(c *middleware.Context, next middleware.Next) error {
		ps := paths(c)
		keys := make([]string, len(ps))
		for i, p := range ps {
			keys[i] = Key(p)
		}
		if err := cache.Delete(c.Context(), keys...); err != nil {
			return fmt.Errorf("invalidate cache: %w", err)
		}
		return next()
	}
}

func (s stored) write(w http.ResponseWriter, r *http.Request, cacheControl, state string) {
	h := w.Header()
	h.Set("ETag", s.ETag)
	h.Set("X-Cache", state)
	if cacheControl != "" {
		h.Set("Cache-Control", cacheControl)
	}
	if matchesETag(r.Header.Get("If-None-Match"), s.ETag) {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if s.ContentType != "" {
		h.Set("Content-Type", s.ContentType)
	}
	w.WriteHeader(s.Status)
	_, _ = w.Write(s.Body)
}

// matchesETag applies the weak comparison of If-None-Match
func matchesETag(header, etag string) bool {
	if header == "" {
		return false
	}
	for _, candidate := range strings.Split(header, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == strings.TrimPrefix(etag, "W/") {
			return true
		}
	}
	return false
}

// recorder buffers the status and body of a response. Headers go straight
// to the wrapped writer.
type recorder struct {
	http.ResponseWriter
	status      int
	body        bytes.Buffer
	wroteHeader bool
}

func (r *recorder) WriteHeader(status int) {
	if !r.wroteHeader {
		r.status = status
		r.wroteHeader = true
	}
}

func (r *recorder) Write(b []byte) (int, error) {
	r.wroteHeader = true
	return r.body.Write(b)
}
