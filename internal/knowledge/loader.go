package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto"
	"go.uber.org/zap"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
)

// areaAliases maps lowercased interest-area labels to their file keys.
var areaAliases = map[string]string{
	"ai / automation":           "ai",
	"ai/automation":             "ai",
	"artificial intelligence":   "ai",
	"health & wellness":         "healthtech",
	"health and wellness":       "healthtech",
	"healthcare":                "healthtech",
	"finance / fintech":         "fintech",
	"e-commerce":                "ecommerce",
	"e-commerce / retail":       "ecommerce",
	"education / learning":      "edtech",
	"sustainability / climate":  "climate",
	"creator economy / media":   "creator_economy",
	"b2b saas / productivity":   "saas",
	"developer tools / devtool": "devtools",
}

// fieldAliases maps legacy block names found in older files to canonical ones.
var fieldAliases = map[string]string{
	"revenue_models":      models.BlockRevenue,
	"validation_insights": models.BlockValidationQuestions,
	"viability_summary":   models.BlockViability,
}

var (
	separatorRun = regexp.MustCompile(`[/ \t\n&]+`)
	disallowed   = regexp.MustCompile(`[^a-z0-9_-]`)
	underscores  = regexp.MustCompile(`_+`)
)

// NormalizeKey turns an interest-area label into a filesystem-friendly key.
func NormalizeKey(area string) string {
	s := strings.ToLower(strings.TrimSpace(area))
	if s == "" {
		return ""
	}
	if alias, ok := areaAliases[s]; ok {
		return alias
	}
	s = separatorRun.ReplaceAllString(s, "_")
	s = disallowed.ReplaceAllString(s, "")
	s = underscores.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// Loader reads static knowledge files from a directory. Parsed files are memoised.
type Loader struct {
	dir    string
	memo   *ristretto.Cache
	ttl    time.Duration
	logger *zap.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(ld *Loader) { ld.logger = logging.OrNop(l) }
}

// WithMemoTTL sets how long a parsed file is served from memory.
func WithMemoTTL(d time.Duration) Option {
	return func(ld *Loader) { ld.ttl = d }
}

// NewLoader creates a Loader over dir.
func NewLoader(dir string, opts ...Option) (*Loader, error) {
	memo, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e4,
		MaxCost:     32 << 20,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("create knowledge memo: %w", err)
	}

	ld := &Loader{
		dir:    dir,
		memo:   memo,
		ttl:    10 * time.Minute,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(ld)
	}
	return ld, nil
}

// Close releases the memo.
func (l *Loader) Close() {
	l.memo.Close()
}

// Load returns the blocks stored for area, or an empty map when there is no
// usable file. It never fails.
func (l *Loader) Load(area string) map[string]string {
	key := NormalizeKey(area)
	if key == "" {
		return map[string]string{}
	}
	return l.loadKey(key)
}

// LoadArea merges the area file with its sub-area specialisation
// (<area>_<sub>.json); sub-area values win.
func (l *Loader) LoadArea(area, sub string) map[string]string {
	blocks := l.Load(area)
	key := NormalizeKey(area)
	subKey := NormalizeKey(sub)
	if key == "" || subKey == "" {
		return blocks
	}
	for k, v := range l.loadKey(key + "_" + subKey) {
		blocks[k] = v
	}
	return blocks
}

func (l *Loader) loadKey(key string) map[string]string {
	path := filepath.Join(l.dir, key+".json")

	if v, ok := l.memo.Get(path); ok {
		if cached, ok := v.(map[string]string); ok {
			return copyMap(cached)
		}
	}

	blocks := l.readFile(path)
	cost := int64(1)
	for k, v := range blocks {
		cost += int64(len(k) + len(v))
	}
	l.memo.SetWithTTL(path, blocks, cost, l.ttl)
	return copyMap(blocks)
}

func (l *Loader) readFile(path string) map[string]string {
	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			l.logger.Warn("Static knowledge unreadable", zap.String("path", path), zap.Error(err))
		}
		return map[string]string{}
	}

	var root map[string]any
	if err := json.Unmarshal(data, &root); err != nil || root == nil {
		l.logger.Warn("Static knowledge is not a JSON object", zap.String("path", path))
		return map[string]string{}
	}

	return Canonicalize(root)
}

// Canonicalize coerces values to strings and renames legacy block names. A
// canonical name already present wins over its legacy alias.
func Canonicalize(root map[string]any) map[string]string {
	out := make(map[string]string, len(root))
	for k, v := range root {
		if _, legacy := fieldAliases[k]; legacy {
			continue
		}
		out[k] = coerce(v)
	}
	for legacy, canonical := range fieldAliases {
		v, ok := root[legacy]
		if !ok {
			continue
		}
		if existing, has := out[canonical]; has && strings.TrimSpace(existing) != "" {
			continue
		}
		out[canonical] = coerce(v)
	}
	return out
}

func coerce(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64, bool:
		return fmt.Sprint(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func copyMap(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
