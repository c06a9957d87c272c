package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BerylCAtieno/startup-discovery-agent/internal/logging"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/models"
	"github.com/BerylCAtieno/startup-discovery-agent/internal/store"
)

// Store is the persistence the caches sit on.
type Store interface {
	GetEntry(ctx context.Context, key string) (*models.CacheEntry, error)
	PutEntry(ctx context.Context, e models.CacheEntry, ttl time.Duration) error
}

const (
	DiscoveryTTL = 7 * 24 * time.Hour
	ToolsTTL     = 24 * time.Hour

	discoveryPrefix = "discovery:"
	discoveryTool   = "discovery"
	toolsPrefix     = "static_tools_"
	toolsTool       = "static_tools"
)

// Factors returns the eight normalized cache factors of p.
func Factors(p models.Profile) map[string]string {
	return map[string]string{
		"goal_type":          normalizeText(p.GoalType),
		"time_commitment":    normalizeText(p.TimeCommitment),
		"budget_range":       normalizeText(p.BudgetRange),
		"interest_area":      normalizeText(p.InterestArea),
		"sub_interest_area":  normalizeText(p.SubInterestArea),
		"work_style":         normalizeText(p.WorkStyle),
		"skill_strength":     normalizeText(p.SkillStrength),
		"founder_psychology": canonicalJSON(p.FounderPsychology),
	}
}

// Key derives the discovery cache key for p. Casing, whitespace and the key
// order of founder_psychology do not affect it.
func Key(p models.Profile) string {
	// encoding/json writes map keys in sorted order.
	b, _ := json.Marshal(Factors(p))
	sum := sha256.Sum256(b)
	return discoveryPrefix + hex.EncodeToString(sum[:])[:32]
}

// ToolsKey is the key of the precomputed knowledge bundle for an area.
func ToolsKey(normalizedArea string) string {
	return toolsPrefix + normalizedArea
}

func normalizeText(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func canonicalJSON(m map[string]any) string {
	if m == nil {
		return ""
	}
	b, err := json.Marshal(m)
	if err != nil {
		return ""
	}
	return string(b)
}

// Discovery caches the three output sections per profile.
type Discovery struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewDiscovery creates the output cache. ttl <= 0 means DiscoveryTTL.
func NewDiscovery(s Store, ttl time.Duration, logger *zap.Logger) *Discovery {
	if ttl <= 0 {
		ttl = DiscoveryTTL
	}
	return &Discovery{store: s, ttl: ttl, logger: logging.OrNop(logger)}
}

// Get returns cached outputs for key. Bypass, misses, expiry and decode
// errors all report false.
func (d *Discovery) Get(ctx context.Context, key string, bypass bool) (models.Outputs, bool) {
	if bypass {
		return models.Outputs{}, false
	}

	e, err := d.store.GetEntry(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			d.logger.Warn("Discovery cache read failed", zap.String("cache_key", key), zap.Error(err))
		}
		return models.Outputs{}, false
	}

	var m map[string]string
	if err := json.Unmarshal([]byte(e.Result), &m); err != nil {
		d.logger.Warn("Discovery cache entry undecodable", zap.String("cache_key", key), zap.Error(err))
		return models.Outputs{}, false
	}
	out, ok := models.OutputsFromMap(m)
	if !ok {
		return models.Outputs{}, false
	}
	return out, true
}

// Set stores outputs under key. All three sections must be present and at
// least one non-empty. Failures are logged, never returned.
func (d *Discovery) Set(ctx context.Context, key string, p models.Profile, outputs map[string]string, bypass bool) bool {
	if bypass {
		return false
	}

	out, ok := models.OutputsFromMap(outputs)
	if !ok {
		d.logger.Warn("Discovery cache refused incomplete outputs", zap.String("cache_key", key))
		return false
	}
	if len(out.Sections()) == 0 {
		return false
	}

	params, _ := json.Marshal(Factors(p))
	result, _ := json.Marshal(outputs)

	err := d.store.PutEntry(ctx, models.CacheEntry{
		CacheKey: key,
		ToolName: discoveryTool,
		Params:   string(params),
		Result:   string(result),
	}, d.ttl)
	if err != nil {
		d.logger.Warn("Discovery cache write failed", zap.String("cache_key", key), zap.Error(err))
		return false
	}
	return true
}

// Tools caches precomputed knowledge bundles per interest area.
type Tools struct {
	store  Store
	ttl    time.Duration
	logger *zap.Logger
}

// NewTools creates the bundle cache. ttl <= 0 means ToolsTTL.
func NewTools(s Store, ttl time.Duration, logger *zap.Logger) *Tools {
	if ttl <= 0 {
		ttl = ToolsTTL
	}
	return &Tools{store: s, ttl: ttl, logger: logging.OrNop(logger)}
}

// Get returns the bundle stored under key.
func (t *Tools) Get(ctx context.Context, key string) (map[string]string, bool) {
	e, err := t.store.GetEntry(ctx, key)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			t.logger.Warn("Tool cache read failed", zap.String("cache_key", key), zap.Error(err))
		}
		return nil, false
	}

	var blocks map[string]string
	if err := json.Unmarshal([]byte(e.Result), &blocks); err != nil || len(blocks) == 0 {
		return nil, false
	}
	return blocks, true
}

// Set stores a bundle under key; params records what it was computed from.
func (t *Tools) Set(ctx context.Context, key string, params map[string]string, blocks map[string]string) {
	p, _ := json.Marshal(params)
	r, _ := json.Marshal(blocks)

	err := t.store.PutEntry(ctx, models.CacheEntry{
		CacheKey: key,
		ToolName: toolsTool,
		Params:   string(p),
		Result:   string(r),
	}, t.ttl)
	if err != nil {
		t.logger.Warn("Tool cache write failed", zap.String("cache_key", key), zap.Error(err))
	}
}
