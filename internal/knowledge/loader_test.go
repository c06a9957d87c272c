package knowledge

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeKey(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"AI / Automation", "ai"},
		{"Health & Wellness", "healthtech"},
		{"  Health & Wellness ", "healthtech"},
		{"Quantum Pottery", "quantum_pottery"},
		{"Food & Beverage / Local", "food_beverage_local"},
		{"B2B: SaaS!!", "b2b_saas"},
		{"__weird__ -- name__", "weird_--_name"},
		{"", ""},
		{"   ", ""},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeKey(tt.in))
		})
	}
}

func writeFile(t *testing.T, dir, name, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func newTestLoader(t *testing.T, dir string) *Loader {
	t.Helper()
	ld, err := NewLoader(dir)
	require.NoError(t, err)
	t.Cleanup(ld.Close)
	return ld
}

func TestLoadMissingFile(t *testing.T) {
	ld := newTestLoader(t, t.TempDir())
	assert.Empty(t, ld.Load("Quantum Pottery"))
	assert.Empty(t, ld.Load(""))
}

func TestLoadInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.json", "{not json")
	writeFile(t, dir, "array.json", `["a", "b"]`)

	ld := newTestLoader(t, dir)
	assert.Empty(t, ld.Load("broken"))
	assert.Empty(t, ld.Load("array"))
}

func TestLoadCoercesAndAliases(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "ai.json", `{
		"market_trends": "Agents everywhere",
		"market_size": 1200,
		"risks": ["hallucination", "cost"],
		"revenue_models": "Seat-based SaaS",
		"validation_insights": "Ask about workflows",
		"viability_summary": "Strong",
		"viability": "Canonical wins"
	}`)

	ld := newTestLoader(t, dir)
	got := ld.Load("AI / Automation")

	assert.Equal(t, "Agents everywhere", got["market_trends"])
	assert.Equal(t, "1200", got["market_size"])
	assert.Equal(t, `["hallucination","cost"]`, got["risks"])
	assert.Equal(t, "Seat-based SaaS", got["revenue"])
	assert.Equal(t, "Ask about workflows", got["validation_questions"])
	assert.Equal(t, "Canonical wins", got["viability"])
	assert.NotContains(t, got, "revenue_models")
}

func TestLoadReturnsCopies(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "fintech.json", `{"risks": "Regulation"}`)

	ld := newTestLoader(t, dir)
	first := ld.Load("fintech")
	first["risks"] = "mutated"
	ld.memo.Wait()

	assert.Equal(t, "Regulation", ld.Load("fintech")["risks"])
}

func TestLoadAreaMergesSubArea(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "healthtech.json", `{"risks": "Compliance", "persona": "Clinics"}`)
	writeFile(t, dir, "healthtech_mental_health.json", `{"persona": "Therapists"}`)

	ld := newTestLoader(t, dir)
	got := ld.LoadArea("Health & Wellness", "Mental Health")
	assert.Equal(t, "Compliance", got["risks"])
	assert.Equal(t, "Therapists", got["persona"])

	onlyBase := ld.LoadArea("Health & Wellness", "")
	assert.Equal(t, "Clinics", onlyBase["persona"])
}
