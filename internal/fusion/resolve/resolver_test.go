package resolve

import (
	"testing"
	"time"

	"github.com/nvoloshin/betfuse/internal/pkg/config"
	"github.com/nvoloshin/betfuse/internal/pkg/enums"
	"github.com/nvoloshin/betfuse/internal/pkg/models"
)

// fakeKnown is an in-memory KnownKeys for resolver tests.
type fakeKnown struct {
	keys map[string]models.MatchKey
}

func newFakeKnown(keys ...models.MatchKey) *fakeKnown {
	f := &fakeKnown{keys: make(map[string]models.MatchKey)}
	for _, k := range keys {
		f.keys[k.String()] = k
	}
	return f
}

func (f *fakeKnown) Has(key models.MatchKey) bool {
	_, ok := f.keys[key.String()]
	return ok
}

func (f *fakeKnown) KeysForSport(sport enums.Sport) []models.MatchKey {
	var out []models.MatchKey
	for _, k := range f.keys {
		if k.Sport == sport {
			out = append(out, k)
		}
	}
	return out
}

func testResolverConfig() config.ResolverConfig {
	return config.ResolverConfig{
		FuzzyEnabled:       true,
		MinTeamTokens:      1,
		AliasCacheCapacity: 64,
		AliasCacheTTL:      config.Duration(time.Hour),
	}
}

func TestResolve_OrderIndependent(t *testing.T) {
	r := New(testResolverConfig(), newFakeKnown())

	k1, _ := r.Resolve("football", "Hades", "Heist")
	k2, _ := r.Resolve("football", "Heist", "Hades")
	if k1 != k2 {
		t.Errorf("team order changed the key: %v vs %v", k1, k2)
	}
}

func TestResolve_ExactPreferred(t *testing.T) {
	existing := models.NewMatchKey(enums.Football, "hades", "heist")
	r := New(testResolverConfig(), newFakeKnown(existing))

	key, method := r.Resolve("football", "Hades", "Heist")
	if method != MethodExact {
		t.Fatalf("method = %q, want exact", method)
	}
	if key != existing {
		t.Errorf("key = %v, want %v", key, existing)
	}
}

func TestResolve_TokenSubsetMatch(t *testing.T) {
	// Existing key from a feed giving full names.
	existing := models.NewMatchKey(enums.CS, "natus vincere", "virtus pro gaming")
	r := New(testResolverConfig(), newFakeKnown(existing))

	// Another feed sends the same teams with extra qualifiers.
	key, method := r.Resolve("cs", "Natus Vincere Main", "Virtus Pro")
	if method != MethodTokenSubset {
		t.Fatalf("method = %q, want token-subset", method)
	}
	if key != existing {
		t.Errorf("key = %v, want %v", key, existing)
	}

	// Second lookup of the same pair should come from the alias cache.
	key2, method2 := r.Resolve("cs", "Natus Vincere Main", "Virtus Pro")
	if method2 != MethodAliasCache {
		t.Fatalf("second lookup method = %q, want alias-cache", method2)
	}
	if key2 != existing {
		t.Errorf("cached key = %v, want %v", key2, existing)
	}
}

func TestResolve_NoMergeOnUltraCommonOverlap(t *testing.T) {
	// Two genuinely different clubs that share only "city"-style filler.
	existing := models.NewMatchKey(enums.Football, "manchester city", "bristol rovers")
	r := New(testResolverConfig(), newFakeKnown(existing))

	key, method := r.Resolve("football", "Norwich City", "Bristol City")
	if method != MethodMinted {
		t.Fatalf("method = %q, want minted (no fuzzy merge)", method)
	}
	if key == existing {
		t.Errorf("distinct clubs merged into %v", existing)
	}
}

func TestResolve_NoMergeOnSingleTokenSide(t *testing.T) {
	existing := models.NewMatchKey(enums.Football, "rc hades", "ksk heist")
	r := New(testResolverConfig(), newFakeKnown(existing))

	// One significant token per side is below the guardrail.
	_, method := r.Resolve("football", "Hades", "Heist")
	if method != MethodMinted {
		t.Errorf("method = %q, want minted for single-token sides", method)
	}
}

func TestResolve_FuzzyKillSwitch(t *testing.T) {
	cfg := testResolverConfig()
	cfg.FuzzyEnabled = false
	existing := models.NewMatchKey(enums.CS, "natus vincere", "virtus pro gaming")
	r := New(cfg, newFakeKnown(existing))

	_, method := r.Resolve("cs", "Natus Vincere Main", "Virtus Pro")
	if method != MethodMinted {
		t.Errorf("method = %q, want minted with fuzzy disabled", method)
	}
}

func TestAliasCache_TTLAndCapacity(t *testing.T) {
	c := newAliasCache(2, time.Minute)
	now := time.Now()
	kA := models.NewMatchKey(enums.Football, "a1 a2", "b1 b2")
	kB := models.NewMatchKey(enums.Football, "c1 c2", "d1 d2")
	kC := models.NewMatchKey(enums.Football, "e1 e2", "f1 f2")

	c.put("a", kA, MethodTokenSubset, now)
	c.put("b", kB, MethodTokenSubset, now)
	c.put("c", kC, MethodTokenSubset, now) // evicts "a" (LRU)

	if _, ok := c.get("a", now); ok {
		t.Error("entry a should have been evicted by capacity")
	}
	if got, ok := c.get("b", now); !ok || got != kB {
		t.Error("entry b should still be cached")
	}

	// TTL expiry.
	later := now.Add(2 * time.Minute)
	if _, ok := c.get("b", later); ok {
		t.Error("entry b should have expired")
	}
	if c.len() != 1 { // only "c" left, "b" dropped on expired read
		t.Errorf("cache len = %d, want 1", c.len())
	}
}
