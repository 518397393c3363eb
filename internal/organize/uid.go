package organize

import (
	"fmt"
	"hash/fnv"
	"strings"
)

// UIDGenerator creates stable-ish identifiers from source labels and resolves
// collisions. A generated UID shape is "<slug>-<hash>" (or "<slug>-<hash>-N"
// on collision).
type UIDGenerator struct {
	used    map[string]struct{}
	counter map[string]int
	byKey   map[string]string
}

// NewUIDGenerator creates a generator with optional pre-reserved UIDs.
func NewUIDGenerator(existing ...string) *UIDGenerator {
	g := &UIDGenerator{
		used:    make(map[string]struct{}, len(existing)+8),
		counter: make(map[string]int, len(existing)+8),
		byKey:   make(map[string]string, len(existing)+8),
	}
	for _, uid := range existing {
		uid = strings.TrimSpace(uid)
		if uid == "" {
			continue
		}
		g.used[uid] = struct{}{}
	}
	return g
}

// Generate returns a unique UID for label.
func (g *UIDGenerator) Generate(label string) string {
	if g == nil {
		g = NewUIDGenerator()
	}
	base := baseUID(label)
	if _, ok := g.used[base]; !ok {
		g.used[base] = struct{}{}
		g.counter[base] = 1
		return base
	}
	n := g.counter[base]
	if n < 1 {
		n = 1
	}
	for {
		n++
		candidate := fmt.Sprintf("%s-%d", base, n)
		if _, exists := g.used[candidate]; exists {
			continue
		}
		g.used[candidate] = struct{}{}
		g.counter[base] = n
		return candidate
	}
}

// GenerateForKey returns a stable UID for a logical key.
// If the same key is passed again, the previously generated UID is returned.
func (g *UIDGenerator) GenerateForKey(key, label string) string {
	if g == nil {
		g = NewUIDGenerator()
	}
	key = strings.TrimSpace(key)
	if key != "" {
		if uid, ok := g.byKey[key]; ok {
			return uid
		}
	}
	uid := g.Generate(label)
	if key != "" {
		g.byKey[key] = uid
	}
	return uid
}

func baseUID(label string) string {
	label = strings.TrimSpace(label)
	slug := Slugify(label)
	if slug == "" {
		slug = "cluster"
	}
	return fmt.Sprintf("%s-%s", slug, shortHashHex(label))
}

func shortHashHex(s string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(s))
	sum := h.Sum64()
	return fmt.Sprintf("%08x", uint32(sum&0xffffffff))
}

// Slugify lowercases a label and replaces every run of characters outside
// [a-z0-9] with a single dash. Identifiers stay pure ASCII; non-Latin labels
// fall through to the hash suffix for distinctness.
func Slugify(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	var b strings.Builder
	lastDash := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	return strings.Trim(b.String(), "-")
}
