package names

import (
	"math/rand/v2"
	"sync"
)

// LegacyPlaceholder is the name records received before names were generated.
const LegacyPlaceholder = "Untitled"

var adjectives = []string{
	"Ashen", "Brave", "Crimson", "Dusky", "Ember", "Feral", "Gilded", "Hollow",
	"Iron", "Jade", "Keen", "Lunar", "Mossy", "Noble", "Obsidian", "Pale",
	"Quiet", "Rusty", "Silent", "Thorned", "Umber", "Vile", "Wild", "Young",
}

var nouns = []string{
	"Archer", "Bandit", "Cleric", "Druid", "Empress", "Friar", "Golem", "Herald",
	"Imp", "Jester", "Knight", "Lich", "Mage", "Nomad", "Ogre", "Paladin",
	"Ranger", "Sentinel", "Troll", "Warden", "Wraith", "Wyvern", "Yeti", "Zealot",
}

// Generator produces two-word names such as "Mossy Warden". It is safe for
// concurrent use.
type Generator struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewGenerator returns a deterministic generator for the given seed.
func NewGenerator(seed uint64) *Generator {
	return &Generator{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

func (g *Generator) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()

	return adjectives[g.rnd.IntN(len(adjectives))] + " " + nouns[g.rnd.IntN(len(nouns))]
}

var defaultGenerator = &Generator{rnd: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))}

// Random returns a name from the process-wide generator.
func Random() string {
	return defaultGenerator.Next()
}
