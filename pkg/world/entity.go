package world

// EntityType values recognized by the engine. AI-generated worlds may add
// arbitrary further types; the generic interact action covers those.
const (
	TypeAgent  = "agent"
	TypeNPC    = "npc"
	TypeStore  = "store"
	TypeHazard = "hazard"
	TypeExit   = "exit"
)

// Entity is one object in the world: a player agent, an NPC, a store, a
// hazard, an exit, or any AI-generated type. Recognized property keys are
// accessed through the typed helpers below; everything else stays in the
// open Properties bag.
type Entity struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	X          float64        `json:"x"`
	Y          float64        `json:"y"`
	Properties map[string]any `json:"properties"`
}

// NewEntity creates an entity with a non-nil properties bag.
func NewEntity(id, entityType string, x, y float64, props map[string]any) *Entity {
	if props == nil {
		props = make(map[string]any)
	}
	return &Entity{ID: id, Type: entityType, X: x, Y: y, Properties: props}
}

// FloatProp returns a numeric property, tolerating the int/float64 mix that
// JSON decoding and in-process construction produce.
func (e *Entity) FloatProp(key string, fallback float64) float64 {
	if v, ok := toFloat(e.Properties[key]); ok {
		return v
	}
	return fallback
}

// StringProp returns a string property or fallback when absent.
func (e *Entity) StringProp(key, fallback string) string {
	if v, ok := e.Properties[key].(string); ok {
		return v
	}
	return fallback
}

// Health returns the agent health property (players start at 100).
func (e *Entity) Health() float64 { return e.FloatProp("health", 0) }

// Gold returns the gold property.
func (e *Entity) Gold() float64 { return e.FloatProp("gold", 0) }

// Trust returns the NPC trust property clamped to [0,1].
func (e *Entity) Trust() float64 {
	return clamp(e.FloatProp("trust", 0.5), 0, 1)
}

// PricingMultiplier returns the NPC/store pricing multiplier, never below 1.
func (e *Entity) PricingMultiplier() float64 {
	m := e.FloatProp("pricing_multiplier", 1.0)
	if m < 1.0 {
		return 1.0
	}
	return m
}

// DistanceTo returns the euclidean distance to another entity.
func (e *Entity) DistanceTo(other *Entity) float64 {
	return distance(e.X, e.Y, other.X, other.Y)
}

// clone returns a deep copy safe to hand outside the state lock.
func (e *Entity) clone() *Entity {
	return &Entity{
		ID:         e.ID,
		Type:       e.Type,
		X:          e.X,
		Y:          e.Y,
		Properties: deepCopyMap(e.Properties),
	}
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func deepCopyMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = deepCopyValue(v)
	}
	return out
}

func deepCopyValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return deepCopyMap(t)
	case []any:
		cp := make([]any, len(t))
		for i, e := range t {
			cp[i] = deepCopyValue(e)
		}
		return cp
	default:
		return v
	}
}
