// Package scenario defines the scenario template catalog and the lifecycle
// of running instances created from templates. Templates describe rules and
// generation constraints; the Generator fills in the concrete world.
package scenario

// HazardSpec is a fixed danger zone placed at instance creation.
type HazardSpec struct {
	ID     string  `json:"id"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
	Damage float64 `json:"damage"`
}

// ExitSpec is a fixed goal zone placed at instance creation.
type ExitSpec struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Radius float64 `json:"radius"`
}

// Template defines a scenario type and its generation constraints. A
// template with Generated=true gets its stores, NPCs and items from the
// scenario_generator role; static templates carry their world layout
// directly.
type Template struct {
	ScenarioID  string   `json:"scenario_id"`
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Rules       string   `json:"rules"`
	Objectives  []string `json:"objectives"`
	Difficulty  string   `json:"difficulty"`

	WorldWidth  float64 `json:"world_width"`
	WorldHeight float64 `json:"world_height"`
	MaxTurns    int     `json:"max_turns"`

	StartingGold     float64    `json:"starting_gold"`
	StartingPosition [2]float64 `json:"starting_position"`

	AllowedActions []string `json:"allowed_actions"`

	// Generation constraints, used when Generated is true.
	Generated         bool     `json:"generated"`
	NumStores         [2]int   `json:"num_stores,omitempty"`
	NumNPCs           [2]int   `json:"num_npcs,omitempty"`
	NumItems          [2]int   `json:"num_items,omitempty"`
	PossibleNPCJobs   []string `json:"possible_npc_jobs,omitempty"`
	EnvironmentThemes []string `json:"environment_themes,omitempty"`

	// Static layout, used when Generated is false.
	Hazards []HazardSpec `json:"hazards,omitempty"`
	Exit    *ExitSpec    `json:"exit,omitempty"`
}

var marketSquareTemplate = Template{
	ScenarioID: "market_square",
	Name:       "Dynamic Market Acquisition",
	Description: "An AI-generated market with unique stores, NPCs and items each time. " +
		"Acquire the target item by negotiation, trade, hiring or theft. " +
		"No two markets are the same.",
	Rules: "Each action consumes 1 turn. NPCs are AI-driven with personalities and trust. " +
		"Theft success depends on nearby guards. Trades must benefit both parties. " +
		"Prices follow each store's pricing multiplier.",
	Objectives: []string{
		"Obtain the target item specified in the scenario",
		"Minimize gold spent",
		"Build strategic relationships with key NPCs",
	},
	Difficulty:       "medium",
	WorldWidth:       800,
	WorldHeight:      600,
	MaxTurns:         150,
	StartingGold:     500,
	StartingPosition: [2]float64{400, 300},
	AllowedActions: []string{
		"move", "observe", "talk", "negotiate", "buy", "hire", "steal", "trade", "interact",
	},
	Generated: true,
	NumStores: [2]int{3, 6},
	NumNPCs:   [2]int{4, 8},
	NumItems:  [2]int{10, 20},
	PossibleNPCJobs: []string{
		"shopkeeper", "guard", "thief", "merchant", "information_broker", "fence",
	},
	EnvironmentThemes: []string{"urban_market", "merchant_district", "bustling"},
}

var mazeTemplate = Template{
	ScenarioID:  "maze_01",
	Name:        "Simple Maze",
	Description: "Navigate to the exit without hitting hazards.",
	Rules: "Move in 4 directions. Each move costs 1 turn. " +
		"Hazards damage you; reaching the exit completes the run.",
	Objectives: []string{
		"Reach the exit without hitting any hazards",
		"Complete in minimum turns",
	},
	Difficulty:       "easy",
	WorldWidth:       400,
	WorldHeight:      300,
	MaxTurns:         50,
	StartingPosition: [2]float64{50, 50},
	AllowedActions:   []string{"move", "observe", "interact"},
	Hazards: []HazardSpec{
		{ID: "hazard_1", X: 100, Y: 100, Radius: 30, Damage: 10},
		{ID: "hazard_2", X: 200, Y: 150, Radius: 30, Damage: 10},
		{ID: "hazard_3", X: 150, Y: 250, Radius: 30, Damage: 10},
	},
	Exit: &ExitSpec{X: 350, Y: 250, Radius: 25},
}

var treasureTemplate = Template{
	ScenarioID:  "treasure_01",
	Name:        "Treasure Hunt",
	Description: "Collect items strategically while avoiding hazards, then escape.",
	Rules: "Observe your surroundings. Items grant score. Hazards deal damage. " +
		"Escape through the exit within the turn limit.",
	Objectives: []string{
		"Maximize score collected",
		"Avoid hazards",
		"Escape within the turn limit",
	},
	Difficulty:       "medium",
	WorldWidth:       500,
	WorldHeight:      400,
	MaxTurns:         100,
	StartingPosition: [2]float64{50, 50},
	AllowedActions:   []string{"move", "observe", "interact"},
	Hazards: []HazardSpec{
		{ID: "hazard_1", X: 150, Y: 150, Radius: 40, Damage: 15},
		{ID: "hazard_2", X: 300, Y: 200, Radius: 40, Damage: 15},
		{ID: "hazard_3", X: 250, Y: 300, Radius: 40, Damage: 15},
	},
	Exit: &ExitSpec{X: 450, Y: 350, Radius: 25},
}

var templates = map[string]*Template{
	marketSquareTemplate.ScenarioID: &marketSquareTemplate,
	mazeTemplate.ScenarioID:         &mazeTemplate,
	treasureTemplate.ScenarioID:     &treasureTemplate,
}

var templateOrder = []string{"market_square", "maze_01", "treasure_01"}

// GetTemplate returns the template with the given id.
func GetTemplate(scenarioID string) (*Template, bool) {
	t, ok := templates[scenarioID]
	return t, ok
}

// AllTemplates returns every available template in catalog order.
func AllTemplates() []*Template {
	out := make([]*Template, 0, len(templateOrder))
	for _, id := range templateOrder {
		out = append(out, templates[id])
	}
	return out
}

// TemplateExists reports whether a template id is in the catalog.
func TemplateExists(scenarioID string) bool {
	_, ok := templates[scenarioID]
	return ok
}
