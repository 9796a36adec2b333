package world

// Item is an inventory record. Items live inside entity property bags:
// players carry an ordered list under "inventory", NPCs and stores carry a
// map from item id to record under the same key. An item resides in exactly
// one inventory at a time; trades, purchases and thefts move the record.
type Item struct {
	ItemID    string  `json:"item_id"`
	Name      string  `json:"name"`
	Value     float64 `json:"value"`
	Rarity    string  `json:"rarity,omitempty"`
	Tradeable bool    `json:"tradeable,omitempty"`
}

// AsMap renders the item in the open-properties representation.
func (it Item) AsMap() map[string]any {
	m := map[string]any{
		"item_id": it.ItemID,
		"name":    it.Name,
		"value":   it.Value,
	}
	if it.Rarity != "" {
		m["rarity"] = it.Rarity
	}
	if it.Tradeable {
		m["tradeable"] = true
	}
	return m
}

// ItemFromAny decodes an item record from the property-bag representation.
func ItemFromAny(v any) (Item, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return Item{}, false
	}
	it := Item{}
	it.ItemID, _ = m["item_id"].(string)
	it.Name, _ = m["name"].(string)
	if val, ok := toFloat(m["value"]); ok {
		it.Value = val
	}
	it.Rarity, _ = m["rarity"].(string)
	it.Tradeable, _ = m["tradeable"].(bool)
	if it.ItemID == "" {
		return Item{}, false
	}
	return it, true
}

// InventoryMap reads a keyed inventory (NPC/store form) from an entity.
// Returns an empty map when the property is absent or malformed.
func InventoryMap(e *Entity) map[string]Item {
	out := make(map[string]Item)
	raw, ok := e.Properties["inventory"].(map[string]any)
	if !ok {
		return out
	}
	for id, v := range raw {
		if it, ok := ItemFromAny(v); ok {
			out[id] = it
		}
	}
	return out
}

// InventoryList reads an ordered inventory (player form) from an entity.
func InventoryList(e *Entity) []Item {
	raw, ok := e.Properties["inventory"].([]any)
	if !ok {
		return nil
	}
	items := make([]Item, 0, len(raw))
	for _, v := range raw {
		if it, ok := ItemFromAny(v); ok {
			items = append(items, it)
		}
	}
	return items
}

// RemoveFromInventoryMap deletes one item from a keyed inventory in place.
// Returns the removed item and whether it was present.
func RemoveFromInventoryMap(e *Entity, itemID string) (Item, bool) {
	raw, ok := e.Properties["inventory"].(map[string]any)
	if !ok {
		return Item{}, false
	}
	v, ok := raw[itemID]
	if !ok {
		return Item{}, false
	}
	it, ok := ItemFromAny(v)
	if !ok {
		return Item{}, false
	}
	delete(raw, itemID)
	return it, true
}

// AddToInventoryMap inserts an item into a keyed inventory, creating the
// bag when missing.
func AddToInventoryMap(e *Entity, it Item) {
	raw, ok := e.Properties["inventory"].(map[string]any)
	if !ok {
		raw = make(map[string]any)
		e.Properties["inventory"] = raw
	}
	raw[it.ItemID] = it.AsMap()
}

// AppendToInventoryList appends an item to an ordered inventory.
func AppendToInventoryList(e *Entity, it Item) {
	raw, _ := e.Properties["inventory"].([]any)
	e.Properties["inventory"] = append(raw, it.AsMap())
}

// RemoveFromInventoryList removes the first item with the given id from an
// ordered inventory. Returns the removed item and whether it was present.
func RemoveFromInventoryList(e *Entity, itemID string) (Item, bool) {
	raw, ok := e.Properties["inventory"].([]any)
	if !ok {
		return Item{}, false
	}
	for i, v := range raw {
		it, ok := ItemFromAny(v)
		if !ok || it.ItemID != itemID {
			continue
		}
		e.Properties["inventory"] = append(raw[:i:i], raw[i+1:]...)
		return it, true
	}
	return Item{}, false
}
