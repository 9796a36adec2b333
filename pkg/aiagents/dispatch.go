package aiagents

import (
	"context"
	"fmt"
)

// completer is the one capability dispatch needs from a provider.
type completer interface {
	complete(ctx context.Context, system, prompt string, history []memTurn) (string, error)
}

// dispatchAction maps an action to its prompt, runs the completion and
// decodes the reply. Shared by every provider so the two differ only in
// transport.
//
// Generation actions fail hard on malformed JSON so callers can fall back
// to rule-based content. NPC actions degrade to empty updates instead:
// a confused model must never stall the world.
func dispatchAction(ctx context.Context, c completer, memory *npcMemory, req Request) (map[string]any, string, error) {
	switch req.Action {
	case "generate_stores":
		arr, err := generateList(ctx, c, buildStoresPrompt(req.Context))
		if err != nil {
			return nil, "", err
		}
		return map[string]any{"stores": arr}, "", nil

	case "generate_npcs":
		arr, err := generateList(ctx, c, buildNPCsPrompt(req.Context))
		if err != nil {
			return nil, "", err
		}
		return map[string]any{"npcs": arr}, "", nil

	case "generate_items":
		arr, err := generateList(ctx, c, buildItemsPrompt(req.Context))
		if err != nil {
			return nil, "", err
		}
		return map[string]any{"items": arr}, "", nil

	case "generate_target_item":
		raw, err := c.complete(ctx, generatorSystemPrompt, buildTargetItemPrompt(req.Context), nil)
		if err != nil {
			return nil, "", err
		}
		obj := decodeObject(raw)
		if len(obj) == 0 {
			return nil, "", fmt.Errorf("target item generation returned invalid JSON")
		}
		return map[string]any{"target_item": obj}, "", nil

	case "npc_reaction":
		return npcCompletion(ctx, c, memory, req, reactionSystemPrompt, buildReactionPrompt(req.Context))

	case "npc_idle":
		return npcCompletion(ctx, c, memory, req, idleSystemPrompt, buildIdlePrompt(req.Context))
	}
	return nil, "", fmt.Errorf("unsupported action: %s", req.Action)
}

func generateList(ctx context.Context, c completer, prompt string) ([]map[string]any, error) {
	raw, err := c.complete(ctx, generatorSystemPrompt, prompt, nil)
	if err != nil {
		return nil, err
	}
	arr, ok := decodeArray(raw)
	if !ok {
		return nil, fmt.Errorf("generation returned invalid JSON")
	}
	return arr, nil
}

// npcCompletion runs an NPC prompt with that NPC's conversation memory.
// Malformed replies produce an empty update, not an error.
func npcCompletion(ctx context.Context, c completer, memory *npcMemory, req Request, system, prompt string) (map[string]any, string, error) {
	npcID, _ := req.Context["npc_id"].(string)
	var history []memTurn
	if npcID != "" {
		history = memory.history(npcID)
	}

	raw, err := c.complete(ctx, system, prompt, history)
	if err != nil {
		return nil, "", err
	}
	if npcID != "" {
		memory.remember(npcID, prompt, raw)
	}

	update := decodeObject(raw)
	reasoning, _ := update["last_ai_message"].(string)
	return update, reasoning, nil
}
