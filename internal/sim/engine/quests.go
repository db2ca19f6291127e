package engine

import "bigharvest.farm/internal/sim/catalogs"

func (e *Engine) advanceQuests(now int64, t catalogs.Trigger, id string) {
	for _, def := range e.cats.Quests.Defs {
		if !def.Matches(t, id) {
			continue
		}
		q := e.st.Quest(def.ID)
		if q == nil || q.Completed {
			continue
		}
		q.Progress++
		if q.Progress >= def.Target {
			q.Progress = def.Target
			q.Completed = true
			e.emit(now, "QUEST_COMPLETED", "quest_id", def.ID)
		}
	}
}

// ClaimQuestReward pays a completed quest's reward exactly once.
func (e *Engine) ClaimQuestReward(now int64, questID string) error {
	def, ok := e.cats.Quest(questID)
	if !ok {
		ids := make([]string, 0, len(e.cats.Quests.Defs))
		for _, d := range e.cats.Quests.Defs {
			ids = append(ids, d.ID)
		}
		return ErrUnknownQuest.withHint(catalogs.Suggest(questID, ids))
	}
	q := e.st.Quest(def.ID)
	if q == nil || !q.Completed {
		return ErrQuestIncomplete
	}
	if q.RewardClaimed {
		return ErrRewardClaimed
	}
	q.RewardClaimed = true
	e.earn(def.RewardMoney)
	e.emit(now, "QUEST_CLAIMED", "quest_id", def.ID, "money", def.RewardMoney, "xp", def.RewardXP)
	e.addXP(now, def.RewardXP)
	return nil
}
