package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"
	"unicode/utf8"

	"todobot/internal/handlers/dto"
	"todobot/internal/messaging"
	"todobot/internal/service"
	"todobot/internal/timeparse"
)

const (
	listTitle       = "📋 你的 Todo 列表"
	listDescription = "按完成状态 → 优先级 → 截止日期排序"
	listColor       = 0x0099ff
	// лимиты Discord для embed
	maxCardFields     = 25
	maxFieldNameRunes = 256
	maxFieldValRunes  = 1024
	maxCardRunes      = 6000
	// запас под метку времени и служебные символы
	cardBudget = maxCardRunes - 200

	msgEmptyList      = "📭 你的 Todo 为空！"
	msgCompleteUsage  = "❌ 格式: 完成 <编号>"
	msgDeleteUsage    = "❌ 格式: 删除 <编号>"
	msgNotFound       = "❌ 未找到编号为 %d 的待办"
	msgCompleted      = "✅ 已标记 #%d「%s」为完成"
	msgDeleted        = "🗑 已删除 #%d「%s」"
	msgAlreadyDone    = "ℹ️ #%d 已经是完成状态"
	msgDialogueActive = "⚠️ 你已经在添加一个任务了，请先完成或输入“取消”。"
	msgStoreFailure   = "❌ 操作失败，请稍后再试。"

	helpText = "**Todo 机器人用法**\n" +
		"• `添加` / `add` 添加任务（按提示输入名称、截止时间、优先级）\n" +
		"• `列表` / `list` 查看你的任务\n" +
		"• `完成 <编号>` / `done <编号>` 标记完成\n" +
		"• `删除 <编号>` / `delete <编号>` 删除任务\n" +
		"• 添加过程中输入 `取消` / `cancel` 退出\n" +
		"截止时间示例：今天、明天下午3点、今晚11:30、2026-01-15 18:30、无"
)

// listCards раскладывает задачи по карточкам с учетом лимитов Discord:
// не больше maxCardFields полей и cardBudget символов в одной карточке.
func listCards(tasks []service.RankedTask, now time.Time) []messaging.Card {
	views := dto.FromTaskList(tasks)

	newCard := func() messaging.Card {
		return messaging.Card{
			Title:       listTitle,
			Description: listDescription,
			Color:       listColor,
			Timestamp:   now,
		}
	}
	header := utf8.RuneCountInString(listTitle) + utf8.RuneCountInString(listDescription)

	var cards []messaging.Card
	card, used := newCard(), header
	for _, v := range views {
		field := taskField(v)
		size := utf8.RuneCountInString(field.Name) + utf8.RuneCountInString(field.Value)

		if len(card.Fields) > 0 && (len(card.Fields) == maxCardFields || used+size > cardBudget) {
			cards = append(cards, card)
			card, used = newCard(), header
		}
		card.Fields = append(card.Fields, field)
		used += size
	}
	if len(card.Fields) > 0 {
		cards = append(cards, card)
	}
	return cards
}

func taskField(v dto.TaskView) messaging.CardField {
	value := fmt.Sprintf("编号: %d | 优先级: %s", v.Rank, v.Priority)
	if v.Deadline != timeparse.Placeholder {
		value += " | 截止: " + v.Deadline
	}
	return messaging.CardField{
		Name:  truncate(v.Marker()+" "+v.Name, maxFieldNameRunes),
		Value: truncate(value, maxFieldValRunes),
	}
}

// truncate обрезает строку до limit рун, последняя руна заменяется на "…".
func truncate(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit-1]) + "…"
}

func responseWithJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(payload)
}
