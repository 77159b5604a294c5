package conversation

const (
	promptName         = "📝 请告诉我任务名称：（随时输入“取消”退出）"
	promptEmptyName    = "❌ 任务名称不能为空，请重新输入："
	promptDeadline     = "⏰ 请告诉我截止时间，或者输入“无”"
	promptPriority     = "⭐ 请设置优先级（高 / 中 / 低），默认中"
	noticeCancelled    = "🚫 已取消添加。"
	noticeTimedOut     = "⌛ 等待超时，已取消添加。"
	noticeStoreFailure = "❌ 保存失败，请稍后再试。"

	deadlineHelp = "❌ 无法识别的时间格式。可以这样写：\n" +
		"• 今天 / 明天 / 后天\n" +
		"• 明天下午3点、今晚11:30、tomorrow 9\n" +
		"• 2026-01-15 或 2026/01/15 18:30\n" +
		"• 无（不设截止时间）\n" +
		"请重新输入："
)
