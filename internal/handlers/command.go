package handlers

import "strings"

type Command int

const (
	CommandNone Command = iota
	CommandHelp
	CommandAdd
	CommandList
	CommandComplete
	CommandDelete
)

var commandWords = map[string]Command{
	"帮助":       CommandHelp,
	"help":     CommandHelp,
	"?":        CommandHelp,
	"？":        CommandHelp,
	"添加":       CommandAdd,
	"add":      CommandAdd,
	"列表":       CommandList,
	"list":     CommandList,
	"完成":       CommandComplete,
	"done":     CommandComplete,
	"complete": CommandComplete,
	"删除":       CommandDelete,
	"delete":   CommandDelete,
	"del":      CommandDelete,
	"rm":       CommandDelete,
}

func (c Command) String() string {
	switch c {
	case CommandHelp:
		return "help"
	case CommandAdd:
		return "add"
	case CommandList:
		return "list"
	case CommandComplete:
		return "complete"
	case CommandDelete:
		return "delete"
	default:
		return "none"
	}
}

// Classify определяет команду по первому слову сообщения без учёта регистра.
// Остальные слова возвращаются как аргументы.
func Classify(content string) (Command, []string) {
	fields := strings.Fields(content)
	if len(fields) == 0 {
		return CommandNone, nil
	}

	cmd, ok := commandWords[strings.ToLower(fields[0])]
	if !ok {
		return CommandNone, nil
	}
	return cmd, fields[1:]
}
