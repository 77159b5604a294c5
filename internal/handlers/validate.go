package handlers

import "strconv"

// parseRank читает номер задачи из первого аргумента команды.
func parseRank(args []string) (int, bool) {
	if len(args) == 0 {
		return 0, false
	}
	rank, err := strconv.Atoi(args[0])
	if err != nil || rank < 1 {
		return 0, false
	}
	return rank, true
}
