package game

import "strings"

// progressRule 单条进度启发式规则
type progressRule struct {
	phrases []string
	counter string
	delta   int
}

// 题材到进度规则的映射。匹配为不区分大小写的子串匹配，
// 粗粒度启发式而非语义理解，同一段叙事只能被应用一次。
var progressRules = map[string][]progressRule{
	"survival": {
		{phrases: []string{"you travel", "miles"}, counter: "milesTraveled", delta: 1},
		{phrases: []string{"day passes", "another day"}, counter: "daysSurvived", delta: 1},
	},
	"fantasy": {
		{phrases: []string{"artifact", "relic"}, counter: "artifactsFound", delta: 1},
	},
	"horror": {
		{phrases: []string{"clue", "evidence"}, counter: "cluesFound", delta: 1},
	},
	"mystery": {
		{phrases: []string{"clue", "evidence"}, counter: "cluesFound", delta: 1},
	},
	"sci-fi": {
		{phrases: []string{"node", "disabled"}, counter: "nodesDisabled", delta: 1},
	},
	"adventure": {
		{phrases: []string{"you progress", "closer to"}, counter: "distanceCovered", delta: 10},
	},
}

// UpdateProgress 根据叙事文本推进题材进度计数器。
// 返回更新后的副本，未知题材或无命中时内容不变。
func UpdateProgress(genre string, progress map[string]int, text string) map[string]int {
	updated := make(map[string]int, len(progress))
	for k, v := range progress {
		updated[k] = v
	}

	rules, ok := progressRules[strings.ToLower(genre)]
	if !ok {
		return updated
	}

	lower := strings.ToLower(text)
	for _, rule := range rules {
		for _, phrase := range rule.phrases {
			if strings.Contains(lower, phrase) {
				updated[rule.counter] += rule.delta
				break
			}
		}
	}

	return updated
}
