package http

import "github.com/devinterview/collab/backend/model"

// Built-in question bank, keyed by language then level.
var questionBank = map[string]map[string][]model.Question{
	"python": {
		"junior": {
			{ID: "py-1", Title: "Reverse String", Difficulty: "easy", Category: "Strings"},
			{ID: "py-2", Title: "FizzBuzz", Difficulty: "easy", Category: "Basics"},
			{ID: "py-3", Title: "Two Sum", Difficulty: "medium", Category: "Arrays"},
		},
		"senior": {
			{ID: "py-4", Title: "LRU Cache", Difficulty: "hard", Category: "Design"},
			{ID: "py-5", Title: "Merge K Sorted Lists", Difficulty: "hard", Category: "Heaps"},
			{ID: "py-6", Title: "Word Ladder", Difficulty: "medium", Category: "Graphs"},
		},
	},
	"javascript": {
		"junior": {
			{ID: "js-1", Title: "Closures", Difficulty: "easy", Category: "Functions"},
			{ID: "js-2", Title: "Debounce", Difficulty: "medium", Category: "Async"},
		},
		"senior": {
			{ID: "js-3", Title: "Event Loop Ordering", Difficulty: "medium", Category: "Async"},
			{ID: "js-4", Title: "Implement Promise.all", Difficulty: "hard", Category: "Async"},
		},
	},
	"go": {
		"junior": {
			{ID: "go-1", Title: "Word Count", Difficulty: "easy", Category: "Maps"},
		},
		"senior": {
			{ID: "go-2", Title: "Worker Pool", Difficulty: "medium", Category: "Concurrency"},
			{ID: "go-3", Title: "Rate Limiter", Difficulty: "hard", Category: "Concurrency"},
		},
	},
}

func questionsFor(language, level string) []model.Question {
	levels, ok := questionBank[language]
	if !ok {
		return []model.Question{}
	}
	if qs, ok := levels[level]; ok {
		return qs
	}
	// unknown level: hand back everything for the language
	var all []model.Question
	for _, qs := range levels {
		all = append(all, qs...)
	}
	return all
}
