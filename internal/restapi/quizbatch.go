package restapi

import "fmt"

// quizBatchPayload builds the fixed three-question batch the simulated
// teacher posts each round: one of each quiz type the service supports.
// Content is synthetic; this is a load generator, not a correctness
// oracle.
func quizBatchPayload(lessonID, collectionID string) map[string]interface{} {
	option := func(id int, content string, isAnswer bool) map[string]interface{} {
		return map[string]interface{}{
			"option_id": id,
			"content":   content,
			"is_answer": isAnswer,
		}
	}

	quiz := func(seq int, quizType, content string, options []map[string]interface{}) map[string]interface{} {
		return map[string]interface{}{
			"img_url":       fmt.Sprintf("https://example.com/lessons/%s/quiz%d.png", lessonID, seq),
			"source_type":   "QUIZ_GENERATOR",
			"collection_id": collectionID,
			"quiz_type":     quizType,
			"content":       content,
			"seq":           seq,
			"option_list":   options,
		}
	}

	return map[string]interface{}{
		"quizzes": []map[string]interface{}{
			quiz(1, "TRUE_FALSE", "Water boils at 100°C at sea level.", []map[string]interface{}{
				option(1, "True", true),
				option(2, "False", false),
			}),
			quiz(2, "SINGLE_SELECT", "What is 2 + 2?", []map[string]interface{}{
				option(1, "3", false),
				option(2, "4", true),
				option(3, "5", false),
			}),
			quiz(3, "MULTIPLE_SELECT", "Which of these are prime numbers?", []map[string]interface{}{
				option(1, "2", true),
				option(2, "3", true),
				option(3, "4", false),
				option(4, "5", true),
			}),
		},
	}
}
