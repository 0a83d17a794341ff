package actor

import (
	"math/rand"

	"classload/pkg/types"
)

// syntheticAnswers produces an answer for every question in the fetched
// set. Answer content is synthetic per quiz type and not derived from
// question semantics; the harness generates load, it does not grade.
func syntheticAnswers(content *types.QuizContent, rng *rand.Rand) []types.QuizAnswer {
	answers := make([]types.QuizAnswer, 0, len(content.Quizzes))

	for _, quiz := range content.Quizzes {
		optionCount := len(quiz.OptionList)
		var data []int

		switch quiz.QuizType {
		case types.QuizTypeTrueFalse:
			data = []int{1 + rng.Intn(2)}
		case types.QuizTypeSingleSelect:
			if optionCount > 0 {
				data = []int{1 + rng.Intn(optionCount)}
			}
		case types.QuizTypeMultipleSelect:
			limit := optionCount
			if limit > 3 {
				limit = 3
			}
			if optionCount > 0 {
				picks := rng.Intn(limit + 1)
				for _, idx := range rng.Perm(optionCount)[:picks] {
					data = append(data, idx+1)
				}
			}
		}

		answers = append(answers, types.QuizAnswer{QuizID: quiz.QuizID, AnswerData: data})
	}

	return answers
}
