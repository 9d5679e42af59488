package conversation

import (
	"strings"
	"time"
	"unicode"

	"github.com/benvon/smart-autotrader/internal/models"
)

// TurnType is how an utterance relates to the conversation so far.
type TurnType string

const (
	TurnNewQuery            TurnType = "new_query"
	TurnFollowUp            TurnType = "follow_up"
	TurnClarificationAnswer TurnType = "clarification_answer"
)

const (
	shortUtteranceWords = 4
	recentTurnWindow    = 2 * time.Minute
)

var followUpIndicators = []string{
	"instead", "also", "actually", "what about", "how about", "but", "rather", "and", "too",
	"cheaper", "newer", "more", "less", "only", "just", "except", "without",
}

var pronounReferences = map[string]struct{}{
	"it": {}, "that": {}, "those": {}, "them": {}, "one": {}, "ones": {}, "this": {}, "these": {},
}

// ClassifyTurn decides whether utterance continues the session. Any one of
// a short utterance, an indicator word, a pronoun reference or a recent
// previous turn makes it a follow-up; a follow-up while a question is
// pending is an answer to that question. The first message of a session is
// always a new query.
func ClassifyTurn(cc *models.ConversationContext, utterance string, now time.Time) TurnType {
	if cc.MessageCount == 0 {
		return TurnNewQuery
	}
	if !isFollowUp(cc, utterance, now) {
		return TurnNewQuery
	}
	if len(cc.PendingClarification) > 0 || cc.LastQuestionAskedByAI != "" {
		return TurnClarificationAnswer
	}
	return TurnFollowUp
}

func isFollowUp(cc *models.ConversationContext, utterance string, now time.Time) bool {
	words := splitWords(utterance)
	if len(words) <= shortUtteranceWords {
		return true
	}

	padded := " " + strings.Join(words, " ") + " "
	for _, indicator := range followUpIndicators {
		if strings.Contains(padded, " "+indicator+" ") {
			return true
		}
	}
	for _, w := range words {
		if _, ok := pronounReferences[w]; ok {
			return true
		}
	}

	return !cc.LastInteraction.IsZero() && now.Sub(cc.LastInteraction) < recentTurnWindow
}

func splitWords(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '\''
	})
}

// clarificationQuery prefixes an answer with the subject of the question it
// answers so the extractor sees both.
func clarificationQuery(cc *models.ConversationContext, utterance string) string {
	if len(cc.PendingClarification) == 0 {
		if cc.LastUserIntent == "" {
			return utterance
		}
		return cc.LastUserIntent + " " + utterance
	}
	fields := make([]string, len(cc.PendingClarification))
	for i, f := range cc.PendingClarification {
		fields[i] = string(f)
	}
	subject := strings.TrimSpace(cc.LastUserIntent)
	answering := "(answering: " + strings.Join(fields, ", ") + ")"
	if subject == "" {
		return answering + " " + utterance
	}
	return subject + " " + answering + " " + utterance
}
