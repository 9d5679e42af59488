package clarify

import (
	"strings"
	"unicode"

	"github.com/benvon/smart-autotrader/internal/models"
)

var topicKeywords = map[models.Topic][]string{
	models.TopicBudget:      {"budget", "afford", "cost", "cheap", "cheaper", "expensive", "money", "spend", "price", "pay"},
	models.TopicPerformance: {"fast", "speed", "power", "powerful", "performance", "horsepower", "hp", "quick", "sporty", "acceleration"},
	models.TopicFamily:      {"family", "kids", "children", "child", "seats", "seater", "space", "room", "luggage"},
	models.TopicEfficiency:  {"economy", "economical", "efficient", "efficiency", "mpg", "consumption", "eco", "green", "emissions"},
	models.TopicReliability: {"reliable", "reliability", "dependable", "warranty", "trustworthy"},
	models.TopicDriving:     {"drive", "driving", "gears", "gearbox", "clutch", "commute", "manual", "automatic"},
}

// DetectTopics returns the topics an utterance touches, by keyword.
func DetectTopics(utterance string) models.TopicFlags {
	words := strings.FieldsFunc(strings.ToLower(utterance), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(words))
	for _, w := range words {
		seen[w] = struct{}{}
	}

	var flags models.TopicFlags
	for topic, keywords := range topicKeywords {
		for _, k := range keywords {
			if _, ok := seen[k]; ok {
				flags = flags.With(topic)
				break
			}
		}
	}
	return flags
}
