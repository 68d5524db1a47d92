package constants

import "time"

const (
	DefaultAdvisorBaseURL           = "https://openrouter.ai/api/v1"
	DefaultAdvisorModel             = "deepseek/deepseek-chat-v3.1:free"
	DefaultAdvisorDailyQuota        = 5
	DefaultAdvisorRequestsPerMinute = 10
	DefaultAdvisorTimeout           = 20 * time.Second
	AdvisorAdviceMaxTokens          = 300
	AdvisorSuggestionMaxTokens      = 500
	AdvisorTemperature              = 0.7
	DefaultSuggestionTitle          = "New habit"
)
