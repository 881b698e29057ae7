package seed

import (
	"time"

	"voice-agent-go/internal/types"
)

// DefaultKnowledge is served when no workbook is configured.
func DefaultKnowledge() []types.CreateKnowledge {
	return []types.CreateKnowledge{
		{Question: "What are your business hours?", Answer: "TechFlow Solutions support is available 24/7."},
		{Question: "What is your website?", Answer: "You can find us at www.techflow.example.com."},
		{Question: "How do I reset my password?", Answer: "On the sign-in page choose Forgot password, then follow the link we email you. The link expires after one hour."},
		{Question: "How do I contact billing?", Answer: "Billing questions go to billing@techflow.example.com and are answered within one business day."},
	}
}

// DefaultHelpRequests is one request in each state, created relative to now.
func DefaultHelpRequests(now time.Time) []types.HelpRequest {
	alice, bob, charlie := "Alice Smith", "Bob Jones", "Charlie Brown"
	aliceCtx := "User is asking about password reset procedure."
	bobCtx := "User wants to know opening times."
	charlieCtx := "User is frustrated."
	bobAnswer := "We are open 9am to 5pm, Monday to Friday."
	resolvedAt := now
	timeoutAt := now
	return []types.HelpRequest{
		{
			CallerPhone: "+15550101",
			CallerName:  &alice,
			Question:    "How do I reset my password?",
			Context:     &aliceCtx,
			Status:      types.StatusPending,
			CreatedAt:   now,
		},
		{
			CallerPhone:      "+15550102",
			CallerName:       &bob,
			Question:         "What are your business hours?",
			Context:          &bobCtx,
			Status:           types.StatusResolved,
			SupervisorAnswer: &bobAnswer,
			ResolvedAt:       &resolvedAt,
			CreatedAt:        now.Add(-24 * time.Hour),
		},
		{
			CallerPhone: "+15550103",
			CallerName:  &charlie,
			Question:    "Can I speak to a human?",
			Context:     &charlieCtx,
			Status:      types.StatusTimeout,
			TimeoutAt:   &timeoutAt,
			CreatedAt:   now.Add(-2 * time.Hour),
		},
	}
}
