package gateway

import "fmt"

const analyzePrompt = `You are an expert in first-principles thinking. Analyze this problem: "%s"
Provide structured analysis with:
1. Problem Domain: What category does this belong to?
2. Fundamental Elements: 4-5 core components that drive this problem
3. Hidden Assumptions: 2-3 assumptions the person might not realize they're making
4. Key Questions: 3 specific questions to help them think deeper
Be practical and specific. Format your response clearly.`

const challengePrompt = `Challenge this assumption: "%s"
In the context of: "%s"
Generate 2-3 thought-provoking questions that:
- Question why this assumption exists
- Explore what would happen if it weren't true
- Suggest alternative perspectives
Be specific and practical.`

const solutionsPrompt = `Using first-principles thinking, generate creative solutions for: "%s"
Given these facts: %s
And these key elements: %s
Suggest 3-4 unconventional approaches that:
1. Question the problem definition
2. Eliminate unnecessary constraints
3. Recombine elements in new ways
4. Draw inspiration from other domains
Be specific and actionable.`

// Arguments are interpolated as-is; user text is never escaped.

// AnalyzePrompt builds the first-principles analysis prompt.
func AnalyzePrompt(problem string) string {
	return fmt.Sprintf(analyzePrompt, problem)
}

// ChallengePrompt builds the assumption challenge prompt.
func ChallengePrompt(assumption, problemContext string) string {
	return fmt.Sprintf(challengePrompt, assumption, problemContext)
}

// SolutionsPrompt builds the creative solutions prompt.
func SolutionsPrompt(problem, facts, elements string) string {
	return fmt.Sprintf(solutionsPrompt, problem, facts, elements)
}
