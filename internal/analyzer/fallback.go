package analyzer

import (
	"fmt"

	"github.com/MrWong99/phonoscore/pkg/align"
)

// NativeThreshold is the accuracy at or above which a fallback analysis
// considers the attempt understandable to a native listener.
const NativeThreshold = 70.0

// maxFallbackIssues caps the issues a fallback analysis lists.
const maxFallbackIssues = 5

const (
	levelIntermediate = "Intermediate"
	levelBeginner     = "Beginner"
	confidenceLow     = "Low"
)

// Fallback derives a deterministic analysis from the local alignment res of
// req. cause, when non-nil, is recorded as the reason the model was not used.
// A silent request yields an analysis in which every target phoneme is
// missing, mirroring the local score of 0.
func Fallback(req Request, res align.Result, cause error) *Analysis {
	var a *Analysis
	if req.Silent() {
		a = silentFallback(req)
	} else {
		a = scoredFallback(res)
	}
	if cause != nil {
		a.Error = cause.Error()
	}
	return a
}

func silentFallback(req Request) *Analysis {
	comparison := make([]Commentary, len(req.Target))
	for i, t := range req.Target {
		comparison[i] = Commentary{
			Position: i + 1,
			Target:   t,
			Status:   string(align.StatusMissing),
			Feedback: "Not pronounced",
		}
	}
	return &Analysis{
		OverallFeedback:      "No audio detected - please try recording again",
		NativeUnderstandable: false,
		Intelligibility:      levelBeginner,
		Confidence:           confidenceLow,
		Comparison:           comparison,
		Issues: []Issue{{
			Phoneme:    "all",
			Issue:      "No audio detected or silent recording",
			Suggestion: "Please check your microphone and try recording again",
		}},
		Tips: []string{
			"Ensure your microphone is working properly",
			"Speak clearly and at normal volume",
			"Check recording permissions",
		},
		Method: MethodFallbackMute,
	}
}

func scoredFallback(res align.Result) *Analysis {
	native := res.Accuracy >= NativeThreshold
	level := levelBeginner
	if native {
		level = levelIntermediate
	}

	strengths := []string{"Pronunciation attempt recorded"}
	if n := res.Statistics.Correct; n > 0 {
		strengths = append(strengths, fmt.Sprintf("%d of %d phonemes pronounced correctly", n, res.Statistics.TotalTarget))
	}

	issues := pairIssues(res.Pairs)
	if len(issues) == 0 && res.Accuracy < 100 {
		issues = []Issue{{
			Phoneme:    "general",
			Issue:      "Detailed analysis unavailable",
			Suggestion: "Continue practicing pronunciation",
		}}
	}

	return &Analysis{
		OverallFeedback:      fmt.Sprintf("Basic analysis: %.1f%% accuracy estimate", res.Accuracy),
		NativeUnderstandable: native,
		Intelligibility:      level,
		Confidence:           confidenceLow,
		Issues:               issues,
		Strengths:            strengths,
		Tips: []string{
			"Practice with native speakers",
			"Record yourself regularly",
		},
		Method: MethodFallback,
	}
}

// pairIssues lists one issue per distinct problem in alignment order.
func pairIssues(pairs []align.Pair) []Issue {
	var issues []Issue
	seen := make(map[string]struct{})
	for _, p := range pairs {
		if len(issues) == maxFallbackIssues {
			break
		}
		issue, ok := pairIssue(p)
		if !ok {
			continue
		}
		key := issue.Phoneme + "\x00" + issue.Issue
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		issues = append(issues, issue)
	}
	return issues
}

func pairIssue(p align.Pair) (Issue, bool) {
	switch p.Status {
	case align.StatusSimilar:
		return Issue{
			Phoneme:    p.Target,
			Issue:      fmt.Sprintf("/%s/ sounded like the close sound /%s/", p.Target, p.Produced),
			Suggestion: fmt.Sprintf("Practice the contrast between /%s/ and /%s/", p.Target, p.Produced),
		}, true
	case align.StatusIncorrect:
		return Issue{
			Phoneme:    p.Target,
			Issue:      fmt.Sprintf("/%s/ was pronounced as /%s/", p.Target, p.Produced),
			Suggestion: fmt.Sprintf("Practice /%s/ slowly in isolation", p.Target),
		}, true
	case align.StatusMissing:
		return Issue{
			Phoneme:    p.Target,
			Issue:      fmt.Sprintf("/%s/ was not pronounced", p.Target),
			Suggestion: fmt.Sprintf("Make sure /%s/ is audible", p.Target),
		}, true
	case align.StatusExtra:
		return Issue{
			Phoneme:    p.Produced,
			Issue:      fmt.Sprintf("An extra /%s/ was inserted", p.Produced),
			Suggestion: fmt.Sprintf("Avoid adding /%s/ between sounds", p.Produced),
		}, true
	}
	return Issue{}, false
}
