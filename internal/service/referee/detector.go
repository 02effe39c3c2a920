package referee

import (
	"math"
	"strings"
	"time"
)

// Indicator names one cheating signal.
type Indicator string

const (
	IndicatorTimingRegularity     Indicator = "timing_regularity"
	IndicatorImpossibleSpeed      Indicator = "impossible_speed"
	IndicatorPatternRepetition    Indicator = "pattern_repetition"
	IndicatorOutsideCommunication Indicator = "outside_communication"
	IndicatorOverconfidentClaims  Indicator = "overconfident_claims"
	IndicatorVoteManipulation     Indicator = "vote_manipulation"
	IndicatorRoleClaimAbuse       Indicator = "role_claim_abuse"
)

const (
	timingWindow        = 10
	minTimingSamples    = 5
	stdDevFloorSeconds  = 0.1
	meanFloorSeconds    = 0.4
	patternWindow       = 10
	minPatternSamples   = 5
	patternThreshold    = 0.8
	voteWindow          = 10
	minVoteSamples      = 5
	voteSwitchThreshold = 0.6
)

// Event is one entry of a player's history as the detector sees it.
// Chat messages carry Text; votes carry TargetID. ResponseMs is nil when the
// submission time was not measured.
type Event struct {
	Type       string    `json:"type"`
	TargetID   string    `json:"targetId,omitempty"`
	Text       string    `json:"text,omitempty"`
	ResponseMs *int64    `json:"responseMs,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

const (
	eventChat = "chat"
	eventVote = "vote"
)

// CheatDetectionResult is the advisory outcome of one analysis pass.
type CheatDetectionResult struct {
	PlayerID                 string         `json:"playerId"`
	SessionID                string         `json:"sessionId"`
	ActionType               string         `json:"actionType,omitempty"`
	Indicators               []Indicator    `json:"indicators"`
	OverallProbability       float64        `json:"overallProbability"`
	SeverityLevel            int            `json:"severityLevel"`
	Evidence                 map[string]any `json:"evidence"`
	RecommendedAction        Action         `json:"recommendedAction"`
	FalsePositiveProbability float64        `json:"falsePositiveProbability"`
	CreatedAt                time.Time      `json:"createdAt"`
}

// Has reports whether the indicator was raised.
func (r CheatDetectionResult) Has(ind Indicator) bool {
	for _, i := range r.Indicators {
		if i == ind {
			return true
		}
	}
	return false
}

type finding struct {
	indicator  Indicator
	confidence float64
	evidence   map[string]any
}

type heuristic func(history []Event) *finding

var heuristics = []heuristic{
	timingHeuristic,
	patternHeuristic,
	communicationHeuristic,
	votingHeuristic,
	roleClaimHeuristic,
}

// AnalyzeAction scores the latest event of history, the player's events in
// submission order. Heuristics are independent; the overall probability is
// the strongest single signal.
func AnalyzeAction(playerID, sessionID string, history []Event) CheatDetectionResult {
	result := CheatDetectionResult{
		PlayerID:   playerID,
		SessionID:  sessionID,
		Indicators: []Indicator{},
		Evidence:   map[string]any{},
	}
	if len(history) > 0 {
		result.ActionType = history[len(history)-1].Type
	}

	for _, h := range heuristics {
		f := h(history)
		if f == nil || f.confidence <= 0 {
			continue
		}
		result.Indicators = append(result.Indicators, f.indicator)
		result.Evidence[string(f.indicator)] = f.evidence
		if f.confidence > result.OverallProbability {
			result.OverallProbability = f.confidence
		}
	}
	result.OverallProbability = clamp01(result.OverallProbability)
	result.SeverityLevel = SeverityFor(result.OverallProbability)
	result.RecommendedAction = ActionFor(result.SeverityLevel)
	result.FalsePositiveProbability = math.Pow(1-result.OverallProbability, float64(len(result.Indicators)))
	return result
}

func timingHeuristic(history []Event) *finding {
	if len(history) == 0 {
		return nil
	}
	kind := history[len(history)-1].Type
	samples := make([]float64, 0, timingWindow)
	for i := len(history) - 1; i >= 0 && len(samples) < timingWindow; i-- {
		e := history[i]
		if e.Type != kind || e.ResponseMs == nil || *e.ResponseMs < 0 {
			continue
		}
		samples = append(samples, float64(*e.ResponseMs)/1000)
	}
	if len(samples) < minTimingSamples {
		return nil
	}

	mean, sd := meanStdDev(samples)
	evidence := map[string]any{
		"actionType":    kind,
		"samples":       len(samples),
		"meanSeconds":   round3(mean),
		"stdDevSeconds": round3(sd),
		"stdDevFloor":   stdDevFloorSeconds,
		"meanFloor":     meanFloorSeconds,
	}
	if mean < meanFloorSeconds {
		return &finding{indicator: IndicatorImpossibleSpeed, confidence: 0.9, evidence: evidence}
	}
	if sd < stdDevFloorSeconds {
		return &finding{
			indicator:  IndicatorTimingRegularity,
			confidence: 0.6 + 0.4*(1-sd/stdDevFloorSeconds),
			evidence:   evidence,
		}
	}
	return nil
}

func patternHeuristic(history []Event) *finding {
	counts := make(map[string]int)
	n := 0
	for i := len(history) - 1; i >= 0 && n < patternWindow; i-- {
		if history[i].Type == eventChat {
			continue
		}
		counts[history[i].Type]++
		n++
	}
	if n < minPatternSamples {
		return nil
	}
	top, topCount := "", 0
	for t, c := range counts {
		if c > topCount || (c == topCount && t < top) {
			top, topCount = t, c
		}
	}
	share := float64(topCount) / float64(n)
	if share <= patternThreshold {
		return nil
	}
	return &finding{
		indicator:  IndicatorPatternRepetition,
		confidence: 0.3 + 0.3*(share-patternThreshold)/(1-patternThreshold),
		evidence: map[string]any{
			"actionType": top,
			"share":      round3(share),
			"window":     n,
		},
	}
}

var outsidePhrases = []string{
	"text me", "texted me", "dm me", "check discord", "on discord", "whatsapp", "snapchat",
	"call me", "in real life", "irl", "looked at your screen", "saw your screen", "saw your phone",
	"my brother told me", "my sister told me", "told me outside",
}

var confidencePhrases = []string{
	"trust me", "100%", "i'm certain", "i am certain", "definitely", "i know for a fact",
	"guaranteed", "no doubt", "absolutely sure", "i swear",
}

func lastChat(history []Event) (string, bool) {
	if len(history) == 0 {
		return "", false
	}
	last := history[len(history)-1]
	if last.Type != eventChat || strings.TrimSpace(last.Text) == "" {
		return "", false
	}
	return strings.ToLower(last.Text), true
}

func communicationHeuristic(history []Event) *finding {
	text, ok := lastChat(history)
	if !ok {
		return nil
	}
	if hits := matchPhrases(text, outsidePhrases); len(hits) > 0 {
		return &finding{
			indicator:  IndicatorOutsideCommunication,
			confidence: 0.7,
			evidence:   map[string]any{"phrases": hits},
		}
	}
	if hits := matchPhrases(text, confidencePhrases); len(hits) >= 2 {
		return &finding{
			indicator:  IndicatorOverconfidentClaims,
			confidence: 0.45,
			evidence:   map[string]any{"phrases": hits},
		}
	}
	return nil
}

func matchPhrases(text string, phrases []string) []string {
	var hits []string
	for _, p := range phrases {
		if containsPhrase(text, p) {
			hits = append(hits, p)
		}
	}
	return hits
}

// containsPhrase matches p on word boundaries so that "irl" does not hit "girl".
func containsPhrase(text, p string) bool {
	for start := 0; start < len(text); {
		idx := strings.Index(text[start:], p)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(p)
		if (idx == 0 || !isWordByte(text[idx-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		start = idx + 1
	}
	return false
}

func isWordByte(b byte) bool {
	return b == '_' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

func votingHeuristic(history []Event) *finding {
	var targets []string
	for i := len(history) - 1; i >= 0 && len(targets) < voteWindow; i-- {
		if history[i].Type == eventVote && history[i].TargetID != "" {
			targets = append(targets, history[i].TargetID)
		}
	}
	if len(targets) < minVoteSamples {
		return nil
	}
	switches := 0
	for i := 1; i < len(targets); i++ {
		if targets[i] != targets[i-1] {
			switches++
		}
	}
	ratio := float64(switches) / float64(len(targets)-1)
	if ratio <= voteSwitchThreshold {
		return nil
	}
	return &finding{
		indicator:  IndicatorVoteManipulation,
		confidence: 0.5 + 0.3*(ratio-voteSwitchThreshold)/(1-voteSwitchThreshold),
		evidence: map[string]any{
			"votes":       len(targets),
			"switches":    switches,
			"switchRatio": round3(ratio),
		},
	}
}

var claimableRoles = []string{
	"godfather", "assassin", "mafioso", "consigliere", "detective", "doctor", "bodyguard",
	"vigilante", "escort", "mayor", "civilian", "jester", "survivor",
}

var claimPrefixes = []string{"i am the ", "i'm the ", "im the ", "i am a ", "i'm a ", "im a ", "i am ", "i'm "}

func roleClaimHeuristic(history []Event) *finding {
	text, ok := lastChat(history)
	if !ok {
		return nil
	}
	var claimed []string
	for _, role := range claimableRoles {
		for _, prefix := range claimPrefixes {
			if containsPhrase(text, prefix+role) {
				claimed = append(claimed, role)
				break
			}
		}
	}
	if len(claimed) < 2 {
		return nil
	}
	return &finding{
		indicator:  IndicatorRoleClaimAbuse,
		confidence: 0.55,
		evidence:   map[string]any{"roles": claimed},
	}
}

func meanStdDev(xs []float64) (float64, float64) {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	var sq float64
	for _, x := range xs {
		sq += (x - mean) * (x - mean)
	}
	return mean, math.Sqrt(sq / float64(len(xs)))
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
