package extract

import (
	"regexp"
	"strings"
)

// audioLocation matches http(s) or file URLs, and absolute paths to audio
// files.
var audioLocation = regexp.MustCompile(`(?i)(https?://[^\s"'<>]+|file://[^\s"'<>]+|/[^\s"'<>]+\.(?:mp3|wav|ogg|m4a|flac))`)

var audioExtension = regexp.MustCompile(`(?i)\.(?:mp3|wav|ogg|m4a|flac)$`)

// SentimentKeys are the structured fields sentiment tools and agents report.
var SentimentKeys = []string{"sentiment", "confidence", "key_markers", "analysis"}

// TextToSpeech finds the generated audio location in the tool's log output.
// Locations naming an audio file, or file:// URLs, win over other URLs.
func TextToSpeech(response map[string]any) (Extraction, bool) {
	var (
		best      Extraction
		bestScore int
	)
	for _, s := range Strings(response) {
		for _, match := range audioLocation.FindAllString(s, -1) {
			location := strings.TrimRight(match, ".,;:)]}")
			score := 1
			if audioExtension.MatchString(location) || strings.HasPrefix(strings.ToLower(location), "file://") {
				score = 2
			}
			if score <= bestScore {
				continue
			}
			best = Extraction{
				Data:    map[string]any{"audio_url": location},
				Message: strings.TrimSpace(s),
			}
			bestScore = score
		}
	}
	return best, bestScore > 0
}

// AnalyzeSentiment copies the sentiment fields of a structured tool result,
// found either at the top level or under "result".
func AnalyzeSentiment(response map[string]any) (Extraction, bool) {
	for _, root := range []any{response, response["result"]} {
		m, ok := root.(map[string]any)
		if !ok {
			continue
		}
		if _, ok := m["sentiment"]; !ok {
			continue
		}
		data := make(map[string]any, len(SentimentKeys))
		for _, key := range SentimentKeys {
			if v, ok := m[key]; ok {
				data[key] = v
			}
		}
		return Extraction{Data: data}, true
	}
	return Extraction{}, false
}

var (
	reportSentiment  = regexp.MustCompile(`(?i)Overall Sentiment:[ \t*]*(positive|negative|neutral)`)
	reportConfidence = regexp.MustCompile(`(?i)Confidence:[ \t*]*(\d+(?:\.\d+)?%?)`)
	reportMarkers    = regexp.MustCompile(`(?i)Key Markers:[ \t*]*`)
	reportAnalysis   = regexp.MustCompile(`(?im)^[ \t*-]*Analysis:[ \t*]*`)
	reportHeading    = regexp.MustCompile(`(?i)^[ \t*-]*(?:Overall Sentiment|Confidence|Key Markers|Analysis):`)
	blankLine        = regexp.MustCompile(`\n[ \t]*\n`)
	bullet           = regexp.MustCompile(`^[ \t]*(?:[-*\x{2022}]|\d+[.)])[ \t]+`)
)

// SentimentReport parses the bulleted report a sentiment agent writes:
//
//	- Overall Sentiment: positive
//	- Confidence: 95%
//	- Key Markers: happy, excited
//	- Analysis: ...
//
// Key markers may also follow as a bulleted list on the next lines. An
// integer confidence without a percent sign is a percentage. The fields land
// under data.sentiment_analysis.
func SentimentReport(text string) (Extraction, bool) {
	m := reportSentiment.FindStringSubmatch(text)
	if m == nil {
		return Extraction{}, false
	}
	analysis := map[string]any{"sentiment": strings.ToLower(m[1])}
	if m := reportConfidence.FindStringSubmatch(text); m != nil {
		confidence := m[1]
		if !strings.HasSuffix(confidence, "%") && !strings.Contains(confidence, ".") {
			confidence += "%"
		}
		analysis["confidence"] = confidence
	}
	if loc := reportMarkers.FindStringIndex(text); loc != nil {
		analysis["key_markers"] = parseMarkers(section(text[loc[1]:]))
	}
	if loc := reportAnalysis.FindStringIndex(text); loc != nil {
		analysis["analysis"] = strings.TrimSpace(paragraph(text[loc[1]:]))
	}
	return Extraction{
		Data:    map[string]any{"sentiment_analysis": analysis},
		Message: strings.TrimSpace(text),
	}, true
}

// paragraph cuts s at the first blank line.
func paragraph(s string) string {
	if loc := blankLine.FindStringIndex(s); loc != nil {
		return s[:loc[0]]
	}
	return s
}

// section returns the body of a report heading: the rest of its line plus
// the following lines, up to a blank line or the next heading. When the
// heading line carries content, a following top-level bullet also ends it.
func section(s string) string {
	lines := strings.Split(paragraph(s), "\n")
	inline := strings.TrimSpace(lines[0]) != ""
	end := len(lines)
	for i, line := range lines[1:] {
		if reportHeading.MatchString(line) || (inline && strings.HasPrefix(line, "-")) {
			end = i + 1
			break
		}
	}
	return strings.Join(lines[:end], "\n")
}

func parseMarkers(body string) []any {
	var markers []any
	add := func(marker string) {
		if marker = strings.Trim(strings.TrimSpace(marker), "*"); marker != "" {
			markers = append(markers, marker)
		}
	}

	lines := strings.Split(strings.TrimSpace(body), "\n")
	bulleted := false
	for _, line := range lines {
		if bullet.MatchString(line) {
			bulleted = true
			break
		}
	}
	for _, line := range lines {
		if !bulleted {
			for _, marker := range strings.Split(line, ",") {
				add(marker)
			}
		} else if bullet.MatchString(line) {
			add(bullet.ReplaceAllString(line, ""))
		}
	}
	return markers
}
