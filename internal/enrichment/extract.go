package enrichment

import (
	"regexp"
	"strings"
)

// Fragment is a unit of retrieved factual context that gets merged into the
// model prompt and discarded after the call. Never persisted.
type Fragment struct {
	Source string
	Body   string
}

// Team number extraction is a best-effort heuristic: a bare 3-5 digit token is
// probably a team number, but "team 7" and "frc 254" style references are
// matched first so that low-digit numbers are only picked up when explicitly
// prefixed. Candidates are deduplicated by value across patterns.
var teamPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:frc|team|takım)\s*(\d{1,5})`),
	regexp.MustCompile(`\b(\d{3,5})\b`),
}

// ExtractTeamNumbers returns up to max distinct team number candidates found
// in text, in first-seen order.
func ExtractTeamNumbers(text string, max int) []string {
	seen := make(map[string]struct{})
	var numbers []string
	for _, pattern := range teamPatterns {
		for _, match := range pattern.FindAllStringSubmatch(text, -1) {
			num := match[1]
			if num == "" {
				continue
			}
			if _, ok := seen[num]; ok {
				continue
			}
			seen[num] = struct{}{}
			numbers = append(numbers, num)
		}
	}
	if max > 0 && len(numbers) > max {
		numbers = numbers[:max]
	}
	return numbers
}

// topicKeywords gates the knowledge-base search: semantic lookup only fires
// when the message plausibly touches a robot programming topic, so small talk
// never issues a network call.
var topicKeywords = map[string][]string{
	"motor":      {"motor", "talon", "spark", "victor", "falcon", "neo", "kraken"},
	"autonomous": {"autonomous", "otonom", "pathplanner", "trajectory", "path"},
	"sensor":     {"sensor", "sensör", "encoder", "gyro", "limit switch", "ultrasonic", "vision", "limelight"},
	"pid":        {"pid", "feedback", "control loop"},
	"pneumatic":  {"pneumatic", "solenoid", "compressor", "pnömatik"},
	"drive":      {"drive", "swerve", "mecanum", "differential", "tank", "arcade"},
	"program":    {"wpilib", "subsystem", "command", "robot.java", "robotcontainer", "java", "python", "c++"},
	"simulation": {"simulation", "simülasyon", "shuffleboard", "glass"},
}

// DetectTopics returns the programming topics referenced by text, if any.
func DetectTopics(text string) []string {
	lower := strings.ToLower(text)
	var topics []string
	for topic, keywords := range topicKeywords {
		for _, kw := range keywords {
			if strings.Contains(lower, kw) {
				topics = append(topics, topic)
				break
			}
		}
	}
	return topics
}
