package sentinel

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// signal is one detection class in the battery. capped signals reach at
// most medium on their own and escalate only in combination with an
// independent signal, so encoding noise alone can never hit critical.
type signal struct {
	name     string
	severity RiskLevel
	capped   bool
	check    func(text string, cfg Config) []string
}

// battery returns the ordered signal battery. Order matters only for
// violation listing; every signal always runs.
func battery() []signal {
	return []signal{
		{name: "length_limit", severity: RiskMedium, check: checkLength},
		{name: "instruction_hijack", severity: RiskHigh, check: checkHijackPhrases},
		{name: "role_marker", severity: RiskHigh, check: checkRoleMarkers},
		{name: "fence_escape", severity: RiskHigh, check: checkFences},
		{name: "jailbreak_mode", severity: RiskHigh, check: checkJailbreak},
		{name: "safety_override", severity: RiskHigh, check: checkSafetyOverride},
		{name: "encoding_density", severity: RiskMedium, capped: true, check: checkEncoding},
		{name: "keyword_concentration", severity: RiskMedium, capped: true, check: checkKeywords},
		{name: "special_char_density", severity: RiskMedium, check: checkSpecialChars},
		{name: "structured_tag", severity: RiskHigh, check: checkTags},
		{name: "line_repetition", severity: RiskCritical, check: checkRepetition},
	}
}

var hijackPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)ignore\s+(all\s+)?(previous|prior|above)\s+(instructions?|prompts?|rules|context)`),
	regexp.MustCompile(`(?i)disregard\s+(all\s+)?(previous|prior|above)`),
	regexp.MustCompile(`(?i)forget\s+(everything|all|what)\s+(above|you|i)`),
	regexp.MustCompile(`(?i)new\s+instructions?\s*:`),
	regexp.MustCompile(`(?i)you\s+are\s+now\s+(a|an|my)\b`),
	regexp.MustCompile(`(?i)act\s+as\s+(if|though|a|an)\b`),
	regexp.MustCompile(`(?i)pretend\s+(you\s+are|to\s+be)\b`),
	regexp.MustCompile(`(?i)override\s+(all\s+)?(previous|prior|system)\s+(instructions?|rules)`),
}

var roleMarkerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(^|[\s>])(system|assistant)\s*:`),
	regexp.MustCompile(`(?i)\[\s*(system|assistant|user)\s*\]`),
	regexp.MustCompile(`(?i)<\|?(system|im_start|im_end|endoftext)\|?>`),
}

var (
	fencePattern       = regexp.MustCompile("(`{3,})|(\"{3,})|('{3,})")
	fenceHijackPattern = regexp.MustCompile("(?i)(`{3}|\"{3}|'{3})\\s*(ignore|disregard|forget|new\\s+instructions|you\\s+are\\s+now|act\\s+as|pretend|system\\s*:)")
)

var jailbreakPattern = regexp.MustCompile(`(?i)\b(jailbreak|jailbroken|do\s+anything\s+now|dan\s+mode|you\s+are\s+now\s+dan|developer\s+mode|god\s+mode|evil\s+mode|unrestricted\s+mode|uncensored\s+mode)\b`)

var safetyOverridePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(disregard|ignore|bypass|disable|remove|turn\s+off)\s+(the\s+|all\s+|your\s+)?(safety|safeguards?|filters?|filtering|restrictions?|guardrails?|content\s+polic(y|ies)|moderation)`),
	regexp.MustCompile(`(?i)without\s+(any\s+)?(restrictions?|filters?|limits)`),
}

var (
	htmlEntityRunPattern    = regexp.MustCompile(`(?:&#x?[0-9a-fA-F]{1,6};){3,}`)
	unicodeEscapeRunPattern = regexp.MustCompile(`(?:\\u[0-9a-fA-F]{4}){3,}|(?:\\x[0-9a-fA-F]{2}){4,}`)
	percentEscapeRunPattern = regexp.MustCompile(`(?:%[0-9a-fA-F]{2}){6,}`)
)

// riskKeywords is the fixed term set for the concentration signal. A
// single term is unremarkable; several co-occurring suggests a payload.
var riskKeywords = []string{
	"password", "passwd", "secret", "api key", "apikey", "token",
	"credential", "private key", "ssh key", "bypass", "exploit",
	"vulnerability", "inject", "payload", "backdoor", "rootkit",
	"keylogger", "exfiltrate",
}

var structuredTagPattern = regexp.MustCompile(`(?i)<\s*/?\s*(system|assistant|user|prompt|instruction)\b[^>]{0,64}>`)

func checkLength(text string, cfg Config) []string {
	if n := utf8.RuneCountInString(text); n > cfg.MaxLength {
		return []string{fmt.Sprintf("text length %d exceeds limit %d", n, cfg.MaxLength)}
	}
	return nil
}

func checkHijackPhrases(text string, _ Config) []string {
	var out []string
	for _, p := range hijackPatterns {
		if m := p.FindString(text); m != "" {
			out = append(out, fmt.Sprintf("instruction hijack phrase %q", truncateDetail(m)))
		}
	}
	return out
}

func checkRoleMarkers(text string, _ Config) []string {
	var out []string
	for _, p := range roleMarkerPatterns {
		if m := p.FindString(text); m != "" {
			out = append(out, fmt.Sprintf("conversation role marker %q", truncateDetail(strings.TrimSpace(m))))
		}
	}
	return out
}

func checkFences(text string, _ Config) []string {
	var out []string
	if m := fenceHijackPattern.FindString(text); m != "" {
		out = append(out, fmt.Sprintf("fence followed by hijack phrase %q", truncateDetail(m)))
	}
	if n := len(fencePattern.FindAllString(text, -1)); n >= 2 {
		out = append(out, fmt.Sprintf("%d triple-fence sequences (possible prompt termination)", n))
	}
	return out
}

func checkJailbreak(text string, _ Config) []string {
	if m := jailbreakPattern.FindString(text); m != "" {
		return []string{fmt.Sprintf("jailbreak mode phrase %q", truncateDetail(m))}
	}
	return nil
}

func checkSafetyOverride(text string, _ Config) []string {
	var out []string
	for _, p := range safetyOverridePatterns {
		if m := p.FindString(text); m != "" {
			out = append(out, fmt.Sprintf("safety override phrase %q", truncateDetail(m)))
		}
	}
	return out
}

func checkEncoding(text string, cfg Config) []string {
	var out []string
	if run := longestNonASCIIRun(text); run >= cfg.EncodingRunLength {
		out = append(out, fmt.Sprintf("non-ascii run of %d code points", run))
	}
	if htmlEntityRunPattern.MatchString(text) {
		out = append(out, "run of html numeric character references")
	}
	if unicodeEscapeRunPattern.MatchString(text) {
		out = append(out, "run of unicode/hex escape literals")
	}
	if percentEscapeRunPattern.MatchString(text) {
		out = append(out, "run of percent-encoded bytes")
	}
	return out
}

func longestNonASCIIRun(text string) int {
	run, longest := 0, 0
	for _, r := range text {
		if r > unicode.MaxASCII {
			run++
			if run > longest {
				longest = run
			}
		} else {
			run = 0
		}
	}
	return longest
}

func checkKeywords(text string, cfg Config) []string {
	lower := strings.ToLower(text)
	var found []string
	for _, kw := range riskKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	if len(found) >= cfg.KeywordThreshold {
		return []string{fmt.Sprintf("%d risk keywords co-occur: %s", len(found), strings.Join(found, ", "))}
	}
	return nil
}

// specialCharWhitelist is the punctuation that never counts toward the
// density signal.
const specialCharWhitelist = `.,!?;:'"()-_@#%&/+=<>[]{}` + " \t\n\r"

func checkSpecialChars(text string, cfg Config) []string {
	total := utf8.RuneCountInString(text)
	if total == 0 {
		return nil
	}
	special := 0
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			continue
		}
		if strings.ContainsRune(specialCharWhitelist, r) {
			continue
		}
		special++
	}
	if ratio := float64(special) / float64(total); ratio > cfg.SpecialCharRatio {
		return []string{fmt.Sprintf("special character density %.0f%% exceeds %.0f%%", ratio*100, cfg.SpecialCharRatio*100)}
	}
	return nil
}

func checkTags(text string, _ Config) []string {
	if m := structuredTagPattern.FindString(text); m != "" {
		return []string{fmt.Sprintf("structured prompt tag %q", truncateDetail(m))}
	}
	return nil
}

func checkRepetition(text string, _ Config) []string {
	seen := make(map[string]bool)
	nontrivial, dups := 0, 0
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if utf8.RuneCountInString(line) <= 10 {
			continue
		}
		nontrivial++
		if seen[line] {
			dups++
		}
		seen[line] = true
	}
	if nontrivial > 0 && dups*2 > nontrivial {
		return []string{fmt.Sprintf("%d of %d non-trivial lines are repeats", dups, nontrivial)}
	}
	return nil
}

func truncateDetail(s string) string {
	const max = 60
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
