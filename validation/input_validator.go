// Package validation checks request input for the repertory API before it
// reaches the upstream service or a working set.
package validation

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/giygas/repertory-api/interfaces"
	"github.com/oklog/ulid/v2"
	"golang.org/x/text/unicode/norm"
)

const (
	maxSymptomLength = 200
	maxSymptomWords  = 12
	maxRemedyFilter  = 100
	maxPage          = 1000
)

// Pre-compiled regex patterns, compiled once at package initialization
var (
	// Symptom queries: letters in any script, digits, spaces and the upstream
	// search syntax (* wildcard, "quoted phrase", -exclusion)
	inputRegex = regexp.MustCompile(`^[\p{L}\p{M}\p{N}\s\-\.,'"*+]+$`)

	repertoryRegex    = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,32}$`)
	rubricIDRegex     = regexp.MustCompile(`^[A-Za-z0-9_\-]{1,64}$`)
	remedyFilterRegex = regexp.MustCompile(`^[\p{L}\p{M}\p{N}\s\-\.]*$`)

	// Dangerous patterns as strings (faster than regex for simple substring matching)
	dangerousPatterns = []string{
		"<script", "</script>", "javascript:", "vbscript:", "onload=", "onerror=",
		"onclick=", "onmouseover=", "onfocus=", "onblur=", "onchange=", "onsubmit=",
		"eval(", "expression(", "url(", "import ", "@import", "binding(", "behavior(",
		// SQL injection patterns
		"union select", "drop table", "delete from", "insert into",
		"update set", "--", "/*", "*/", "xp_", "sp_", "exec(", "execute(",
		// Command injection patterns
		"; ", "| ", "& ", "`", "$(", "${",
		// Path traversal patterns
		"../", "..\\", "%2e%2e", "file://",
		// NoSQL injection patterns
		"{$ne:", "{$gt:", "{$where:", "{$or:", "{$regex:", "{$expr:",
	}
)

// InputValidatorImpl implements the interfaces.InputValidator interface
type InputValidatorImpl struct{}

// NewInputValidator creates a new input validator
func NewInputValidator() interfaces.InputValidator {
	return &InputValidatorImpl{}
}

// ValidateInput validates a symptom query. The upstream syntax characters
// are allowed; everything else outside letters, digits and light punctuation
// is rejected.
func (v *InputValidatorImpl) ValidateInput(input string) error {
	if strings.TrimSpace(input) == "" {
		return fmt.Errorf("input cannot be empty")
	}

	if !utf8.ValidString(input) {
		return fmt.Errorf("input is not valid UTF-8")
	}

	length := utf8.RuneCountInString(strings.TrimSpace(input))
	if length < 3 {
		return fmt.Errorf("input too short: minimum 3 characters")
	}

	if length > maxSymptomLength {
		return fmt.Errorf("input too long: maximum %d characters", maxSymptomLength)
	}

	words := strings.Fields(input)
	if len(words) > maxSymptomWords {
		return fmt.Errorf("search query too complex: maximum %d words allowed", maxSymptomWords)
	}

	lowerInput := strings.ToLower(input)
	for _, pattern := range dangerousPatterns {
		if strings.Contains(lowerInput, pattern) {
			return fmt.Errorf("input contains potentially dangerous content")
		}
	}

	if !inputRegex.MatchString(input) {
		return fmt.Errorf("input contains invalid characters. Only letters, numbers, spaces, quotes, hyphens, commas, periods and the * wildcard are allowed")
	}

	if strings.Count(input, `"`)%2 != 0 {
		return fmt.Errorf("input has an unbalanced quote")
	}

	// a bare wildcard or exclusion would match the whole repertory
	if strings.Trim(input, `*-" `) == "" {
		return fmt.Errorf("input must contain a search term")
	}

	if v.hasExcessiveRepetition(input) {
		return fmt.Errorf("input contains excessive character repetition")
	}

	return nil
}

// ValidateRepertory checks a repertory abbreviation such as "kent"
func (v *InputValidatorImpl) ValidateRepertory(abbrev string) error {
	if abbrev == "" {
		return fmt.Errorf("repertory cannot be empty")
	}
	if !repertoryRegex.MatchString(abbrev) {
		return fmt.Errorf("invalid repertory abbreviation")
	}
	return nil
}

// ValidateMinWeight parses the minimum remedy weight, 1 to 4
func (v *InputValidatorImpl) ValidateMinWeight(input string) (int, error) {
	if input == "" {
		return 1, nil
	}

	weight, err := strconv.Atoi(input)
	if err != nil {
		return -1, fmt.Errorf("minWeight must be a number")
	}
	if weight < 1 || weight > 4 {
		return -1, fmt.Errorf("minWeight must be between 1 and 4")
	}
	return weight, nil
}

// ValidatePage parses a zero-based result page
func (v *InputValidatorImpl) ValidatePage(input string) (int, error) {
	if input == "" {
		return 0, nil
	}

	page, err := strconv.Atoi(input)
	if err != nil {
		return -1, fmt.Errorf("page must be a number")
	}
	if page < 0 || page > maxPage {
		return -1, fmt.Errorf("page must be between 0 and %d", maxPage)
	}
	return page, nil
}

// NormalizeRemedyFilter returns the NFC form of a remedy filter so that a
// decomposed "Nux-v." typed on macOS matches the upstream's composed names.
func (v *InputValidatorImpl) NormalizeRemedyFilter(input string) (string, error) {
	if !utf8.ValidString(input) {
		return "", fmt.Errorf("remedy filter is not valid UTF-8")
	}

	normalized := strings.TrimSpace(norm.NFC.String(input))
	if utf8.RuneCountInString(normalized) > maxRemedyFilter {
		return "", fmt.Errorf("remedy filter too long: maximum %d characters", maxRemedyFilter)
	}
	if !remedyFilterRegex.MatchString(normalized) {
		return "", fmt.Errorf("remedy filter contains invalid characters")
	}
	return normalized, nil
}

// ValidateCaseID checks that a case id is a canonical ULID
func (v *InputValidatorImpl) ValidateCaseID(input string) error {
	if _, err := ulid.ParseStrict(input); err != nil {
		return fmt.Errorf("invalid case id")
	}
	return nil
}

func (v *InputValidatorImpl) ValidateRubricID(input string) error {
	if !rubricIDRegex.MatchString(input) {
		return fmt.Errorf("invalid rubric id")
	}
	return nil
}

func (v *InputValidatorImpl) ValidateImportance(importance int) error {
	if importance < 1 || importance > 3 {
		return fmt.Errorf("importance must be 1, 2 or 3")
	}
	return nil
}

// hasExcessiveRepetition checks for potential DoS patterns with excessive character repetition
func (v *InputValidatorImpl) hasExcessiveRepetition(input string) bool {
	// Check for the same character repeated more than 10 times consecutively
	for i := 0; i < len(input)-10; i++ {
		allSame := true
		for j := 1; j <= 10; j++ {
			if input[i] != input[i+j] {
				allSame = false
				break
			}
		}
		if allSame {
			return true
		}
	}
	return false
}
