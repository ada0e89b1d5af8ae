// Package redaction masks guest contact details before they are logged,
// listed or written to receipts.
package redaction

import (
	"bufio"
	"os"
	"regexp"
	"strings"
	"unicode/utf8"
)

// sensitivePatterns are applied to free text such as order notes.
var sensitivePatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(?:\d[ -]?){12,18}\d\b`), // card-like digit runs
	regexp.MustCompile(`\S+@\S+\.\S+`),             // email addresses
	regexp.MustCompile(`\+?\d[\d ]{8,}\d`),         // phone numbers
}

// redactedTagRe matches explicit <redacted>…</redacted> pairs (including multiline).
var redactedTagRe = regexp.MustCompile(`(?s)<redacted>.*?</redacted>`)

const replacement = "[REDACTED]"

// Redact scrubs free text in three layers:
//
//  1. Explicit <redacted>…</redacted> tags are replaced and orphaned tags stripped.
//  2. Built-in patterns for card numbers, emails and phone numbers.
//  3. Caller-supplied extraPatterns (see LoadIgnoreFile).
func Redact(text string, extraPatterns []*regexp.Regexp) string {
	for {
		next := redactedTagRe.ReplaceAllString(text, replacement)
		if next == text {
			break
		}
		text = next
	}
	text = strings.ReplaceAll(text, "<redacted>", "")
	text = strings.ReplaceAll(text, "</redacted>", "")

	for _, re := range sensitivePatterns {
		text = re.ReplaceAllString(text, replacement)
	}
	for _, re := range extraPatterns {
		text = re.ReplaceAllString(text, replacement)
	}
	return text
}

// MaskEmail keeps the first character of the local part and the domain:
// "ann@example.com" becomes "a**@example.com".
func MaskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return mask(email, 0)
	}
	local, domain := email[:at], email[at:]
	_, first := utf8.DecodeRuneInString(local)
	return local[:first] + strings.Repeat("*", utf8.RuneCountInString(local)-1) + domain
}

// MaskPhone keeps only the last four digits.
func MaskPhone(phone string) string {
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, phone)
	if len(digits) <= 4 {
		return strings.Repeat("*", len(digits))
	}
	return strings.Repeat("*", len(digits)-4) + digits[len(digits)-4:]
}

// MaskAddress keeps the first word of an address.
func MaskAddress(addr string) string {
	fields := strings.Fields(addr)
	if len(fields) <= 1 {
		return mask(addr, 0)
	}
	return fields[0] + " ***"
}

// mask replaces every rune after the first keep runes with '*'.
func mask(s string, keep int) string {
	n := utf8.RuneCountInString(s)
	if n <= keep {
		return s
	}
	i := 0
	for k := 0; k < keep; k++ {
		_, size := utf8.DecodeRuneInString(s[i:])
		i += size
	}
	return s[:i] + strings.Repeat("*", n-keep)
}

// LoadIgnoreFile reads a pattern file and compiles each non-blank,
// non-comment line as a regular expression.
// Returns nil (no error) if the file does not exist.
func LoadIgnoreFile(path string) ([]*regexp.Regexp, error) {
	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var patterns []*regexp.Regexp
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		re, err := regexp.Compile(line)
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, re)
	}
	return patterns, scanner.Err()
}
