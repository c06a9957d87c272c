package budget

import (
	"errors"
	"strings"
)

// Ceiling is a per-stage prompt token budget. Crossing Soft triggers
// compression; crossing Hard triggers shortening and then failure.
type Ceiling struct {
	Soft int
	Hard int
}

var (
	Stage1 = Ceiling{Soft: 1500, Hard: 2500}
	Stage2 = Ceiling{Soft: 2000, Hard: 2500}
)

// ErrOverCeiling is returned when a prompt cannot be brought under its hard ceiling.
var ErrOverCeiling = errors.New("prompt exceeds token ceiling")

const (
	middleMarker   = "[... truncated ...]"
	fallbackMarker = "[... truncated due to size limit ...]"

	headScanLines = 20
	tailScanLines = 30
	fillRatio     = 0.9
	charsPerToken = 4
)

// Shorten brings text under ceiling tokens. The instruction head and the
// format tail are kept and the middle is cut to fit 90% of the ceiling; text
// without those sections is cut from the end instead.
func Shorten(text string, ceiling int, counter Counter) string {
	if ceiling <= 0 {
		return ""
	}
	if counter.Count(text) <= ceiling {
		return text
	}
	target := int(float64(ceiling) * fillRatio)

	lines := strings.Split(text, "\n")
	head, tail := sectionBounds(lines)
	if head >= 0 && tail > head+1 {
		headText := strings.Join(lines[:head+1], "\n")
		tailText := strings.Join(lines[tail:], "\n")
		middle := strings.Join(lines[head+1:tail], "\n")

		room := target - counter.Count(headText) - counter.Count(tailText) - counter.Count(middleMarker) - 1
		if room > 0 {
			cut := []rune(middle)
			if limit := room * charsPerToken; limit < len(cut) {
				cut = cut[:limit]
			}
			for {
				out := headText + "\n" + string(cut) + "\n" + middleMarker + "\n" + tailText
				if counter.Count(out) <= target || len(cut) == 0 {
					return out
				}
				cut = cut[:len(cut)*8/10]
			}
		}
	}

	limit := int(float64(ceiling) * fillRatio * charsPerToken)
	r := []rune(text)
	if limit > len(r) {
		limit = len(r)
	}
	for limit > 0 {
		out := string(r[:limit]) + "\n" + fallbackMarker
		if counter.Count(out) <= ceiling {
			return out
		}
		limit = limit * 8 / 10
	}
	return ""
}

// sectionBounds finds the instruction-section line near the head and the
// format-section line near the tail; -1 when absent.
func sectionBounds(lines []string) (head, tail int) {
	head, tail = -1, -1
	for i := 0; i < len(lines) && i < headScanLines; i++ {
		if strings.HasPrefix(strings.TrimSpace(lines[i]), "##") || strings.Contains(lines[i], "USER PROFILE") {
			head = i
			break
		}
	}
	start := len(lines) - tailScanLines
	if start < 0 {
		start = 0
	}
	for i := start; i < len(lines); i++ {
		if strings.Contains(lines[i], "CRITICAL") || strings.Contains(lines[i], "FORMAT") {
			tail = i
			break
		}
	}
	return head, tail
}

// Fit builds a user message within c. build(false) is tried first; over the
// soft ceiling build(true) produces the compressed variant; over the hard
// ceiling the message is shortened. It returns the message and the total
// token count of system plus user.
func Fit(counter Counter, c Ceiling, system string, build func(aggressive bool) string) (string, int, error) {
	sysTokens := counter.Count(system)

	user := build(false)
	total := sysTokens + counter.Count(user)
	if total > c.Soft {
		user = build(true)
		total = sysTokens + counter.Count(user)
	}
	if total > c.Hard {
		user = Shorten(user, c.Hard-sysTokens, counter)
		total = sysTokens + counter.Count(user)
	}
	if total > c.Hard {
		return "", total, ErrOverCeiling
	}
	return user, total, nil
}
