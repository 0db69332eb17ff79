package chunker

import (
	"regexp"
	"strings"
)

var blankLine = regexp.MustCompile(`\n[ \t\r\f\v]*\n`)

const sentenceEnd = '.'

// Semantic greedily packs paragraphs into chunks of at most maxSize
// characters. A buffer that already holds minSize characters is flushed
// before it would overflow; a smaller one absorbs the next paragraph and is
// then cut after the last sentence end at or past index minSize, or hard cut
// at maxSize when there is none.
func Semantic(text string, minSize, maxSize int) []string {
	if maxSize <= 0 {
		return nil
	}
	var (
		chunks []string
		buf    []rune
	)
	emit := func(r []rune) {
		if s := strings.TrimSpace(string(r)); s != "" {
			chunks = append(chunks, s)
		}
	}

	for _, raw := range blankLine.Split(text, -1) {
		para := []rune(strings.TrimSpace(raw))
		if len(para) == 0 {
			continue
		}
		if len(buf)+len(para)+1 <= maxSize {
			buf = appendParagraph(buf, para)
			continue
		}
		if len(buf) >= minSize {
			emit(buf)
			buf = para
		} else {
			buf = appendParagraph(buf, para)
		}
		for len(buf) > maxSize {
			cut := cutPoint(buf, minSize, maxSize)
			emit(buf[:cut])
			buf = []rune(strings.TrimSpace(string(buf[cut:])))
		}
	}
	emit(buf)
	return chunks
}

func appendParagraph(buf, para []rune) []rune {
	if len(buf) == 0 {
		return append([]rune(nil), para...)
	}
	buf = append(buf, '\n')
	return append(buf, para...)
}

// cutPoint returns the length of the next piece to split off buf. Only a
// sentence end at index minSize or later qualifies.
func cutPoint(buf []rune, minSize, maxSize int) int {
	for i := maxSize - 1; i >= 0; i-- {
		if buf[i] == sentenceEnd {
			if i >= minSize {
				return i + 1
			}
			break
		}
	}
	return maxSize
}
