package chunker

// Fixed splits text into windows of chunkSize characters where consecutive
// windows share overlap characters. The window advances by chunkSize-overlap,
// but never by less than one character. Splitting stops at the first window
// that reaches the end of the text, so no trailing window is fully contained
// in its predecessor. Windows are not trimmed.
func Fixed(text string, chunkSize, overlap int) []string {
	runes := []rune(text)
	if len(runes) == 0 || chunkSize <= 0 {
		return nil
	}
	if overlap < 0 {
		overlap = 0
	}
	step := chunkSize - overlap
	if step < 1 {
		step = 1
	}
	var chunks []string
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
