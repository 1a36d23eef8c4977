package splitter

// span is a 1-based inclusive line range relative to the slice it was
// computed over.
type span struct {
	start int
	end   int
}

// windowSpans splits lines into windows of at most chunkSize characters with
// up to overlap characters of trailing context repeated at the head of the
// next window. A line is never split: a single line longer than chunkSize
// becomes its own window.
func windowSpans(lines []string, chunkSize, overlap int) []span {
	if len(lines) == 0 {
		return nil
	}

	var spans []span
	i := 0 // 0-based index of the next window's first line

	for i < len(lines) {
		j := i
		size := 0
		for j < len(lines) {
			lineLen := len(lines[j]) + 1
			if size > 0 && size+lineLen > chunkSize {
				break
			}
			size += lineLen
			j++
		}

		spans = append(spans, span{start: i + 1, end: j})

		if j >= len(lines) {
			break
		}

		// Walk back from the window end accumulating whole lines while they
		// fit in the overlap budget.
		k := j
		osize := 0
		for k > i+1 {
			lineLen := len(lines[k-1]) + 1
			if osize+lineLen > overlap {
				break
			}
			osize += lineLen
			k--
		}
		i = k
	}

	return spans
}
