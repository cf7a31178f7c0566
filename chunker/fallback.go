package chunker

// Split cuts an over-length node into windows of maxLen characters. Window i
// starts at i*(maxLen-overlap), so adjacent windows share overlap characters;
// the last window may be shorter. Nodes that already fit, and invalid limits,
// return the node unchanged.
func Split(node Node, maxLen, overlap int) []Node {
	runes := []rune(node.Content)
	l := len(runes)
	if l <= maxLen || maxLen <= 0 || overlap < 0 || overlap >= maxLen {
		return []Node{node}
	}

	step := maxLen - overlap
	res := make([]Node, 0, l/step+1)

	for pos := 0; ; pos += step {
		end := min(pos+maxLen, l)
		res = append(res, newNode(string(runes[pos:end]), node.Source, node.Section, KindFallback))
		if end >= l {
			break
		}
	}

	return res
}
