package docstore

import "github.com/gamma-omg/rag-ingest/chunker"

// buckets groups nodes into consecutive runs whose total content size stays
// within size bytes. A node larger than size gets a bucket of its own.
// A non-positive size puts everything in one bucket.
func buckets(nodes []chunker.Node, size int) [][]chunker.Node {
	if len(nodes) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]chunker.Node{nodes}
	}

	var res [][]chunker.Node
	start, total := 0, 0
	for i, n := range nodes {
		l := len(n.Content)
		if i > start && total+l > size {
			res = append(res, nodes[start:i])
			start, total = i, 0
		}
		total += l
	}

	return append(res, nodes[start:])
}
