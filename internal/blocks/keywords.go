package blocks

// partitionKeywords splits a block's keywords between the halves of a split.
func partitionKeywords(keywords []string) (head, tail []string) {
	if len(keywords) <= SplitKeywordCutoff {
		return append([]string{}, keywords...), []string{}
	}
	head = append([]string{}, keywords[:SplitKeywordCutoff]...)
	tail = append([]string{}, keywords[SplitKeywordCutoff:]...)
	return head, tail
}
