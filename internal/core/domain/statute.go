package domain

// StatuteChunk is one retrievable unit of statute text, typically a single
// article. Immutable once produced by the indexing pipeline.
type StatuteChunk struct {
	Content  string `json:"content"`
	Filename string `json:"filename"`
	LawName  string `json:"law_name"`
}

// SearchResult is a scored statute fragment. Score is 1/(1+distance), a
// ranking/display transform of the index distance, not a probability.
type SearchResult struct {
	Content  string  `json:"content"`
	Filename string  `json:"filename"`
	LawName  string  `json:"law_name"`
	Score    float64 `json:"score"`
	Distance float64 `json:"distance"`
}

// ScoreFromDistance maps a non-negative index distance into (0, 1].
func ScoreFromDistance(distance float64) float64 {
	return 1.0 / (1.0 + distance)
}

// ConsultationAnswer is the outcome of one consultation turn.
type ConsultationAnswer struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
	Timestamp string `json:"timestamp"`
}

// BuildReport summarizes one run of the offline indexing pipeline.
type BuildReport struct {
	Documents        int `json:"documents"`
	DroppedDocuments int `json:"dropped_documents"`
	Chunks           int `json:"chunks"`
	Dimension        int `json:"dimension"`
}
