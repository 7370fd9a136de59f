package models

// BreakdownBucket holds accept/reject counts for one value of a metadata
// key.
type BreakdownBucket struct {
	Value          string  `json:"value"`
	Accepted       int     `json:"accepted"`
	Rejected       int     `json:"rejected"`
	AcceptanceRate float64 `json:"acceptance_rate"`
}

// Total is the number of annotated samples in the bucket.
func (b BreakdownBucket) Total() int { return b.Accepted + b.Rejected }

// Breakdown groups annotated samples by the value of one metadata key.
// Samples whose metadata lacks the key are not counted.
type Breakdown struct {
	Key     string            `json:"key"`
	Buckets []BreakdownBucket `json:"buckets"`
}
