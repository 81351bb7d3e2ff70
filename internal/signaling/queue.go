package signaling

import "github.com/pion/webrtc/v4"

// candidateQueue holds remote candidates that arrived before a remote
// description was applied. Receipt order is preserved.
type candidateQueue struct {
	items []webrtc.ICECandidateInit
}

func (q *candidateQueue) push(c webrtc.ICECandidateInit) { q.items = append(q.items, c) }

func (q *candidateQueue) len() int { return len(q.items) }

// take empties the queue and returns its contents in receipt order.
func (q *candidateQueue) take() []webrtc.ICECandidateInit {
	items := q.items
	q.items = nil
	return items
}
