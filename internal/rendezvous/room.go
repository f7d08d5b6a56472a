package rendezvous

import (
	"crypto/rand"
	"math/big"
	"strings"
)

// Room pairs one leader with one follower.
type Room struct {
	ID       string
	Leader   *Participant
	Follower *Participant
}

// partner returns the other member of the room, or nil.
func (r *Room) partner(p *Participant) *Participant {
	switch p {
	case r.Leader:
		return r.Follower
	case r.Follower:
		return r.Leader
	default:
		return nil
	}
}

// newRoomID returns a memorable id such as "kitten-waffle-luna-happy" that
// is not yet in use.
func newRoomID(inUse func(string) bool) string {
	for {
		order := permutation(len(wordLists))
		words := make([]string, 4)
		for i := range words {
			list := wordLists[order[i]]
			words[i] = list[randomIndex(len(list))]
		}
		id := strings.Join(words, "-")
		if !inUse(id) {
			return id
		}
	}
}

// permutation is a Fisher-Yates shuffle of 0..n-1.
func permutation(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = i
	}
	for i := n - 1; i > 0; i-- {
		j := randomIndex(i + 1)
		out[i], out[j] = out[j], out[i]
	}
	return out
}

// randomIndex returns a cryptographically secure random index below max.
func randomIndex(max int) int {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		panic("rendezvous: crypto/rand failed: " + err.Error())
	}
	return int(n.Int64())
}
